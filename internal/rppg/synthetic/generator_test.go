package synthetic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeneratorIsDeterministic(t *testing.T) {
	a := NewGenerator(30, 1.2, 7).Window(50)
	b := NewGenerator(30, 1.2, 7).Window(50)
	assert.Equal(t, a, b)
}

func TestGeneratorTiming(t *testing.T) {
	g := NewGenerator(25, 1.0, 1)
	w := g.Window(26)
	assert.InDelta(t, 1.0, w.Duration(), 1e-12)
	assert.Equal(t, 26, g.Frame())
}

func TestSine(t *testing.T) {
	s := Sine(31, 30, 1, 2)
	assert.InDelta(t, 0, s[0], 1e-12)
	// 7/30 of a period is 84 degrees
	assert.InDelta(t, 2*0.9945218953682733, s[7], 1e-9)
	assert.InDelta(t, 0, s[30], 1e-9)
}
