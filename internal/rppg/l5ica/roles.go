package l5ica

import (
	"math"

	"github.com/banshee-data/pulse.report/internal/rppg"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/combin"
)

// assignRoles maps the rows of s onto the colour roles in channels. The
// permutation with the largest total |correlation| wins; each component is
// then flipped, if needed, so its correlation with its role is positive.
func assignRoles(res *Result, s *mat.Dense, observed rppg.ChannelSeries, channels []rppg.Channel) {
	m, n := s.Dims()

	rows := make([][]float64, m)
	for i := range rows {
		rows[i] = mat.Row(nil, i, s)
	}
	corr := make([][]float64, m)
	for i := range corr {
		corr[i] = make([]float64, m)
		for j, c := range channels {
			r := stat.Correlation(rows[i], observed[c].Y, nil)
			if math.IsNaN(r) {
				r = 0
			}
			corr[i][j] = r
		}
	}

	best := math.Inf(-1)
	var assignment []int
	for _, p := range combin.Permutations(m, m) {
		var total float64
		for j, i := range p {
			total += math.Abs(corr[i][j])
		}
		if total > best {
			best = total
			assignment = p
		}
	}

	for j, c := range channels {
		i := assignment[j]
		y := rows[i]
		r := corr[i][j]
		if r < 0 {
			for k := range y {
				y[k] = -y[k]
			}
			r = -r
		}
		x := observed[c].X
		if len(x) != n {
			x = nil
		}
		res.Components[c] = rppg.NewSeries(c.String(), x, y)
		res.Correlation[c] = r
	}
}
