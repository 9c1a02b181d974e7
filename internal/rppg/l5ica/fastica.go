package l5ica

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/banshee-data/pulse.report/internal/rppg"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Defaults used when Options fields are zero.
const (
	DefaultMinSamples    = 90
	DefaultMaxIterations = 200
	DefaultTolerance     = 1e-4
	DefaultSeed          = 1

	// eigenFloor is the smallest covariance eigenvalue, relative to the
	// largest, accepted before the mixtures count as rank deficient.
	eigenFloor = 1e-10
)

// Options configures Separate.
type Options struct {
	// MinSamples is the fewest samples the decomposition runs on. It is
	// checked as given and never clamped.
	MinSamples    int
	MaxIterations int
	Tolerance     float64
	// Seed fixes the initial unmixing matrix so repeated runs agree.
	Seed int64
}

func (o Options) withDefaults() Options {
	if o.MinSamples == 0 {
		o.MinSamples = DefaultMinSamples
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Tolerance == 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	return o
}

// Validate reports the first invalid field.
func (o Options) Validate() error {
	switch {
	case o.MinSamples < 0:
		return &rppg.ConfigurationError{Field: "min_ica_samples", Reason: "must not be negative"}
	case o.MaxIterations < 0:
		return &rppg.ConfigurationError{Field: "ica_max_iterations", Reason: "must not be negative"}
	case o.Tolerance < 0 || math.IsNaN(o.Tolerance):
		return &rppg.ConfigurationError{Field: "ica_tolerance", Reason: "must not be negative"}
	}
	return nil
}

// Scorer rates how pulse-like a waveform is. l4spectral.Estimator
// implements it with spectral concentration in the heart-rate band.
type Scorer interface {
	Score(y []float64, fs float64) float64
}

// Result is the outcome of one separation.
type Result struct {
	// Components holds the independent components, one per colour role,
	// scaled to unit variance and signed to correlate positively with the
	// channel whose role they took.
	Components rppg.ChannelSeries
	// Correlation is each component's correlation with its role channel.
	Correlation map[rppg.Channel]float64
	// Scores is each component's pulse score.
	Scores map[rppg.Channel]float64
	// Primary is the role of the most pulse-like component.
	Primary    rppg.Channel
	Converged  bool
	Iterations int
}

// Separate unmixes the channels of observed, which must share timestamps
// and be uniformly sampled at fs, into independent components using FastICA
// (symmetric decorrelation, log-cosh contrast).
//
// Components have no natural order. Each is given the colour role of the
// input channel it correlates with most, choosing the assignment that
// maximises the total absolute correlation. scorer picks the pulsatile
// component; with a nil scorer Primary stays Green.
//
// A run that does not converge within MaxIterations still returns its last
// estimate with Converged false.
func Separate(observed rppg.ChannelSeries, fs float64, scorer Scorer, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	channels := make([]rppg.Channel, 0, len(observed))
	for _, c := range rppg.Channels {
		if _, ok := observed[c]; ok {
			channels = append(channels, c)
		}
	}
	m := len(channels)
	if m < 2 {
		return nil, fmt.Errorf("ica needs at least 2 channels, have %d: %w", m, rppg.ErrInsufficientData)
	}
	n := observed[channels[0]].Len()
	for _, c := range channels {
		if observed[c].Len() != n {
			return nil, fmt.Errorf("ica channel %s has %d samples, want %d: %w", c, observed[c].Len(), n, rppg.ErrDegenerateSignal)
		}
	}
	if n < opts.MinSamples || n < m+1 {
		return nil, fmt.Errorf("ica needs %d samples, have %d: %w", opts.MinSamples, n, rppg.ErrInsufficientData)
	}

	x := mat.NewDense(m, n, nil)
	for i, c := range channels {
		row := observed[c].Y
		mean := stat.Mean(row, nil)
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("ica channel %s: non-finite sample: %w", c, rppg.ErrDegenerateSignal)
			}
			x.Set(i, j, v-mean)
		}
	}

	z, err := whiten(x)
	if err != nil {
		return nil, err
	}

	w, iterations, converged := fastICA(z, opts)
	if !converged {
		debugf("fastica did not converge in %d iterations", iterations)
	}

	var s mat.Dense
	s.Mul(w, z)

	res := &Result{
		Components:  make(rppg.ChannelSeries, m),
		Correlation: make(map[rppg.Channel]float64, m),
		Scores:      make(map[rppg.Channel]float64, m),
		Primary:     rppg.Green,
		Converged:   converged,
		Iterations:  iterations,
	}
	assignRoles(res, &s, observed, channels)

	if scorer != nil {
		best := math.Inf(-1)
		for _, c := range channels {
			score := scorer.Score(res.Components[c].Y, fs)
			res.Scores[c] = score
			if score > best {
				best = score
				res.Primary = c
			}
		}
	}
	debugf("ica: n=%d iterations=%d converged=%v primary=%s scores=%v", n, iterations, converged, res.Primary, res.Scores)
	return res, nil
}

// whiten returns K·x where K = D^-1/2 Eᵀ from the eigendecomposition of
// the covariance of x, so the rows of the result are uncorrelated with unit
// variance.
func whiten(x *mat.Dense) (*mat.Dense, error) {
	m, n := x.Dims()

	var cov mat.SymDense
	cov.SymOuterK(1/float64(n), x)

	var eig mat.EigenSym
	if ok := eig.Factorize(&cov, true); !ok {
		return nil, fmt.Errorf("ica covariance eigendecomposition failed: %w", rppg.ErrDegenerateSignal)
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	largest := vals[len(vals)-1]
	if !(largest > 0) {
		return nil, fmt.Errorf("ica input has zero variance: %w", rppg.ErrDegenerateSignal)
	}
	for _, v := range vals {
		if v <= eigenFloor*largest {
			return nil, fmt.Errorf("ica input is rank deficient (eigenvalue %.3g of %.3g): %w", v, largest, rppg.ErrDegenerateSignal)
		}
	}

	k := mat.NewDense(m, m, nil)
	for i := 0; i < m; i++ {
		scale := 1 / math.Sqrt(vals[i])
		for j := 0; j < m; j++ {
			k.Set(i, j, scale*vecs.At(j, i))
		}
	}
	var z mat.Dense
	z.Mul(k, x)
	return &z, nil
}

// fastICA runs the symmetric fixed-point iteration on whitened data z and
// returns the unmixing matrix W (components = W·z).
func fastICA(z *mat.Dense, opts Options) (*mat.Dense, int, bool) {
	m, n := z.Dims()
	rng := rand.New(rand.NewSource(opts.Seed))
	w := mat.NewDense(m, m, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			w.Set(i, j, rng.NormFloat64())
		}
	}
	w = decorrelate(w)

	var (
		wz    mat.Dense
		gz    mat.Dense
		next  mat.Dense
		check mat.Dense
	)
	gPrime := make([]float64, m)
	for it := 1; it <= opts.MaxIterations; it++ {
		wz.Mul(w, z)
		gz.CloneFrom(&wz)
		for i := 0; i < m; i++ {
			var sum float64
			for j := 0; j < n; j++ {
				g := math.Tanh(wz.At(i, j))
				gz.Set(i, j, g)
				sum += 1 - g*g
			}
			gPrime[i] = sum / float64(n)
		}

		// W+ = E{g(Wz) zᵀ} - diag(E{g'(Wz)}) W
		next.Mul(&gz, z.T())
		next.Scale(1/float64(n), &next)
		for i := 0; i < m; i++ {
			for j := 0; j < m; j++ {
				next.Set(i, j, next.At(i, j)-gPrime[i]*w.At(i, j))
			}
		}
		updated := decorrelate(&next)

		// converged when every row of W+ is parallel to the matching row of W
		check.Mul(updated, w.T())
		var worst float64
		for i := 0; i < m; i++ {
			worst = math.Max(worst, math.Abs(math.Abs(check.At(i, i))-1))
		}
		w = updated
		if worst < opts.Tolerance {
			return w, it, true
		}
	}
	return w, opts.MaxIterations, false
}

// decorrelate returns (W·Wᵀ)^-1/2 · W, which makes the rows of W
// orthonormal without favouring any one of them.
func decorrelate(w *mat.Dense) *mat.Dense {
	m, _ := w.Dims()
	var wwt mat.SymDense
	wwt.SymOuterK(1, w)

	var eig mat.EigenSym
	if ok := eig.Factorize(&wwt, true); !ok {
		return mat.DenseCopyOf(w)
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	d := mat.NewDiagDense(m, nil)
	for i, v := range vals {
		d.SetDiag(i, 1/math.Sqrt(math.Max(v, 1e-300)))
	}
	var inv, tmp, out mat.Dense
	tmp.Mul(&vecs, d)
	inv.Mul(&tmp, vecs.T())
	out.Mul(&inv, w)
	return &out
}
