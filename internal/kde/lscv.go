package kde

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// ScorePoint is one evaluated candidate of a bandwidth search.
type ScorePoint struct {
	H     float64
	Score float64
}

// ScoreFunc maps a candidate bandwidth to a score to be minimised.
type ScoreFunc func(h float64) float64

// Candidates returns steps bandwidths spaced geometrically from lo to hi
// inclusive.
func Candidates(lo, hi float64, steps int) []float64 {
	if steps < 2 {
		return []float64{lo}
	}
	return floats.LogSpan(make([]float64, steps), lo, hi)
}

// MinimizeScore evaluates score at every candidate and returns the
// candidate with the lowest score, the evaluated curve, and whether the
// minimum is interior. A minimum on the first or last candidate means the
// curve is monotone over the range (or still falling at its edge) and the
// search has not converged. Ties resolve to the earliest candidate.
func MinimizeScore(score ScoreFunc, candidates []float64) (best float64, curve []ScorePoint, interior bool) {
	if len(candidates) == 0 {
		return 0, nil, false
	}
	curve = make([]ScorePoint, len(candidates))
	bestIdx := -1
	for i, h := range candidates {
		s := score(h)
		curve[i] = ScorePoint{H: h, Score: s}
		if math.IsNaN(s) {
			continue
		}
		if bestIdx < 0 || s < curve[bestIdx].Score {
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return 0, curve, false
	}
	interior = bestIdx > 0 && bestIdx < len(candidates)-1
	return candidates[bestIdx], curve, interior
}

// LSCVScore returns the least-squares cross-validation score of a bivariate
// Gaussian kernel estimate for obs:
//
//	CV(h) = ∫f̂² − (2/n)·Σ f̂₋ᵢ(Xᵢ)
//	      = 1/(4πn²h²)·Σᵢ Σⱼ exp(−d²ᵢⱼ/4h²) − 2/(πn(n−1)h²)·Σᵢ<ⱼ exp(−d²ᵢⱼ/2h²)
//
// Pairwise squared distances are computed once and shared by every call.
func LSCVScore(obs Observations) ScoreFunc {
	n := len(obs.Points)
	d2 := make([]float64, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		pi := obs.Points[i]
		for j := i + 1; j < n; j++ {
			dx := pi.X - obs.Points[j].X
			dy := pi.Y - obs.Points[j].Y
			d2 = append(d2, dx*dx+dy*dy)
		}
	}
	nf := float64(n)

	return func(h float64) float64 {
		h2 := h * h
		var conv, loo float64
		for _, d := range d2 {
			conv += math.Exp(-d / (4 * h2))
			loo += math.Exp(-d / (2 * h2))
		}
		// Diagonal terms (i == j) of the double sum contribute exp(0) each.
		integral := (nf + 2*conv) / (4 * math.Pi * nf * nf * h2)
		cross := 2 * loo / (math.Pi * nf * (nf - 1) * h2)
		return integral - cross
	}
}

// SearchBandwidth minimises score over steps geometrically spaced
// candidates in [lo, hi]. A minimum on either end of the range is reported
// as *BandwidthConvergenceFailure together with the evaluated curve.
func SearchBandwidth(id string, score ScoreFunc, lo, hi float64, steps int) (float64, []ScorePoint, error) {
	best, curve, interior := MinimizeScore(score, Candidates(lo, hi, steps))
	for _, sp := range curve {
		tracef("%s: h=%g score=%g", id, sp.H, sp.Score)
	}
	if !interior {
		opsf("%s: bandwidth search did not converge in h=[%g, %g]; lowest score at h=%g", id, lo, hi, best)
		return 0, curve, &BandwidthConvergenceFailure{ID: id, MinH: lo, MaxH: hi, AtBoundary: best}
	}
	return best, curve, nil
}

func lscvBandwidth(obs Observations, href float64, opts BandwidthOptions) (Bandwidth, error) {
	lo := href * opts.LSCVMinFactor
	hi := href * opts.LSCVMaxFactor
	h, curve, err := SearchBandwidth(obs.ID, LSCVScore(obs), lo, hi, opts.LSCVSteps)
	if err != nil {
		return Bandwidth{Method: MethodLSCV, Reference: href, Curve: curve}, err
	}
	diagf("%s: lscv h=%g (href=%g, n=%d)", obs.ID, h, href, len(obs.Points))
	return Bandwidth{H: h, Method: MethodLSCV, Reference: href, Curve: curve}, nil
}
