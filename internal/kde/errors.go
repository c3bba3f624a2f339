package kde

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is. The typed errors below unwrap to
// these so callers can branch on the kind without a type assertion.
var (
	ErrInsufficientData     = errors.New("insufficient observations")
	ErrBandwidthConvergence = errors.New("bandwidth search did not converge")
	ErrEmptyDistribution    = errors.New("utilization distribution is empty")
)

// InsufficientDataError reports an observation set that cannot support a
// density estimate.
type InsufficientDataError struct {
	ID     string
	N      int
	Reason string
}

func (e *InsufficientDataError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("individual %q: %s (n=%d)", e.ID, e.Reason, e.N)
	}
	return fmt.Sprintf("individual %q: need at least %d valid observations, got %d", e.ID, MinObservations, e.N)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

// BandwidthConvergenceFailure reports an LSCV search whose score curve had
// no interior minimum over the searched range.
type BandwidthConvergenceFailure struct {
	ID   string
	MinH float64
	MaxH float64
	// AtBoundary is the candidate at which the lowest score was found,
	// always MinH or MaxH.
	AtBoundary float64
}

func (e *BandwidthConvergenceFailure) Error() string {
	return fmt.Sprintf("individual %q: LSCV found no interior minimum in h=[%g, %g] (lowest score at %g)",
		e.ID, e.MinH, e.MaxH, e.AtBoundary)
}

func (e *BandwidthConvergenceFailure) Unwrap() error { return ErrBandwidthConvergence }

// EmptyDistributionError reports a UD with zero total mass.
type EmptyDistributionError struct {
	ID string
}

func (e *EmptyDistributionError) Error() string {
	return fmt.Sprintf("individual %q: utilization distribution sums to zero", e.ID)
}

func (e *EmptyDistributionError) Unwrap() error { return ErrEmptyDistribution }

// GridTruncationWarning is a non-fatal report that the evaluation grid does
// not represent the kernel mass faithfully. A truncating grid cut off part
// of the mass, so contour areas are biased low. A coarse grid has cells
// wider than the bandwidth, so the discrete mass can overshoot 1 and
// contours are poorly resolved.
type GridTruncationWarning struct {
	ID string
	// Mass is the discrete mass of the UD (ideally 1).
	Mass float64
	// PaddingBandwidths is how far the grid extends beyond the data, in
	// units of the bandwidth.
	PaddingBandwidths float64
	// CellSize and H are the grid cell edge and the bandwidth.
	CellSize float64
	H        float64

	Truncated bool
	Coarse    bool
}

func (w GridTruncationWarning) String() string {
	switch {
	case w.Truncated && w.Coarse:
		return fmt.Sprintf("individual %q: grid truncates the UD and its cells are coarse (mass=%.4f, padding=%.2fh, cell=%.2fh); contour areas are unreliable",
			w.ID, w.Mass, w.PaddingBandwidths, w.CellSize/w.H)
	case w.Coarse:
		return fmt.Sprintf("individual %q: grid cells are coarse for the bandwidth (mass=%.4f, cell=%.2fh); contour areas are unreliable",
			w.ID, w.Mass, w.CellSize/w.H)
	default:
		return fmt.Sprintf("individual %q: grid truncates the UD (mass=%.4f, padding=%.2fh); contour areas are biased low",
			w.ID, w.Mass, w.PaddingBandwidths)
	}
}
