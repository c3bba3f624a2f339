package kde

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// UD is a utilization distribution: kernel density evaluated at the centre
// of every grid cell. Values are not renormalised, so Mass reveals how much
// probability the grid lost at its edges.
type UD struct {
	ID     string
	Grid   Grid
	H      float64
	Values []float64
	// Mass is Σ Values·CellArea; close to 1 for an adequately padded grid.
	Mass float64
	// Truncation is set when the grid cut off a noticeable share of the
	// kernel mass or its cells are wider than the bandwidth.
	Truncation *GridTruncationWarning
}

// At returns the density of cell (i, j).
func (u *UD) At(i, j int) float64 { return u.Values[u.Grid.Index(i, j)] }

// Max returns the largest density value.
func (u *UD) Max() float64 {
	if len(u.Values) == 0 {
		return 0
	}
	return floats.Max(u.Values)
}

// Sum returns the plain sum of the density values.
func (u *UD) Sum() float64 { return floats.Sum(u.Values) }

// SurfaceOptions configures BuildUD.
type SurfaceOptions struct {
	// Workers bounds the number of rows evaluated concurrently; zero means
	// GOMAXPROCS.
	Workers int
	// MassTolerance is the largest acceptable deviation of Mass from 1.
	// A shortfall is reported as truncation and an excess as a coarse grid.
	MassTolerance float64
	// MinPaddingBandwidths is the smallest margin around the data, in
	// bandwidths, that is not reported as truncated.
	MinPaddingBandwidths float64
}

// DefaultSurfaceOptions returns a 1% mass tolerance and a three-bandwidth
// minimum margin.
func DefaultSurfaceOptions() SurfaceOptions {
	return SurfaceOptions{MassTolerance: 0.01, MinPaddingBandwidths: 3}
}

// BuildUD evaluates the bivariate Gaussian kernel estimate
//
//	UD(x) = 1/(n·h²) · Σ K((x − Xᵢ)/h),  K(u) = exp(−|u|²/2) / 2π
//
// at every cell centre of grid. Rows are independent and evaluated
// concurrently. The context is checked before each row.
func BuildUD(ctx context.Context, obs Observations, h float64, grid Grid, opts SurfaceOptions) (*UD, error) {
	n := len(obs.Points)
	if n < MinObservations {
		return nil, &InsufficientDataError{ID: obs.ID, N: n}
	}
	if !(h > 0) {
		return nil, fmt.Errorf("bandwidth must be positive, got %g", h)
	}
	if grid.Len() == 0 {
		return nil, fmt.Errorf("empty grid")
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	norm := 1 / (float64(n) * h * h * 2 * math.Pi)
	inv2h2 := 1 / (2 * h * h)
	values := make([]float64, grid.Len())

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for j := 0; j < grid.NY; j++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			y := grid.Y(j)
			// The y factor of the kernel is shared by the whole row.
			ey := make([]float64, n)
			for k, p := range obs.Points {
				dy := y - p.Y
				ey[k] = math.Exp(-dy * dy * inv2h2)
			}
			row := values[j*grid.NX : (j+1)*grid.NX]
			for i := range row {
				x := grid.X(i)
				var sum float64
				for k, p := range obs.Points {
					if ey[k] == 0 {
						continue
					}
					dx := x - p.X
					sum += ey[k] * math.Exp(-dx*dx*inv2h2)
				}
				row[i] = sum * norm
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ud := &UD{
		ID:     obs.ID,
		Grid:   grid,
		H:      h,
		Values: values,
		Mass:   floats.Sum(values) * grid.CellArea(),
	}

	pad := grid.PaddingBandwidths(obs.Bounds(), h)
	truncated := pad < opts.MinPaddingBandwidths || ud.Mass < 1-opts.MassTolerance
	coarse := grid.CellSize > h || ud.Mass > 1+opts.MassTolerance
	if truncated || coarse {
		ud.Truncation = &GridTruncationWarning{
			ID:                obs.ID,
			Mass:              ud.Mass,
			PaddingBandwidths: pad,
			CellSize:          grid.CellSize,
			H:                 h,
			Truncated:         truncated,
			Coarse:            coarse,
		}
		opsf("%s", ud.Truncation.String())
	}
	diagf("%s: UD %dx%d h=%g mass=%.5f", obs.ID, grid.NX, grid.NY, h, ud.Mass)
	return ud, nil
}
