package homerange

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/homerange/internal/kde"
)

// Result is the outcome of estimating one individual. Err is set when the
// individual could not be estimated; fields filled before the failure
// (for example the LSCV score curve) are kept.
type Result struct {
	ID string
	// N is the number of valid observations used; Dropped counts entries
	// removed for a missing coordinate.
	N       int
	Dropped int

	Bandwidth kde.Bandwidth
	UD        *kde.UD
	Contour   *kde.Contour
	Areas     []kde.LevelArea

	// Warnings are non-fatal conditions such as a truncated grid.
	Warnings []string
	// Fallback is set when the bandwidth was recomputed with href after
	// LSCV failed to converge.
	Fallback bool

	Elapsed time.Duration
	Err     error
}

// OK reports whether the individual was estimated.
func (r *Result) OK() bool { return r.Err == nil && r.Contour != nil }

// Estimator runs the home-range pipeline over batches of individuals.
type Estimator struct {
	opts Options
}

// NewEstimator validates opts and returns an Estimator.
func NewEstimator(opts Options) (*Estimator, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid estimator options: %w", err)
	}
	return &Estimator{opts: opts}, nil
}

// Options returns the estimator's options.
func (e *Estimator) Options() Options { return e.opts }

// Estimate runs the pipeline for a single individual on its own grid.
func (e *Estimator) Estimate(ctx context.Context, obs kde.Observations) Result {
	prepared, results := prepare([]kde.Observations{obs})
	e.selectBandwidths(ctx, prepared, results)
	e.buildSurfaces(ctx, prepared, results, e.opts.Grid)
	return results[0]
}

// Run estimates every individual. Individuals are independent: a failure
// is stored in that individual's Result and the others proceed. Results
// are returned in input order. The returned error is non-nil only when ctx
// ends before the batch completes; individuals not reached carry ctx's
// error.
func (e *Estimator) Run(ctx context.Context, individuals []kde.Observations) ([]Result, error) {
	start := time.Now()
	prepared, results := prepare(individuals)

	e.selectBandwidths(ctx, prepared, results)

	gridOpts := e.opts.Grid
	if e.opts.SharedGrid {
		if ext, ok := sharedExtent(prepared, results, gridOpts.PaddingBandwidths); ok {
			gridOpts.Extent = &ext
			diagf("shared grid extent (%g, %g)-(%g, %g)", ext.MinX, ext.MinY, ext.MaxX, ext.MaxY)
		}
	}

	e.buildSurfaces(ctx, prepared, results, gridOpts)

	failed := 0
	for i := range results {
		if results[i].Err != nil {
			failed++
		}
	}
	diagf("estimated %d individuals (%d failed) in %s", len(results), failed, time.Since(start).Round(time.Millisecond))
	return results, ctx.Err()
}

// RetryWithReference re-estimates with href every individual whose LSCV
// search did not converge. It returns a new result slice; retried entries
// are marked Fallback and carry a warning naming the failed search. It is
// an explicit caller decision and never happens inside Run.
func (e *Estimator) RetryWithReference(ctx context.Context, individuals []kde.Observations, results []Result) ([]Result, error) {
	if len(individuals) != len(results) {
		return nil, fmt.Errorf("got %d individuals and %d results", len(individuals), len(results))
	}

	var idx []int
	var retry []kde.Observations
	for i := range results {
		if errors.Is(results[i].Err, kde.ErrBandwidthConvergence) {
			idx = append(idx, i)
			retry = append(retry, individuals[i])
		}
	}
	out := append([]Result(nil), results...)
	if len(retry) == 0 {
		return out, nil
	}

	opts := e.opts
	opts.Bandwidth.Method = kde.MethodReference
	if opts.SharedGrid {
		// Reuse the batch's grid so retried UDs stay comparable, grown to
		// cover every retried individual padded by its href.
		for i := range results {
			if results[i].UD != nil {
				g := results[i].UD.Grid
				ext := g.Bounds()
				for k, j := range idx {
					ext = ext.Union(referenceExtent(retry[k], results[j], opts.Grid.PaddingBandwidths))
				}
				opts.Grid.Extent = &ext
				opts.Grid.CellSize = g.CellSize
				opts.SharedGrid = false
				break
			}
		}
	}
	href := &Estimator{opts: opts}
	redone, err := href.Run(ctx, retry)

	for k, i := range idx {
		r := redone[k]
		r.Fallback = true
		r.Warnings = append([]string{fmt.Sprintf("%v; bandwidth fell back to href", results[i].Err)}, r.Warnings...)
		// Keep the failed curve for plotting.
		r.Bandwidth.Curve = results[i].Bandwidth.Curve
		out[i] = r
		opsf("%s: LSCV did not converge, re-estimated with href", r.ID)
	}
	return out, err
}

func prepare(individuals []kde.Observations) ([]kde.Observations, []Result) {
	prepared := make([]kde.Observations, len(individuals))
	results := make([]Result, len(individuals))
	for i, obs := range individuals {
		clean, dropped := obs.Clean()
		prepared[i] = clean
		results[i] = Result{ID: obs.ID, N: clean.Len(), Dropped: dropped}
		if dropped > 0 {
			diagf("%s: dropped %d observations with missing coordinates", obs.ID, dropped)
		}
	}
	return prepared, results
}

// forEach calls fn for every index with at most Workers calls in flight.
// Each call owns results[i]; fn never returns an error so one individual
// cannot cancel another.
func (e *Estimator) forEach(ctx context.Context, results []Result, fn func(i int)) {
	workers := e.opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range results {
		if results[i].Err != nil {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Estimator) selectBandwidths(ctx context.Context, prepared []kde.Observations, results []Result) {
	e.forEach(ctx, results, func(i int) {
		t0 := time.Now()
		bw, err := kde.SelectBandwidth(prepared[i], e.opts.Bandwidth)
		results[i].Bandwidth = bw
		results[i].Elapsed += time.Since(t0)
		if err != nil {
			results[i].Err = err
			opsf("%s: %v", results[i].ID, err)
		}
	})
}

func (e *Estimator) buildSurfaces(ctx context.Context, prepared []kde.Observations, results []Result, gridOpts kde.GridOptions) {
	e.forEach(ctx, results, func(i int) {
		t0 := time.Now()
		err := e.surface(ctx, prepared[i], &results[i], gridOpts)
		results[i].Elapsed += time.Since(t0)
		if err != nil {
			results[i].Err = err
			opsf("%s: %v", results[i].ID, err)
			return
		}
		r := &results[i]
		diagf("%s: n=%d h=%g (%s) area=%g %s polygons=%d mass=%.4f in %s",
			r.ID, r.N, r.Bandwidth.H, r.Bandwidth.Method, r.Contour.Area, e.opts.AreaUnit,
			len(r.Contour.Polygons), r.Contour.Mass, r.Elapsed.Round(time.Microsecond))
	})
}

// surface builds the grid, UD, contour and area curve of one individual
// whose bandwidth has been selected.
func (e *Estimator) surface(ctx context.Context, obs kde.Observations, r *Result, gridOpts kde.GridOptions) error {
	h := r.Bandwidth.H
	grid, err := kde.NewGrid(obs.Bounds(), h, gridOpts)
	if err != nil {
		return fmt.Errorf("individual %q: %w", obs.ID, err)
	}
	tracef("%s: grid %dx%d cell=%g", obs.ID, grid.NX, grid.NY, grid.CellSize)

	ud, err := kde.BuildUD(ctx, obs, h, grid, e.opts.Surface)
	if err != nil {
		return err
	}
	r.UD = ud
	if ud.Truncation != nil {
		r.Warnings = append(r.Warnings, ud.Truncation.String())
	}

	c, err := kde.ExtractContour(ud, e.opts.Level, e.opts.Contour)
	if err != nil {
		return err
	}
	r.Contour = c

	if len(e.opts.AreaLevels) > 0 {
		areas, err := kde.AreaCurve(ud, e.opts.AreaLevels, e.opts.Contour)
		if err != nil {
			return err
		}
		r.Areas = areas
	}
	return nil
}

// sharedExtent returns the union of every individual's data bounds padded
// by its own bandwidth. Individuals whose LSCV search failed are padded by
// href so a later RetryWithReference still lands on the grid.
func sharedExtent(prepared []kde.Observations, results []Result, padding float64) (kde.Bounds, bool) {
	var ext kde.Bounds
	found := false
	for i := range results {
		var b kde.Bounds
		switch {
		case results[i].Err == nil:
			b = prepared[i].Bounds().Pad(padding * results[i].Bandwidth.H)
		case errors.Is(results[i].Err, kde.ErrBandwidthConvergence) && results[i].Bandwidth.Reference > 0:
			b = prepared[i].Bounds().Pad(padding * results[i].Bandwidth.Reference)
		default:
			continue
		}
		if !found {
			ext, found = b, true
			continue
		}
		ext = ext.Union(b)
	}
	return ext, found
}

// referenceExtent returns the clean bounds of obs padded by padding·href.
func referenceExtent(obs kde.Observations, r Result, padding float64) kde.Bounds {
	clean, _ := obs.Clean()
	href := r.Bandwidth.Reference
	if !(href > 0) {
		href, _ = kde.ReferenceBandwidth(clean)
	}
	return clean.Bounds().Pad(padding * href)
}
