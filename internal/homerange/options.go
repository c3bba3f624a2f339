package homerange

import (
	"fmt"

	"github.com/banshee-data/homerange/internal/config"
	"github.com/banshee-data/homerange/internal/kde"
	"github.com/banshee-data/homerange/internal/units"
)

// Options configures an Estimator.
type Options struct {
	Bandwidth kde.BandwidthOptions
	Grid      kde.GridOptions
	Surface   kde.SurfaceOptions
	Contour   kde.ContourOptions

	// Level is the probability mass of the home-range contour.
	Level float64
	// AreaLevels are the extra levels reported in Result.Areas.
	AreaLevels []float64
	// AreaUnit labels areas scaled by Contour.AreaScale.
	AreaUnit string

	// SharedGrid evaluates every individual on one grid covering the
	// whole batch.
	SharedGrid bool
	// Workers bounds the number of individuals estimated concurrently;
	// zero means GOMAXPROCS.
	Workers int
}

// DefaultOptions returns href bandwidths, a 95% contour and areas in
// square metres.
func DefaultOptions() Options {
	return Options{
		Bandwidth:  kde.DefaultBandwidthOptions(),
		Grid:       kde.DefaultGridOptions(),
		Surface:    kde.DefaultSurfaceOptions(),
		Contour:    kde.ContourOptions{AreaScale: 1},
		Level:      kde.DefaultLevel,
		AreaLevels: []float64{0.5, 0.75, 0.9, 0.95},
		AreaUnit:   units.M2,
	}
}

// OptionsFromConfig builds Options from a loaded EstimatorConfig. The
// config is expected to have passed Validate.
func OptionsFromConfig(cfg *config.EstimatorConfig) Options {
	opts := DefaultOptions()
	opts.Bandwidth = kde.BandwidthOptions{
		Method:        cfg.GetBandwidthMethod(),
		Fixed:         cfg.GetFixedBandwidth(),
		LSCVMinFactor: cfg.GetLSCVMinFactor(),
		LSCVMaxFactor: cfg.GetLSCVMaxFactor(),
		LSCVSteps:     cfg.GetLSCVSteps(),
	}
	opts.Grid = kde.GridOptions{
		CellSize:          cfg.GetCellSize(),
		Cells:             cfg.GetGridCells(),
		PaddingBandwidths: cfg.GetPaddingBandwidths(),
		MaxCells:          cfg.GetMaxGridCells(),
	}
	opts.Surface.MassTolerance = cfg.GetMassTolerance()
	opts.Contour = kde.ContourOptions{AreaScale: cfg.GetAreaScale()}
	opts.Level = cfg.GetContourLevel()
	opts.AreaLevels = cfg.GetAreaLevels()
	opts.AreaUnit = cfg.GetAreaUnit()
	opts.SharedGrid = cfg.GetSharedGrid()
	opts.Workers = cfg.GetWorkers()
	return opts
}

// Validate checks the options without looking at any data.
func (o Options) Validate() error {
	if err := o.Bandwidth.Validate(); err != nil {
		return fmt.Errorf("bandwidth: %w", err)
	}
	if err := o.Grid.Validate(); err != nil {
		return fmt.Errorf("grid: %w", err)
	}
	if err := kde.ValidateLevel(o.Level); err != nil {
		return err
	}
	seen := make(map[float64]bool, len(o.AreaLevels))
	for _, p := range o.AreaLevels {
		if err := kde.ValidateLevel(p); err != nil {
			return fmt.Errorf("area levels: %w", err)
		}
		if seen[p] {
			return fmt.Errorf("area levels: duplicate level %g", p)
		}
		seen[p] = true
	}
	if o.Contour.AreaScale < 0 {
		return fmt.Errorf("area scale must be positive, got %g", o.Contour.AreaScale)
	}
	if o.Surface.MassTolerance < 0 || o.Surface.MassTolerance >= 1 {
		return fmt.Errorf("mass tolerance must be in [0, 1), got %g", o.Surface.MassTolerance)
	}
	if o.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", o.Workers)
	}
	return nil
}
