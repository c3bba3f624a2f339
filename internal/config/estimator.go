package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/banshee-data/homerange/internal/kde"
	"github.com/banshee-data/homerange/internal/units"
)

// DefaultConfigPath is the path to the canonical estimator defaults file.
// This is the single source of truth for all default estimator values.
const DefaultConfigPath = "config/homerange.defaults.json"

// EstimatorConfig represents the root configuration for home-range
// estimation. Every field is optional; the Get* methods supply defaults
// for fields left unset, so partial configs are safe.
type EstimatorConfig struct {
	// Grid params
	CellSize          *float64 `json:"cell_size,omitempty"`
	GridCells         *int     `json:"grid_cells,omitempty"`
	MaxGridCells      *int     `json:"max_grid_cells,omitempty"`
	PaddingBandwidths *float64 `json:"padding_bandwidths,omitempty"`
	SharedGrid        *bool    `json:"shared_grid,omitempty"`

	// Bandwidth params
	BandwidthMethod *string  `json:"bandwidth_method,omitempty"` // href, lscv or fixed
	FixedBandwidth  *float64 `json:"fixed_bandwidth,omitempty"`
	LSCVMinFactor   *float64 `json:"lscv_min_factor,omitempty"`
	LSCVMaxFactor   *float64 `json:"lscv_max_factor,omitempty"`
	LSCVSteps       *int     `json:"lscv_steps,omitempty"`

	// Contour params
	ContourLevel *float64  `json:"contour_level,omitempty"`
	AreaLevels   []float64 `json:"area_levels,omitempty"`
	AreaUnit     *string   `json:"area_unit,omitempty"`
	AreaScale    *float64  `json:"area_scale,omitempty"` // overrides area_unit when set

	// Surface params
	MassTolerance *float64 `json:"mass_tolerance,omitempty"`
	Workers       *int     `json:"workers,omitempty"` // 0 = GOMAXPROCS
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyEstimatorConfig returns an EstimatorConfig with all fields set to nil.
// Use LoadEstimatorConfig to load actual values from a file.
func EmptyEstimatorConfig() *EstimatorConfig {
	return &EstimatorConfig{}
}

// DefaultEstimatorConfig returns a config with every field set to the value
// its Get* method falls back to.
func DefaultEstimatorConfig() *EstimatorConfig {
	return &EstimatorConfig{
		GridCells:         ptrInt(100),
		MaxGridCells:      ptrInt(4_000_000),
		PaddingBandwidths: ptrFloat64(4),
		SharedGrid:        ptrBool(false),
		BandwidthMethod:   ptrString(string(kde.MethodReference)),
		LSCVMinFactor:     ptrFloat64(0.1),
		LSCVMaxFactor:     ptrFloat64(1.5),
		LSCVSteps:         ptrInt(40),
		ContourLevel:      ptrFloat64(kde.DefaultLevel),
		AreaLevels:        []float64{0.5, 0.75, 0.9, 0.95},
		AreaUnit:          ptrString(units.HA),
		MassTolerance:     ptrFloat64(0.01),
		Workers:           ptrInt(0),
	}
}

// LoadEstimatorConfig loads an EstimatorConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadEstimatorConfig(path string) (*EstimatorConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyEstimatorConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *EstimatorConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadEstimatorConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func validLevel(p float64) bool {
	return p > 0 && p <= 1
}

// Validate checks that the configuration values are valid. Only fields
// that are set are checked, except where two fields interact.
func (c *EstimatorConfig) Validate() error {
	if c.CellSize != nil && !positiveFinite(*c.CellSize) {
		return fmt.Errorf("cell_size must be positive, got %g", *c.CellSize)
	}
	if c.GridCells != nil && *c.GridCells < 1 {
		return fmt.Errorf("grid_cells must be at least 1, got %d", *c.GridCells)
	}
	if c.MaxGridCells != nil && *c.MaxGridCells < 1 {
		return fmt.Errorf("max_grid_cells must be at least 1, got %d", *c.MaxGridCells)
	}
	if c.PaddingBandwidths != nil && (*c.PaddingBandwidths < 0 || math.IsNaN(*c.PaddingBandwidths)) {
		return fmt.Errorf("padding_bandwidths must be non-negative, got %g", *c.PaddingBandwidths)
	}

	if c.BandwidthMethod != nil {
		m, err := kde.ParseMethod(*c.BandwidthMethod)
		if err != nil {
			return fmt.Errorf("bandwidth_method: %w", err)
		}
		if m == kde.MethodFixed && c.FixedBandwidth == nil {
			return fmt.Errorf("bandwidth_method %q requires fixed_bandwidth", *c.BandwidthMethod)
		}
	}
	if c.FixedBandwidth != nil && !positiveFinite(*c.FixedBandwidth) {
		return fmt.Errorf("fixed_bandwidth must be positive, got %g", *c.FixedBandwidth)
	}
	if c.LSCVMinFactor != nil && !positiveFinite(*c.LSCVMinFactor) {
		return fmt.Errorf("lscv_min_factor must be positive, got %g", *c.LSCVMinFactor)
	}
	if c.LSCVMaxFactor != nil && !positiveFinite(*c.LSCVMaxFactor) {
		return fmt.Errorf("lscv_max_factor must be positive, got %g", *c.LSCVMaxFactor)
	}
	if c.GetLSCVMaxFactor() <= c.GetLSCVMinFactor() {
		return fmt.Errorf("lscv_max_factor (%g) must exceed lscv_min_factor (%g)", c.GetLSCVMaxFactor(), c.GetLSCVMinFactor())
	}
	if c.LSCVSteps != nil && *c.LSCVSteps < 3 {
		return fmt.Errorf("lscv_steps must be at least 3, got %d", *c.LSCVSteps)
	}

	if c.ContourLevel != nil && !validLevel(*c.ContourLevel) {
		return fmt.Errorf("contour_level must be in (0, 1], got %g", *c.ContourLevel)
	}
	seen := make(map[float64]bool, len(c.AreaLevels))
	for _, p := range c.AreaLevels {
		if !validLevel(p) {
			return fmt.Errorf("area_levels entries must be in (0, 1], got %g", p)
		}
		if seen[p] {
			return fmt.Errorf("area_levels contains %g more than once", p)
		}
		seen[p] = true
	}
	if c.AreaUnit != nil && !units.IsValid(*c.AreaUnit) {
		return fmt.Errorf("area_unit must be one of %s, got %q", units.GetValidUnitsString(), *c.AreaUnit)
	}
	if c.AreaScale != nil && !positiveFinite(*c.AreaScale) {
		return fmt.Errorf("area_scale must be positive, got %g", *c.AreaScale)
	}

	if c.MassTolerance != nil && (*c.MassTolerance < 0 || *c.MassTolerance >= 1) {
		return fmt.Errorf("mass_tolerance must be in [0, 1), got %g", *c.MassTolerance)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}

	return nil
}

// GetCellSize returns the cell_size value, or 0 when the grid resolution
// is set by grid_cells.
func (c *EstimatorConfig) GetCellSize() float64 {
	if c.CellSize == nil {
		return 0
	}
	return *c.CellSize
}

// GetGridCells returns the grid_cells value or the default.
func (c *EstimatorConfig) GetGridCells() int {
	if c.GridCells == nil {
		return 100
	}
	return *c.GridCells
}

// GetMaxGridCells returns the max_grid_cells value or the default.
func (c *EstimatorConfig) GetMaxGridCells() int {
	if c.MaxGridCells == nil {
		return 4_000_000
	}
	return *c.MaxGridCells
}

// GetPaddingBandwidths returns the padding_bandwidths value or the default.
func (c *EstimatorConfig) GetPaddingBandwidths() float64 {
	if c.PaddingBandwidths == nil {
		return 4
	}
	return *c.PaddingBandwidths
}

// GetSharedGrid returns the shared_grid value or the default.
func (c *EstimatorConfig) GetSharedGrid() bool {
	if c.SharedGrid == nil {
		return false
	}
	return *c.SharedGrid
}

// GetBandwidthMethod returns the parsed bandwidth_method or href. An
// unparseable value also yields href; Validate reports it.
func (c *EstimatorConfig) GetBandwidthMethod() kde.Method {
	if c.BandwidthMethod == nil {
		return kde.MethodReference
	}
	m, err := kde.ParseMethod(*c.BandwidthMethod)
	if err != nil {
		return kde.MethodReference
	}
	return m
}

// GetFixedBandwidth returns the fixed_bandwidth value or 0.
func (c *EstimatorConfig) GetFixedBandwidth() float64 {
	if c.FixedBandwidth == nil {
		return 0
	}
	return *c.FixedBandwidth
}

// GetLSCVMinFactor returns the lscv_min_factor value or the default.
func (c *EstimatorConfig) GetLSCVMinFactor() float64 {
	if c.LSCVMinFactor == nil {
		return 0.1
	}
	return *c.LSCVMinFactor
}

// GetLSCVMaxFactor returns the lscv_max_factor value or the default.
func (c *EstimatorConfig) GetLSCVMaxFactor() float64 {
	if c.LSCVMaxFactor == nil {
		return 1.5
	}
	return *c.LSCVMaxFactor
}

// GetLSCVSteps returns the lscv_steps value or the default.
func (c *EstimatorConfig) GetLSCVSteps() int {
	if c.LSCVSteps == nil {
		return 40
	}
	return *c.LSCVSteps
}

// GetContourLevel returns the contour_level value or the default.
func (c *EstimatorConfig) GetContourLevel() float64 {
	if c.ContourLevel == nil {
		return kde.DefaultLevel
	}
	return *c.ContourLevel
}

// GetAreaLevels returns the area_levels value or the default.
func (c *EstimatorConfig) GetAreaLevels() []float64 {
	if c.AreaLevels == nil {
		return []float64{0.5, 0.75, 0.9, 0.95}
	}
	return append([]float64(nil), c.AreaLevels...)
}

// GetAreaUnit returns the area_unit value or the default. When area_scale
// is set the unit is reported as "custom".
func (c *EstimatorConfig) GetAreaUnit() string {
	if c.AreaScale != nil {
		return "custom"
	}
	if c.AreaUnit == nil {
		return units.HA
	}
	return *c.AreaUnit
}

// GetAreaScale returns the factor applied to areas in squared coordinate
// units: area_scale when set, otherwise the factor of area_unit.
func (c *EstimatorConfig) GetAreaScale() float64 {
	if c.AreaScale != nil {
		return *c.AreaScale
	}
	return units.AreaFactor(c.GetAreaUnit())
}

// GetMassTolerance returns the mass_tolerance value or the default.
func (c *EstimatorConfig) GetMassTolerance() float64 {
	if c.MassTolerance == nil {
		return 0.01
	}
	return *c.MassTolerance
}

// GetWorkers returns the workers value or 0 (GOMAXPROCS).
func (c *EstimatorConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}
