// Command homerange estimates kernel density home ranges from a CSV of
// relocations and writes GeoJSON polygons, an area table, plots and an
// HTML summary. Results can also be saved to a SQLite database.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/banshee-data/homerange/internal/config"
	"github.com/banshee-data/homerange/internal/fsutil"
	"github.com/banshee-data/homerange/internal/homerange"
	"github.com/banshee-data/homerange/internal/ingest"
	"github.com/banshee-data/homerange/internal/kde"
	"github.com/banshee-data/homerange/internal/report"
	"github.com/banshee-data/homerange/internal/store"
	"github.com/banshee-data/homerange/internal/timeutil"
	"github.com/banshee-data/homerange/internal/version"
)

// clock names the default output directory.
var clock timeutil.Clock = timeutil.RealClock{}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.SetFlags(0)
		log.Fatalf("homerange: %v", err)
	}
}

// options holds the parsed command line.
type options struct {
	input      string
	configPath string
	outDir     string
	dbPath     string
	method     string
	levels     string
	level      float64
	idCol      string
	xCol       string
	yCol       string
	sharedGrid bool
	fallback   bool
	plots      bool
	logDiag    bool
	logTrace   bool
	showVer    bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("homerange", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVar(&o.input, "input", "", "CSV file of relocations (required)")
	fs.StringVar(&o.configPath, "config", "", "Estimator config JSON (defaults built in)")
	fs.StringVar(&o.outDir, "out", "", "Directory for GeoJSON, CSV, HTML and plots (defaults to homerange-<timestamp>)")
	fs.StringVar(&o.dbPath, "db", "", "SQLite database to save the run in (optional)")
	fs.StringVar(&o.method, "method", "", "Bandwidth method: href, lscv or fixed (overrides config)")
	fs.StringVar(&o.levels, "levels", "", "Comma-separated area levels, e.g. 0.5,0.95 (overrides config)")
	fs.Float64Var(&o.level, "level", 0, "Home-range contour level in (0, 1] (overrides config)")
	fs.StringVar(&o.idCol, "id-col", "id", "Individual id column; empty treats all rows as one individual")
	fs.StringVar(&o.xCol, "x-col", "x", "X coordinate column")
	fs.StringVar(&o.yCol, "y-col", "y", "Y coordinate column")
	fs.BoolVar(&o.sharedGrid, "shared-grid", false, "Evaluate every individual on one common grid")
	fs.BoolVar(&o.fallback, "lscv-fallback", false, "Re-estimate individuals whose LSCV search fails with href")
	fs.BoolVar(&o.plots, "plots", true, "Write UD and LSCV plots")
	fs.BoolVar(&o.logDiag, "log-diag", false, "Log per-individual diagnostics to stderr")
	fs.BoolVar(&o.logTrace, "log-trace", false, "Log per-row and per-candidate detail to stderr")
	fs.BoolVar(&o.showVer, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return o, nil
}

// loadConfig reads the config file (or the built-in defaults) and applies
// command-line overrides before validating.
func loadConfig(o *options) (*config.EstimatorConfig, error) {
	cfg := config.DefaultEstimatorConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadEstimatorConfig(o.configPath); err != nil {
			return nil, err
		}
	}

	if o.method != "" {
		m := o.method
		cfg.BandwidthMethod = &m
	}
	if o.levels != "" {
		levels, err := parseCSVFloat64s(o.levels)
		if err != nil {
			return nil, fmt.Errorf("-levels: %w", err)
		}
		cfg.AreaLevels = levels
	}
	if o.level != 0 {
		l := o.level
		cfg.ContourLevel = &l
	}
	if o.sharedGrid {
		shared := true
		cfg.SharedGrid = &shared
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// parseCSVFloat64s parses a comma-separated list of float64 values.
// Returns nil, nil for empty input strings.
func parseCSVFloat64s(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func setLogWriters(stderr io.Writer, o *options) {
	var diag, trace io.Writer
	if o.logDiag || o.logTrace {
		diag = stderr
	}
	if o.logTrace {
		trace = stderr
	}
	kde.SetLogWriters(stderr, diag, trace)
	homerange.SetLogWriters(stderr, diag, trace)
	store.SetLogWriters(stderr, diag, trace)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if o.showVer {
		fmt.Fprintln(stdout, version.String())
		return nil
	}
	if o.input == "" {
		return errors.New("-input is required")
	}

	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	setLogWriters(stderr, o)
	defer setLogWriters(nil, &options{})

	fsys := fsutil.OSFileSystem{}
	individuals, err := ingest.LoadFile(fsys, o.input, ingest.Columns{ID: o.idCol, X: o.xCol, Y: o.yCol})
	if err != nil {
		return err
	}
	if len(individuals) == 0 {
		return fmt.Errorf("%s: no relocations", o.input)
	}

	opts := homerange.OptionsFromConfig(cfg)
	est, err := homerange.NewEstimator(opts)
	if err != nil {
		return err
	}

	results, err := est.Run(ctx, individuals)
	if err != nil {
		return err
	}
	if o.fallback {
		if results, err = est.RetryWithReference(ctx, individuals, results); err != nil {
			return err
		}
	}

	outDir := o.outDir
	if outDir == "" {
		outDir = fmt.Sprintf("homerange-%s", clock.Now().Format("20060102-150405"))
	}
	b := &report.Bundle{FS: fsys, Dir: outDir, Levels: opts.AreaLevels, Unit: opts.AreaUnit, Plots: o.plots}
	written, err := b.Write(results, individuals)
	if err != nil {
		return err
	}

	var runID string
	if o.dbPath != "" {
		if runID, err = saveRun(ctx, o, cfg, results); err != nil {
			return err
		}
	}

	printSummary(stdout, results, opts.AreaUnit)
	fmt.Fprintf(stdout, "wrote %d files to %s\n", len(written), filepath.Clean(outDir))
	if runID != "" {
		fmt.Fprintf(stdout, "saved run %s to %s\n", runID, o.dbPath)
	}
	return nil
}

func saveRun(ctx context.Context, o *options, cfg *config.EstimatorConfig, results []homerange.Result) (string, error) {
	db, err := store.Open(o.dbPath)
	if err != nil {
		return "", err
	}
	defer db.Close()

	if err := db.MigrateUp(); err != nil {
		return "", err
	}

	params, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	run := &store.Run{
		Source:   filepath.Base(o.input),
		Method:   string(cfg.GetBandwidthMethod()),
		Level:    cfg.GetContourLevel(),
		AreaUnit: cfg.GetAreaUnit(),
		Params:   params,
	}
	return db.SaveRun(ctx, run, results)
}

func printSummary(w io.Writer, results []homerange.Result, unit string) {
	failed := 0
	for i := range results {
		r := &results[i]
		if !r.OK() {
			failed++
			fmt.Fprintf(w, "%-16s n=%-5d FAILED: %v\n", r.ID, r.N, r.Err)
			continue
		}
		note := ""
		if r.Fallback {
			note = " (href fallback)"
		}
		fmt.Fprintf(w, "%-16s n=%-5d h=%-10.4g area=%.4g %s polygons=%d%s\n",
			r.ID, r.N, r.Bandwidth.H, r.Contour.Area, unit, len(r.Contour.Polygons), note)
	}
	fmt.Fprintf(w, "%d individuals, %d failed\n", len(results), failed)
}
