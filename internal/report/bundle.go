package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/banshee-data/homerange/internal/fsutil"
	"github.com/banshee-data/homerange/internal/homerange"
	"github.com/banshee-data/homerange/internal/kde"
)

// Artefact file names inside a bundle directory.
const (
	GeoJSONFile = "home_ranges.geojson"
	AreasFile   = "areas.csv"
	SummaryFile = "summary.html"
	PlotsDir    = "plots"
)

// Bundle writes every report for one run into Dir.
type Bundle struct {
	FS  fsutil.FileSystem
	Dir string

	// Levels are the estimator's area levels; Unit labels areas.
	Levels []float64
	Unit   string

	// Plots enables the per-individual PNGs under Dir/plots.
	Plots bool
}

// Write writes the GeoJSON, area CSV and HTML summary, plus a UD plot for
// each estimated individual and an LSCV plot for each individual with a
// score curve. individuals must be in the same order as results. It
// returns the paths written.
func (b *Bundle) Write(results []homerange.Result, individuals []kde.Observations) ([]string, error) {
	if len(individuals) != len(results) {
		return nil, fmt.Errorf("got %d individuals and %d results", len(individuals), len(results))
	}
	if err := b.FS.MkdirAll(b.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	var written []string
	emit := func(name string, write func(io.Writer) error) error {
		path := filepath.Join(b.Dir, name)
		f, err := b.FS.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if err := write(f); err != nil {
			f.Close()
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", path, err)
		}
		written = append(written, path)
		return nil
	}

	if err := emit(GeoJSONFile, func(w io.Writer) error { return WriteGeoJSON(w, results, b.Unit) }); err != nil {
		return written, err
	}
	if err := emit(AreasFile, func(w io.Writer) error { return WriteAreaCSV(w, results, b.Levels) }); err != nil {
		return written, err
	}
	if err := emit(SummaryFile, func(w io.Writer) error { return WriteSummaryHTML(w, results, b.Levels, b.Unit) }); err != nil {
		return written, err
	}

	if !b.Plots {
		return written, nil
	}
	if err := b.FS.MkdirAll(filepath.Join(b.Dir, PlotsDir), 0o755); err != nil {
		return written, fmt.Errorf("create plot directory: %w", err)
	}
	stems := fileStems(results)
	for i := range results {
		r := &results[i]
		if r.UD != nil {
			name := filepath.Join(PlotsDir, stems[i]+"_ud.png")
			if err := emit(name, func(w io.Writer) error { return WriteUDPlot(w, r, individuals[i]) }); err != nil {
				return written, err
			}
		}
		if len(r.Bandwidth.Curve) > 0 {
			name := filepath.Join(PlotsDir, stems[i]+"_lscv.png")
			if err := emit(name, func(w io.Writer) error { return WriteLSCVPlot(w, r) }); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// fileStems returns a distinct file-safe name for every individual. A
// name already issued gets the lowest free numeric suffix.
func fileStems(results []homerange.Result) []string {
	stems := make([]string, len(results))
	issued := make(map[string]bool, len(results))
	next := make(map[string]int)
	for i := range results {
		base := sanitizeFilename(results[i].ID)
		s := base
		if issued[s] {
			n := max(next[base], 2)
			for issued[fmt.Sprintf("%s_%d", base, n)] {
				n++
			}
			s = fmt.Sprintf("%s_%d", base, n)
			next[base] = n + 1
		}
		issued[s] = true
		stems[i] = s
	}
	return stems
}

// sanitizeFilename keeps ASCII letters, digits, dot, underscore and dash,
// collapsing any other run of characters to one underscore.
func sanitizeFilename(id string) string {
	const maxLen = 96
	var b strings.Builder
	pending := false
	for _, r := range id {
		if b.Len() >= maxLen {
			break
		}
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '.' || r == '_' || r == '-'
		if !ok {
			pending = true
			continue
		}
		if pending && b.Len() > 0 {
			b.WriteByte('_')
		}
		pending = false
		b.WriteRune(r)
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "individual"
	}
	return out
}
