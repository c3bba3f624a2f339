package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/homerange/internal/kde"
	"github.com/banshee-data/homerange/internal/store"
	"github.com/banshee-data/homerange/internal/testutil"
	"github.com/banshee-data/homerange/internal/timeutil"
)

// writeRelocations writes individuals as an id,x,y CSV and returns its path.
func writeRelocations(t *testing.T, individuals ...kde.Observations) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("id,x,y\n")
	for _, obs := range individuals {
		for _, p := range obs.Points {
			fmt.Fprintf(&b, "%s,%g,%g\n", obs.ID, p.X, p.Y)
		}
	}
	path := filepath.Join(t.TempDir(), "relocations.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
	return path
}

func TestRun_EndToEnd(t *testing.T) {
	input := writeRelocations(t,
		testutil.TwoClusters(51, "fox", 60, 800, 40),
		testutil.GaussianCluster(52, "badger", 2000, 0, 70, 50),
		kde.Observations{ID: "lonely", Points: []kde.Point{{X: 1, Y: 1}}},
	)
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	dbPath := filepath.Join(dir, "runs.db")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"-input", input, "-out", out, "-db", dbPath, "-levels", "0.5,0.95",
	}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	for _, name := range []string{"home_ranges.geojson", "areas.csv", "summary.html", "plots/fox_ud.png", "plots/badger_ud.png"} {
		info, err := os.Stat(filepath.Join(out, name))
		require.NoError(t, err, name)
		assert.Greater(t, info.Size(), int64(0), name)
	}

	assert.Contains(t, stdout.String(), "3 individuals, 1 failed")
	assert.Contains(t, stdout.String(), "lonely")
	assert.Contains(t, stdout.String(), "saved run")
	assert.Contains(t, stderr.String(), "[homerange]", "failures reach the ops stream")

	db, err := store.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()
	runs, err := db.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "relocations.csv", runs[0].Source)
	assert.Equal(t, "ha", runs[0].AreaUnit)

	ranges, err := db.ListHomeRanges(context.Background(), runs[0].RunID)
	require.NoError(t, err)
	assert.Len(t, ranges, 3)
	areas, err := db.ListAreas(context.Background(), runs[0].RunID, "fox")
	require.NoError(t, err)
	assert.Len(t, areas, 2)
}

func TestRun_LSCVFallback(t *testing.T) {
	var pts []kde.Point
	for i := 0; i < 6; i++ {
		pts = append(pts, kde.Point{X: 0, Y: 0}, kde.Point{X: 50, Y: 0})
	}
	input := writeRelocations(t, kde.Observations{ID: "stacked", Points: pts})
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-input", input, "-out", out, "-method", "lscv", "-plots=false"}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "1 individuals, 1 failed")

	stdout.Reset()
	err = run(context.Background(), []string{"-input", input, "-out", out, "-method", "lscv", "-lscv-fallback"}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "(href fallback)")
	assert.Contains(t, stdout.String(), "1 individuals, 0 failed")

	_, err = os.Stat(filepath.Join(out, "plots", "stacked_lscv.png"))
	assert.NoError(t, err, "failed score curve is still plotted")
}

func TestRun_Errors(t *testing.T) {
	input := writeRelocations(t, testutil.GaussianCluster(53, "vole", 0, 0, 10, 20))

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing input", []string{}, "-input is required"},
		{"bad method", []string{"-input", input, "-method", "plugin"}, "invalid configuration"},
		{"bad levels", []string{"-input", input, "-levels", "0.5,abc"}, "-levels"},
		{"level out of range", []string{"-input", input, "-level", "1.5"}, "invalid configuration"},
		{"duplicate levels", []string{"-input", input, "-levels", "0.5,0.95,0.95"}, "more than once"},
		{"bad config path", []string{"-input", input, "-config", "missing.yaml"}, ".json"},
		{"missing file", []string{"-input", filepath.Join(t.TempDir(), "none.csv")}, "failed to open input"},
		{"stray args", []string{"-input", input, "extra"}, "unexpected arguments"},
		{"unknown column", []string{"-input", input, "-x-col", "lon"}, "lon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(context.Background(), tt.args, &stdout, &stderr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_DefaultOutputDir(t *testing.T) {
	input := writeRelocations(t, testutil.GaussianCluster(54, "shrew", 0, 0, 15, 30))
	dir := t.TempDir()
	t.Chdir(dir)

	saved := clock
	clock = timeutil.NewMockClock(time.Date(2024, 7, 9, 14, 30, 5, 0, time.UTC))
	defer func() { clock = saved }()

	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-input", input, "-plots=false"}, &stdout, &stderr))
	assert.FileExists(t, filepath.Join(dir, "homerange-20240709-143005", "areas.csv"))
	assert.Contains(t, stdout.String(), "homerange-20240709-143005")
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-version"}, &stdout, &stderr))
	assert.True(t, strings.HasPrefix(stdout.String(), "homerange dev"))
}

func TestParseCSVFloat64s(t *testing.T) {
	tests := []struct {
		in      string
		want    []float64
		wantErr bool
	}{
		{"", nil, false},
		{"0.5", []float64{0.5}, false},
		{"0.5, 0.95,", []float64{0.5, 0.95}, false},
		{"0.5,x", nil, true},
	}
	for _, tt := range tests {
		got, err := parseCSVFloat64s(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
