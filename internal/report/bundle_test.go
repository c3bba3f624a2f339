package report

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/homerange/internal/fsutil"
	"github.com/banshee-data/homerange/internal/homerange"
)

func TestBundle_Write(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	mem := fsutil.NewMemoryFileSystem()

	b := &Bundle{FS: mem, Dir: "/out/run1", Levels: f.levels, Unit: "m2", Plots: true}
	written, err := b.Write(f.results, f.individuals)
	require.NoError(t, err)

	want := []string{
		"/out/run1/areas.csv",
		"/out/run1/home_ranges.geojson",
		"/out/run1/plots/bimodal_ud.png",
		"/out/run1/plots/unimodal_ud.png",
		"/out/run1/summary.html",
	}
	assert.Equal(t, want, mem.Files("/out/run1"))
	assert.ElementsMatch(t, want, written)

	png, err := mem.ReadFile(filepath.Join("/out/run1", PlotsDir, "bimodal_ud.png"))
	require.NoError(t, err)
	assert.Equal(t, pngMagic, png[:len(pngMagic)])
}

func TestBundle_WithoutPlots(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	mem := fsutil.NewMemoryFileSystem()

	b := &Bundle{FS: mem, Dir: "/out", Levels: f.levels, Unit: "ha"}
	written, err := b.Write(f.results, f.individuals)
	require.NoError(t, err)
	assert.Len(t, written, 3)
	assert.False(t, mem.Exists("/out/plots"))

	_, err = b.Write(f.results, f.individuals[:1])
	assert.Error(t, err)
}

func TestFileStems(t *testing.T) {
	t.Parallel()
	results := []homerange.Result{
		{ID: "fox 1"}, {ID: "fox/1"}, {ID: "../etc"}, {ID: "***"}, {ID: "Badger-2.b"},
	}
	assert.Equal(t, []string{"fox_1", "fox_1_2", "etc", "individual", "Badger-2.b"}, fileStems(results))

	// A suffixed stem is reserved against later IDs that sanitise to it.
	results = []homerange.Result{{ID: "fox 1"}, {ID: "fox_1"}, {ID: "fox_1_2"}, {ID: "fox/1"}}
	assert.Equal(t, []string{"fox_1", "fox_1_2", "fox_1_2_2", "fox_1_3"}, fileStems(results))
}
