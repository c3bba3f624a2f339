package kde_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/homerange/internal/kde"
	"github.com/banshee-data/homerange/internal/testutil"
)

// buildUD runs the reference-bandwidth pipeline up to the UD.
func buildUD(t *testing.T, obs kde.Observations, gopts kde.GridOptions) *kde.UD {
	t.Helper()
	h, err := kde.ReferenceBandwidth(obs)
	require.NoError(t, err)
	grid, err := kde.NewGrid(obs.Bounds(), h, gopts)
	require.NoError(t, err)
	ud, err := kde.BuildUD(context.Background(), obs, h, grid, kde.DefaultSurfaceOptions())
	require.NoError(t, err)
	return ud
}

func TestBuildUD_NonNegativeAndUnitMass(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		obs  kde.Observations
	}{
		{"single cluster", testutil.GaussianCluster(5, "a", 0, 0, 100, 40)},
		{"two clusters", testutil.TwoClusters(6, "b", 50, 2000, 60)},
		{"tight with outlier", func() kde.Observations { o, _ := testutil.TightClusterWithOutlier(); return o }()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ud := buildUD(t, tt.obs, kde.DefaultGridOptions())
			for k, v := range ud.Values {
				require.GreaterOrEqual(t, v, 0.0, "cell %d", k)
			}
			assert.InDelta(t, 1.0, ud.Mass, 0.02)
			assert.Nil(t, ud.Truncation)
			assert.InEpsilon(t, ud.Sum()*ud.Grid.CellArea(), ud.Mass, 1e-12)
		})
	}
}

func TestBuildUD_PeakMatchesKernelConstant(t *testing.T) {
	t.Parallel()

	// Two stacked points at the origin: the UD is one kernel, whose peak
	// is 1/(2π h²).
	obs := kde.Observations{ID: "peak", Points: []kde.Point{{0, 0}, {0, 0}}}
	const h = 1.0
	grid, err := kde.NewGrid(obs.Bounds(), h, kde.GridOptions{CellSize: 0.1, PaddingBandwidths: 4, MaxCells: 1e6})
	require.NoError(t, err)

	ud, err := kde.BuildUD(context.Background(), obs, h, grid, kde.DefaultSurfaceOptions())
	require.NoError(t, err)
	assert.InEpsilon(t, 1/(2*math.Pi), ud.Max(), 1e-2)
	assert.InDelta(t, 1.0, ud.Mass, 1e-3)
}

func TestBuildUD_TruncationWarning(t *testing.T) {
	t.Parallel()

	obs := testutil.GaussianCluster(8, "trunc", 0, 0, 30, 50)
	gopts := kde.DefaultGridOptions()
	gopts.PaddingBandwidths = 0.5

	ud := buildUD(t, obs, gopts)
	require.NotNil(t, ud.Truncation)
	assert.Equal(t, "trunc", ud.Truncation.ID)
	assert.Less(t, ud.Mass, 0.99)
	assert.InDelta(t, ud.Mass, ud.Truncation.Mass, 1e-12)
	assert.Less(t, ud.Truncation.PaddingBandwidths, 3.0)
	assert.Contains(t, ud.Truncation.String(), "biased low")
	assert.True(t, ud.Truncation.Truncated)
	assert.False(t, ud.Truncation.Coarse)
}

func TestBuildUD_CoarseGridWarning(t *testing.T) {
	t.Parallel()

	// One kernel sampled every 2.5h with a cell centred on it: the discrete
	// mass overshoots 1 by about 18% although the padding is ample.
	obs := kde.Observations{ID: "coarse", Points: []kde.Point{{0, 0}, {0, 0}}}
	const h = 1.0
	grid, err := kde.NewGrid(obs.Bounds(), h, kde.GridOptions{CellSize: 2.5, PaddingBandwidths: 6.25, MaxCells: 1e6})
	require.NoError(t, err)
	require.Equal(t, 5, grid.NX)

	ud, err := kde.BuildUD(context.Background(), obs, h, grid, kde.DefaultSurfaceOptions())
	require.NoError(t, err)
	assert.Greater(t, ud.Mass, 1.1)

	require.NotNil(t, ud.Truncation)
	assert.True(t, ud.Truncation.Coarse)
	assert.False(t, ud.Truncation.Truncated)
	assert.Equal(t, 2.5, ud.Truncation.CellSize)
	assert.Contains(t, ud.Truncation.String(), "coarse")
	assert.NotContains(t, ud.Truncation.String(), "biased low")
}

func TestBuildUD_WorkerCountDoesNotChangeResult(t *testing.T) {
	t.Parallel()

	obs := testutil.GaussianCluster(9, "w", 10, 10, 5, 30)
	h, err := kde.ReferenceBandwidth(obs)
	require.NoError(t, err)
	grid, err := kde.NewGrid(obs.Bounds(), h, kde.DefaultGridOptions())
	require.NoError(t, err)

	serial, err := kde.BuildUD(context.Background(), obs, h, grid, kde.SurfaceOptions{Workers: 1, MassTolerance: 0.01, MinPaddingBandwidths: 3})
	require.NoError(t, err)
	parallel, err := kde.BuildUD(context.Background(), obs, h, grid, kde.SurfaceOptions{Workers: 8, MassTolerance: 0.01, MinPaddingBandwidths: 3})
	require.NoError(t, err)

	if diff := cmp.Diff(serial.Values, parallel.Values); diff != "" {
		t.Errorf("UD differs between worker counts (-serial +parallel):\n%s", diff)
	}
}

func TestBuildUD_Cancelled(t *testing.T) {
	t.Parallel()

	obs := testutil.GaussianCluster(10, "c", 0, 0, 5, 30)
	h, err := kde.ReferenceBandwidth(obs)
	require.NoError(t, err)
	grid, err := kde.NewGrid(obs.Bounds(), h, kde.DefaultGridOptions())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = kde.BuildUD(ctx, obs, h, grid, kde.DefaultSurfaceOptions())
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestBuildUD_Errors(t *testing.T) {
	t.Parallel()

	grid := kde.Grid{CellSize: 1, NX: 4, NY: 4}
	_, err := kde.BuildUD(context.Background(), kde.Observations{ID: "one", Points: []kde.Point{{1, 1}}}, 1, grid, kde.DefaultSurfaceOptions())
	assert.ErrorIs(t, err, kde.ErrInsufficientData)

	two := kde.Observations{ID: "two", Points: []kde.Point{{1, 1}, {2, 2}}}
	_, err = kde.BuildUD(context.Background(), two, 0, grid, kde.DefaultSurfaceOptions())
	assert.Error(t, err)

	_, err = kde.BuildUD(context.Background(), two, 1, kde.Grid{CellSize: 1}, kde.DefaultSurfaceOptions())
	assert.Error(t, err)
}

func TestObservations_Clean(t *testing.T) {
	t.Parallel()

	_, base := testutil.TightClusterWithOutlier()
	dirty := testutil.WithMissing(base, 2)
	dirty.Points = append(dirty.Points, kde.Point{X: 1, Y: math.Inf(1)})

	clean, dropped := dirty.Clean()
	assert.Equal(t, 3, dropped)
	if diff := cmp.Diff(base.Points, clean.Points); diff != "" {
		t.Errorf("Clean() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, base.ID, clean.ID)
	assert.Len(t, dirty.Points, 8, "receiver must not be modified")
}

func TestBounds(t *testing.T) {
	t.Parallel()

	obs := kde.Observations{Points: []kde.Point{{1, 5}, {-2, 3}, {4, -1}}}
	b := obs.Bounds()
	assert.Equal(t, kde.Bounds{MinX: -2, MinY: -1, MaxX: 4, MaxY: 5}, b)
	assert.Equal(t, 6.0, b.Width())
	assert.Equal(t, 6.0, b.Height())

	padded := b.Pad(1)
	assert.True(t, padded.Contains(b))
	assert.False(t, b.Contains(padded))

	u := b.Union(kde.Bounds{MinX: 0, MinY: 0, MaxX: 10, MaxY: 2})
	assert.Equal(t, kde.Bounds{MinX: -2, MinY: -1, MaxX: 10, MaxY: 5}, u)

	assert.Equal(t, kde.Bounds{}, kde.Observations{}.Bounds())
}
