package kde_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/homerange/internal/kde"
	"github.com/banshee-data/homerange/internal/testutil"
)

func TestReferenceBandwidth_Square(t *testing.T) {
	t.Parallel()

	obs := kde.Observations{ID: "sq", Points: []kde.Point{{0, 0}, {2, 0}, {0, 2}, {2, 2}}}
	h, err := kde.ReferenceBandwidth(obs)
	require.NoError(t, err)

	// sd = sqrt(4/3) on both axes, n^(-1/6) = 2^(-1/3).
	want := math.Sqrt(4.0/3.0) * math.Pow(2, -1.0/3.0)
	assert.InDelta(t, want, h, 1e-12)
}

func TestReferenceBandwidth_TranslationInvariant(t *testing.T) {
	t.Parallel()

	obs := testutil.GaussianCluster(11, "a", 0, 0, 50, 60)
	h0, err := kde.ReferenceBandwidth(obs)
	require.NoError(t, err)

	for _, shift := range []float64{-1e4, 3.25, 5e5} {
		h, err := kde.ReferenceBandwidth(testutil.Translate(obs, shift, -2*shift))
		require.NoError(t, err)
		assert.InEpsilon(t, h0, h, 1e-9, "shift=%g", shift)
	}
}

func TestReferenceBandwidth_ScalesLinearly(t *testing.T) {
	t.Parallel()

	obs := testutil.GaussianCluster(12, "a", 100, -40, 20, 45)
	h0, err := kde.ReferenceBandwidth(obs)
	require.NoError(t, err)

	for _, c := range []float64{0.01, 2, 3.5, 1000} {
		h, err := kde.ReferenceBandwidth(testutil.Scale(obs, c))
		require.NoError(t, err)
		assert.InEpsilon(t, c*h0, h, 1e-9, "c=%g", c)
	}
}

func TestReferenceBandwidth_OutlierInflates(t *testing.T) {
	t.Parallel()

	with, without := testutil.TightClusterWithOutlier()
	hWith, err := kde.ReferenceBandwidth(with)
	require.NoError(t, err)
	hWithout, err := kde.ReferenceBandwidth(without)
	require.NoError(t, err)

	assert.Greater(t, hWith, hWithout)
	t.Logf("href with outlier=%.3f without=%.3f", hWith, hWithout)
}

func TestReferenceBandwidth_InsufficientData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		points []kde.Point
		reason string
	}{
		{"empty", nil, ""},
		{"single point", []kde.Point{{1, 1}}, ""},
		{"identical points", []kde.Point{{3, 4}, {3, 4}, {3, 4}}, "zero spread"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := kde.ReferenceBandwidth(kde.Observations{ID: "x", Points: tt.points})
			require.Error(t, err)
			assert.True(t, errors.Is(err, kde.ErrInsufficientData))

			var ide *kde.InsufficientDataError
			require.True(t, errors.As(err, &ide))
			assert.Equal(t, "x", ide.ID)
			assert.Equal(t, len(tt.points), ide.N)
			assert.Contains(t, ide.Reason, tt.reason)
		})
	}
}

func TestReferenceBandwidth_CollinearIsFine(t *testing.T) {
	t.Parallel()

	// Spread on one axis is enough for a positive href.
	obs := kde.Observations{ID: "line", Points: []kde.Point{{0, 5}, {10, 5}, {20, 5}}}
	h, err := kde.ReferenceBandwidth(obs)
	require.NoError(t, err)
	assert.Greater(t, h, 0.0)
}

func TestSelectBandwidth_Fixed(t *testing.T) {
	t.Parallel()

	obs := testutil.GaussianCluster(3, "f", 0, 0, 10, 20)
	opts := kde.DefaultBandwidthOptions()
	opts.Method = kde.MethodFixed
	opts.Fixed = 42

	bw, err := kde.SelectBandwidth(obs, opts)
	require.NoError(t, err)
	assert.Equal(t, 42.0, bw.H)
	assert.Equal(t, kde.MethodFixed, bw.Method)
	assert.Greater(t, bw.Reference, 0.0)
	assert.Nil(t, bw.Curve)
}

func TestSelectBandwidth_FixedStillNeedsData(t *testing.T) {
	t.Parallel()

	opts := kde.BandwidthOptions{Method: kde.MethodFixed, Fixed: 5}
	_, err := kde.SelectBandwidth(kde.Observations{ID: "one", Points: []kde.Point{{0, 0}}}, opts)
	assert.ErrorIs(t, err, kde.ErrInsufficientData)
}

func TestSelectBandwidth_Reference(t *testing.T) {
	t.Parallel()

	obs := testutil.GaussianCluster(4, "r", 0, 0, 10, 30)
	bw, err := kde.SelectBandwidth(obs, kde.DefaultBandwidthOptions())
	require.NoError(t, err)

	href, err := kde.ReferenceBandwidth(obs)
	require.NoError(t, err)
	assert.Equal(t, href, bw.H)
	assert.Equal(t, href, bw.Reference)
	assert.Equal(t, kde.MethodReference, bw.Method)
}

func TestBandwidthOptions_Validate(t *testing.T) {
	t.Parallel()

	base := kde.DefaultBandwidthOptions()
	tests := []struct {
		name    string
		mutate  func(o *kde.BandwidthOptions)
		wantErr bool
	}{
		{"defaults", func(o *kde.BandwidthOptions) {}, false},
		{"lscv defaults", func(o *kde.BandwidthOptions) { o.Method = kde.MethodLSCV }, false},
		{"fixed zero", func(o *kde.BandwidthOptions) { o.Method = kde.MethodFixed }, true},
		{"fixed negative", func(o *kde.BandwidthOptions) { o.Method = kde.MethodFixed; o.Fixed = -1 }, true},
		{"fixed inf", func(o *kde.BandwidthOptions) { o.Method = kde.MethodFixed; o.Fixed = math.Inf(1) }, true},
		{"lscv inverted range", func(o *kde.BandwidthOptions) {
			o.Method = kde.MethodLSCV
			o.LSCVMinFactor, o.LSCVMaxFactor = 2, 1
		}, true},
		{"lscv zero min", func(o *kde.BandwidthOptions) { o.Method = kde.MethodLSCV; o.LSCVMinFactor = 0 }, true},
		{"lscv two steps", func(o *kde.BandwidthOptions) { o.Method = kde.MethodLSCV; o.LSCVSteps = 2 }, true},
		{"unknown method", func(o *kde.BandwidthOptions) { o.Method = "bogus" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := base
			tt.mutate(&o)
			err := o.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseMethod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    kde.Method
		wantErr bool
	}{
		{"href", kde.MethodReference, false},
		{"reference", kde.MethodReference, false},
		{" LSCV ", kde.MethodLSCV, false},
		{"fixed", kde.MethodFixed, false},
		{"", "", true},
		{"bcv", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := kde.ParseMethod(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
