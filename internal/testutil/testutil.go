// Package testutil provides shared test utilities and fixtures.
//
// The relocation generators are deterministic for a given seed so that
// density, bandwidth and contour tests can assert on stable values.
package testutil

import (
	"math"
	"math/rand"
	"testing"

	"github.com/banshee-data/homerange/internal/kde"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// GaussianCluster returns n relocations drawn from an isotropic normal
// distribution centred on (cx, cy) with standard deviation sd.
func GaussianCluster(seed int64, id string, cx, cy, sd float64, n int) kde.Observations {
	rng := rand.New(rand.NewSource(seed))
	obs := kde.Observations{ID: id, Points: make([]kde.Point, n)}
	for i := range obs.Points {
		obs.Points[i] = kde.Point{X: cx + sd*rng.NormFloat64(), Y: cy + sd*rng.NormFloat64()}
	}
	return obs
}

// TwoClusters returns 2n relocations split between two Gaussian clusters
// whose centres are sep apart along the x axis.
func TwoClusters(seed int64, id string, n int, sep, sd float64) kde.Observations {
	a := GaussianCluster(seed, id, 0, 0, sd, n)
	b := GaussianCluster(seed+1, id, sep, 0, sd, n)
	a.Points = append(a.Points, b.Points...)
	return a
}

// TightClusterWithOutlier returns five relocations within a few metres of
// the origin plus one far outlier, and the same set without the outlier.
func TightClusterWithOutlier() (with, without kde.Observations) {
	cluster := []kde.Point{
		{X: 0, Y: 0},
		{X: 1, Y: 0.5},
		{X: -0.5, Y: 1},
		{X: 0.8, Y: -0.7},
		{X: -1, Y: -0.4},
	}
	without = kde.Observations{ID: "tight", Points: append([]kde.Point(nil), cluster...)}
	with = kde.Observations{ID: "tight+outlier", Points: append(append([]kde.Point(nil), cluster...), kde.Point{X: 250, Y: 180})}
	return with, without
}

// Translate returns a copy of obs shifted by (dx, dy).
func Translate(obs kde.Observations, dx, dy float64) kde.Observations {
	out := kde.Observations{ID: obs.ID, Points: make([]kde.Point, len(obs.Points))}
	for i, p := range obs.Points {
		out.Points[i] = kde.Point{X: p.X + dx, Y: p.Y + dy}
	}
	return out
}

// Scale returns a copy of obs with every coordinate multiplied by c.
func Scale(obs kde.Observations, c float64) kde.Observations {
	out := kde.Observations{ID: obs.ID, Points: make([]kde.Point, len(obs.Points))}
	for i, p := range obs.Points {
		out.Points[i] = kde.Point{X: p.X * c, Y: p.Y * c}
	}
	return out
}

// WithMissing returns a copy of obs with a NaN coordinate inserted after
// every k-th point.
func WithMissing(obs kde.Observations, k int) kde.Observations {
	out := kde.Observations{ID: obs.ID}
	for i, p := range obs.Points {
		out.Points = append(out.Points, p)
		if k > 0 && (i+1)%k == 0 {
			out.Points = append(out.Points, kde.Point{X: math.NaN(), Y: p.Y})
		}
	}
	return out
}
