package report

import (
	"fmt"
	"io"

	"github.com/paulmach/orb/geojson"

	"github.com/banshee-data/homerange/internal/homerange"
)

// FeatureCollection returns one Feature per home-range polygon of every
// estimated individual. Failed individuals are skipped. Coordinates are in
// the input's planar units; no CRS is attached.
func FeatureCollection(results []homerange.Result, unit string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := range results {
		r := &results[i]
		if !r.OK() {
			continue
		}
		for k, p := range r.Contour.Polygons {
			f := geojson.NewFeature(p.Geometry)
			f.ID = fmt.Sprintf("%s-%d", r.ID, k)
			f.Properties["id"] = r.ID
			f.Properties["polygon"] = k
			f.Properties["level"] = r.Contour.Level
			f.Properties["area"] = p.Area
			f.Properties["area_unit"] = unit
			f.Properties["mass"] = p.Mass
			f.Properties["bandwidth"] = r.Bandwidth.H
			f.Properties["method"] = string(r.Bandwidth.Method)
			if r.Fallback {
				f.Properties["fallback"] = true
			}
			fc.Append(f)
		}
	}
	return fc
}

// WriteGeoJSON writes FeatureCollection(results, unit) to w.
func WriteGeoJSON(w io.Writer, results []homerange.Result, unit string) error {
	data, err := FeatureCollection(results, unit).MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal feature collection: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write geojson: %w", err)
	}
	return nil
}
