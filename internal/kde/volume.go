package kde

import (
	"sort"
)

// VolumeUD returns, for every cell, the smallest probability level whose
// home range includes that cell: the share of UD mass held by cells at
// least as dense. The densest cell gets its own share; cells with zero
// density get 1. Every cell with a value below p belongs to the level-p
// region, which makes this the natural surface for multi-level maps.
func VolumeUD(ud *UD) ([]float64, error) {
	total := ud.Sum()
	if !(total > 0) {
		return nil, &EmptyDistributionError{ID: ud.ID}
	}

	order := make([]int, len(ud.Values))
	for k := range order {
		order[k] = k
	}
	sort.SliceStable(order, func(a, b int) bool { return ud.Values[order[a]] > ud.Values[order[b]] })

	vol := make([]float64, len(ud.Values))
	var cum float64
	for n := 0; n < len(order); {
		v := ud.Values[order[n]]
		if v <= 0 {
			for _, k := range order[n:] {
				vol[k] = 1
			}
			break
		}
		// Ties share the level reached after all of them are included.
		m := n
		for m < len(order) && ud.Values[order[m]] == v {
			cum += v / total
			m++
		}
		if cum > 1 {
			cum = 1
		}
		for _, k := range order[n:m] {
			vol[k] = cum
		}
		n = m
	}
	return vol, nil
}

// LevelArea is the home-range area at one probability level.
type LevelArea struct {
	Level float64
	Area  float64
	Cells int
}

// AreaCurve returns the home-range area at each level, in the unit set by
// opts.AreaScale. It counts thresholded cells rather than tracing
// polygons; the result equals the total polygon area of ExtractContour at
// the same level and is non-decreasing in the level.
func AreaCurve(ud *UD, levels []float64, opts ContourOptions) ([]LevelArea, error) {
	out := make([]LevelArea, 0, len(levels))
	scale := opts.scale()
	for _, p := range levels {
		t, err := Threshold(ud, p)
		if err != nil {
			return nil, err
		}
		cells := 0
		for _, v := range ud.Values {
			if v > 0 && v >= t {
				cells++
			}
		}
		out = append(out, LevelArea{
			Level: p,
			Area:  float64(cells) * ud.Grid.CellArea() * scale,
			Cells: cells,
		})
	}
	return out, nil
}
