package kde

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func maskFrom(rows []string) ([]bool, int, int) {
	ny := len(rows)
	nx := len(rows[0])
	mask := make([]bool, nx*ny)
	for j, row := range rows {
		for i, c := range row {
			mask[j*nx+i] = c == '#'
		}
	}
	return mask, nx, ny
}

func TestTraceRings_SingleCell(t *testing.T) {
	mask, nx, ny := maskFrom([]string{
		"...",
		".#.",
		"...",
	})
	rings := traceRings(mask, nx, ny)
	require.Len(t, rings, 1)

	want := []vertex{{1, 1}, {2, 1}, {2, 2}, {1, 2}, {1, 1}}
	if diff := cmp.Diff(want, rings[0].vertices, cmp.AllowUnexported(vertex{})); diff != "" {
		t.Errorf("ring vertices mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, rings[0].area2)
	assert.False(t, rings[0].isHole())
	assert.Equal(t, [2]int{1, 0}, [2]int{rings[0].probeI, rings[0].probeJ})
}

func TestTraceRings_Shapes(t *testing.T) {
	tests := []struct {
		name  string
		rows  []string
		outer []int
		holes []int
	}{
		{"full block", []string{"##", "##"}, []int{8}, nil},
		{"L shape", []string{"#.", "##"}, []int{6}, nil},
		{"diagonal pair", []string{"#.", ".#"}, []int{2, 2}, nil},
		{"ring", []string{"###", "#.#", "###"}, []int{18}, []int{-2}},
		{"ring touching edge of grid", []string{"###.", "#.#.", "###."}, []int{18}, []int{-2}},
		{"hole with island", []string{
			"#####",
			"#...#",
			"#.#.#",
			"#...#",
			"#####",
		}, []int{50, 2}, []int{-18}},
		{"two holes", []string{
			"#####",
			"#.#.#",
			"#####",
		}, []int{30}, []int{-2, -2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask, nx, ny := maskFrom(tt.rows)
			var outer, holes []int
			for _, r := range traceRings(mask, nx, ny) {
				assert.Equal(t, r.vertices[0], r.vertices[len(r.vertices)-1], "ring must be closed")
				if r.isHole() {
					holes = append(holes, r.area2)
					i, j := r.probeI, r.probeJ
					assert.False(t, mask[j*nx+i], "hole probe must be an excluded cell")
				} else {
					outer = append(outer, r.area2)
				}
			}
			assert.ElementsMatch(t, tt.outer, outer)
			assert.ElementsMatch(t, tt.holes, holes)
		})
	}
}

func TestTraceRings_Empty(t *testing.T) {
	mask := make([]bool, 6)
	assert.Empty(t, traceRings(mask, 3, 2))
}

func TestAssemblePolygons_HoleOwnership(t *testing.T) {
	mask, nx, ny := maskFrom([]string{
		"#######",
		"#.....#",
		"#.###.#",
		"#.#.#.#",
		"#.###.#",
		"#.....#",
		"#######",
	})
	grid := Grid{X0: 100, Y0: 200, CellSize: 10, NX: nx, NY: ny}
	polys := assemblePolygons(traceRings(mask, nx, ny), grid)
	require.Len(t, polys, 2)

	// Each hole belongs to the innermost outer ring around it.
	var areas []float64
	for _, p := range polys {
		require.Len(t, p, 2)
		areas = append(areas, math.Abs(planar.Area(p)))
	}
	assert.ElementsMatch(t, []float64{2400, 800}, areas)
}
