package kde

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

// DefaultLevel is the default probability mass of a home-range contour.
const DefaultLevel = 0.95

// Polygon is one connected piece of a home-range contour.
type Polygon struct {
	// Geometry has a counter-clockwise outer ring followed by clockwise
	// holes, in input coordinates.
	Geometry orb.Polygon
	// Area is the enclosed area (holes excluded) multiplied by the
	// contour's area scale.
	Area float64
	// Mass is the share of total UD mass inside the polygon.
	Mass float64
}

// Contour is the region of highest density holding a target share of the
// UD mass. Several polygons ("islands") are a normal result for a
// multi-modal UD.
type Contour struct {
	ID        string
	Level     float64
	Threshold float64
	// Cells is the number of grid cells with density ≥ Threshold.
	Cells    int
	Polygons []Polygon
	// Area and Mass total over Polygons.
	Area float64
	Mass float64
}

// ContourOptions configures ExtractContour.
type ContourOptions struct {
	// AreaScale converts squared coordinate units to the reporting unit
	// (for metres to hectares, 1e-4). Zero means 1.
	AreaScale float64
}

func (o ContourOptions) scale() float64 {
	if o.AreaScale == 0 {
		return 1
	}
	return o.AreaScale
}

// ValidateLevel checks that p is a probability level in (0, 1].
func ValidateLevel(p float64) error {
	if !(p > 0 && p <= 1) {
		return fmt.Errorf("contour level must be in (0, 1], got %g", p)
	}
	return nil
}

// Threshold returns the density t such that the cells with UD ≥ t are the
// smallest highest-density set whose mass share reaches p. Cells are taken
// in descending density order and their share accumulated until it is at
// least p; t is the density of the last cell taken. When rounding keeps the
// accumulated share below p (p = 1), every positive cell is included.
func Threshold(ud *UD, p float64) (float64, error) {
	if err := ValidateLevel(p); err != nil {
		return 0, err
	}
	total := ud.Sum()
	if !(total > 0) {
		return 0, &EmptyDistributionError{ID: ud.ID}
	}

	vals := append([]float64(nil), ud.Values...)
	sort.Sort(sort.Reverse(sort.Float64Slice(vals)))

	var cum, t float64
	for _, v := range vals {
		if v <= 0 {
			break
		}
		cum += v / total
		t = v
		if cum >= p {
			break
		}
	}
	return t, nil
}

// ExtractContour finds the level-p threshold of ud and traces the boundary
// of the cells at or above it into polygons. The boundary follows cell
// edges, so geometry is exact at grid resolution and no finer.
func ExtractContour(ud *UD, p float64, opts ContourOptions) (*Contour, error) {
	t, err := Threshold(ud, p)
	if err != nil {
		return nil, err
	}
	grid := ud.Grid
	total := ud.Sum()

	mask := make([]bool, len(ud.Values))
	cells := 0
	for k, v := range ud.Values {
		if v > 0 && v >= t {
			mask[k] = true
			cells++
		}
	}

	polys := assemblePolygons(traceRings(mask, grid.NX, grid.NY), grid)

	scale := opts.scale()
	c := &Contour{ID: ud.ID, Level: p, Threshold: t, Cells: cells}
	for _, poly := range polys {
		c.Polygons = append(c.Polygons, Polygon{
			Geometry: poly,
			Area:     math.Abs(planar.Area(poly)) * scale,
		})
	}

	// Attribute each included cell's mass to the polygon containing its
	// centre. Centres never lie on a boundary, which runs along cell edges.
	for k, inc := range mask {
		if !inc {
			continue
		}
		i, j := grid.Cell(k)
		ctr := grid.Center(i, j)
		pt := orb.Point{ctr.X, ctr.Y}
		for pi := range c.Polygons {
			if planar.PolygonContains(c.Polygons[pi].Geometry, pt) {
				c.Polygons[pi].Mass += ud.Values[k] / total
				break
			}
		}
	}

	sort.SliceStable(c.Polygons, func(a, b int) bool { return c.Polygons[a].Area > c.Polygons[b].Area })
	for _, poly := range c.Polygons {
		c.Area += poly.Area
		c.Mass += poly.Mass
	}

	diagf("%s: level=%.3f threshold=%g cells=%d polygons=%d area=%g mass=%.4f",
		ud.ID, p, t, cells, len(c.Polygons), c.Area, c.Mass)
	return c, nil
}

// assemblePolygons converts traced lattice rings into polygons, attaching
// each hole to the smallest outer ring that contains it.
func assemblePolygons(rings []tracedRing, grid Grid) []orb.Polygon {
	dp := simplify.DouglasPeucker(0)

	type outer struct {
		ring  orb.Ring
		area2 int
		holes []orb.Ring
	}
	var outers []*outer
	var holes []tracedRing
	for _, r := range rings {
		if r.isHole() {
			holes = append(holes, r)
			continue
		}
		outers = append(outers, &outer{ring: dp.Ring(toOrbRing(r, grid)), area2: r.area2})
	}

	for _, h := range holes {
		probe := grid.Center(h.probeI, h.probeJ)
		pt := orb.Point{probe.X, probe.Y}
		var owner *outer
		for _, o := range outers {
			if (owner == nil || o.area2 < owner.area2) && planar.RingContains(o.ring, pt) {
				owner = o
			}
		}
		if owner == nil {
			// Unreachable for a well-formed mask: every hole lies inside the
			// region whose cells surround it.
			opsf("dropping hole ring with no enclosing outer ring (%d vertices)", len(h.vertices))
			continue
		}
		owner.holes = append(owner.holes, dp.Ring(toOrbRing(h, grid)))
	}

	polys := make([]orb.Polygon, 0, len(outers))
	for _, o := range outers {
		poly := orb.Polygon{o.ring}
		poly = append(poly, o.holes...)
		polys = append(polys, poly)
	}
	return polys
}

func toOrbRing(r tracedRing, grid Grid) orb.Ring {
	ring := make(orb.Ring, len(r.vertices))
	for k, v := range r.vertices {
		c := grid.Corner(v.x, v.y)
		ring[k] = orb.Point{c.X, c.Y}
	}
	return ring
}
