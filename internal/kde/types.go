package kde

import (
	"math"
)

// Point is a single relocation in a projected coordinate system. X and Y
// share one linear unit (normally metres).
type Point struct {
	X float64
	Y float64
}

// Valid reports whether both coordinates are finite.
func (p Point) Valid() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Observations is the ordered relocation set of one individual. Missing
// coordinates are carried as NaN until Clean drops them.
type Observations struct {
	ID     string
	Points []Point
}

// Clean returns a copy of the observation set without entries that have a
// missing or non-finite coordinate, and the number of entries dropped.
// The receiver is not modified.
func (o Observations) Clean() (Observations, int) {
	out := Observations{ID: o.ID, Points: make([]Point, 0, len(o.Points))}
	for _, p := range o.Points {
		if p.Valid() {
			out.Points = append(out.Points, p)
		}
	}
	return out, len(o.Points) - len(out.Points)
}

// Len returns the number of points, valid or not.
func (o Observations) Len() int { return len(o.Points) }

// Coordinates splits the points into separate x and y slices.
func (o Observations) Coordinates() (xs, ys []float64) {
	xs = make([]float64, len(o.Points))
	ys = make([]float64, len(o.Points))
	for i, p := range o.Points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return xs, ys
}

// Bounds returns the bounding box of the points. The zero Bounds is
// returned for an empty set.
func (o Observations) Bounds() Bounds {
	if len(o.Points) == 0 {
		return Bounds{}
	}
	b := Bounds{MinX: o.Points[0].X, MaxX: o.Points[0].X, MinY: o.Points[0].Y, MaxY: o.Points[0].Y}
	for _, p := range o.Points[1:] {
		b = b.Extend(p)
	}
	return b
}

// Bounds is an axis-aligned rectangle.
type Bounds struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Extend grows the rectangle to include p.
func (b Bounds) Extend(p Point) Bounds {
	b.MinX = math.Min(b.MinX, p.X)
	b.MaxX = math.Max(b.MaxX, p.X)
	b.MinY = math.Min(b.MinY, p.Y)
	b.MaxY = math.Max(b.MaxY, p.Y)
	return b
}

// Union returns the smallest rectangle containing both b and o.
func (b Bounds) Union(o Bounds) Bounds {
	return Bounds{
		MinX: math.Min(b.MinX, o.MinX),
		MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MaxY: math.Max(b.MaxY, o.MaxY),
	}
}

// Pad grows the rectangle by d on every side.
func (b Bounds) Pad(d float64) Bounds {
	return Bounds{MinX: b.MinX - d, MinY: b.MinY - d, MaxX: b.MaxX + d, MaxY: b.MaxY + d}
}

// Width returns MaxX - MinX.
func (b Bounds) Width() float64 { return b.MaxX - b.MinX }

// Height returns MaxY - MinY.
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

// Contains reports whether b encloses o entirely.
func (b Bounds) Contains(o Bounds) bool {
	return o.MinX >= b.MinX && o.MaxX <= b.MaxX && o.MinY >= b.MinY && o.MaxY <= b.MaxY
}
