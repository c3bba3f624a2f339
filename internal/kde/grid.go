package kde

import (
	"fmt"
	"math"
)

// Grid is a regular lattice of square cells. Cell (i, j) spans
// [X0+i·CellSize, X0+(i+1)·CellSize) × [Y0+j·CellSize, Y0+(j+1)·CellSize)
// and its density is evaluated at the centre. Cells are stored row-major:
// index = j·NX + i.
type Grid struct {
	X0, Y0   float64
	CellSize float64
	NX, NY   int
}

// GridOptions controls grid construction.
type GridOptions struct {
	// CellSize fixes the cell edge length in coordinate units. When zero
	// the cell size is derived from Cells.
	CellSize float64
	// Cells is the number of cells along the longer axis of the padded
	// extent.
	Cells int
	// PaddingBandwidths is the margin added around the data, in units of h.
	PaddingBandwidths float64
	// MaxCells caps NX·NY.
	MaxCells int
	// Extent, when set, replaces the padded data extent. It is used to put
	// several individuals on one common grid.
	Extent *Bounds
}

// DefaultGridOptions returns 100 cells along the longer axis, a padding of
// four bandwidths and a cap of four million cells.
func DefaultGridOptions() GridOptions {
	return GridOptions{
		Cells:             100,
		PaddingBandwidths: 4,
		MaxCells:          4_000_000,
	}
}

// Validate checks the options.
func (o GridOptions) Validate() error {
	if o.CellSize < 0 || math.IsNaN(o.CellSize) || math.IsInf(o.CellSize, 0) {
		return fmt.Errorf("CellSize must be non-negative and finite, got %g", o.CellSize)
	}
	if o.CellSize == 0 && o.Cells < 1 {
		return fmt.Errorf("Cells must be at least 1 when CellSize is unset, got %d", o.Cells)
	}
	if o.PaddingBandwidths < 0 {
		return fmt.Errorf("PaddingBandwidths must be non-negative, got %g", o.PaddingBandwidths)
	}
	if o.MaxCells < 1 {
		return fmt.Errorf("MaxCells must be positive, got %d", o.MaxCells)
	}
	if o.Extent != nil && (o.Extent.Width() <= 0 || o.Extent.Height() <= 0) {
		return fmt.Errorf("Extent must have positive width and height, got %+v", *o.Extent)
	}
	return nil
}

// PaddedExtent returns the data bounds grown by PaddingBandwidths·h, or the
// fixed Extent when one is set.
func (o GridOptions) PaddedExtent(b Bounds, h float64) Bounds {
	if o.Extent != nil {
		return *o.Extent
	}
	return b.Pad(o.PaddingBandwidths * h)
}

// NewGrid builds the evaluation grid for data bounds b and bandwidth h. The
// lattice is centred on the padded extent and covers it completely.
func NewGrid(b Bounds, h float64, opts GridOptions) (Grid, error) {
	if err := opts.Validate(); err != nil {
		return Grid{}, err
	}
	if !(h > 0) {
		return Grid{}, fmt.Errorf("bandwidth must be positive, got %g", h)
	}

	ext := opts.PaddedExtent(b, h)
	w, ht := ext.Width(), ext.Height()

	cs := opts.CellSize
	if cs == 0 {
		cs = math.Max(w, ht) / float64(opts.Cells)
	}
	if !(cs > 0) {
		return Grid{}, fmt.Errorf("degenerate grid extent %+v", ext)
	}

	// The slack keeps an Extent taken from an existing grid's Bounds at the
	// same cell count despite rounding.
	nx := int(math.Ceil(w/cs - 1e-9))
	ny := int(math.Ceil(ht/cs - 1e-9))
	if nx < 1 {
		nx = 1
	}
	if ny < 1 {
		ny = 1
	}
	if float64(nx)*float64(ny) > float64(opts.MaxCells) {
		return Grid{}, fmt.Errorf("grid of %dx%d cells exceeds MaxCells=%d; increase CellSize", nx, ny, opts.MaxCells)
	}

	cx := (ext.MinX + ext.MaxX) / 2
	cy := (ext.MinY + ext.MaxY) / 2
	g := Grid{
		X0:       cx - float64(nx)*cs/2,
		Y0:       cy - float64(ny)*cs/2,
		CellSize: cs,
		NX:       nx,
		NY:       ny,
	}
	tracef("grid %dx%d cell=%g origin=(%g, %g)", nx, ny, cs, g.X0, g.Y0)
	return g, nil
}

// Len returns the number of cells.
func (g Grid) Len() int { return g.NX * g.NY }

// CellArea returns the area of one cell in squared coordinate units.
func (g Grid) CellArea() float64 { return g.CellSize * g.CellSize }

// Index returns the row-major index of cell (i, j).
func (g Grid) Index(i, j int) int { return j*g.NX + i }

// Cell is the inverse of Index.
func (g Grid) Cell(idx int) (i, j int) { return idx % g.NX, idx / g.NX }

// Center returns the centre of cell (i, j).
func (g Grid) Center(i, j int) Point {
	return Point{
		X: g.X0 + (float64(i)+0.5)*g.CellSize,
		Y: g.Y0 + (float64(j)+0.5)*g.CellSize,
	}
}

// X returns the x coordinate of column i's centres.
func (g Grid) X(i int) float64 { return g.X0 + (float64(i)+0.5)*g.CellSize }

// Y returns the y coordinate of row j's centres.
func (g Grid) Y(j int) float64 { return g.Y0 + (float64(j)+0.5)*g.CellSize }

// Corner returns the lattice vertex (vx, vy); vertex (0, 0) is the grid
// origin and (NX, NY) the opposite corner.
func (g Grid) Corner(vx, vy int) Point {
	return Point{X: g.X0 + float64(vx)*g.CellSize, Y: g.Y0 + float64(vy)*g.CellSize}
}

// Bounds returns the rectangle covered by the grid.
func (g Grid) Bounds() Bounds {
	return Bounds{
		MinX: g.X0,
		MinY: g.Y0,
		MaxX: g.X0 + float64(g.NX)*g.CellSize,
		MaxY: g.Y0 + float64(g.NY)*g.CellSize,
	}
}

// Locate returns the cell containing p.
func (g Grid) Locate(p Point) (i, j int, ok bool) {
	i = int(math.Floor((p.X - g.X0) / g.CellSize))
	j = int(math.Floor((p.Y - g.Y0) / g.CellSize))
	if i < 0 || j < 0 || i >= g.NX || j >= g.NY {
		return 0, 0, false
	}
	return i, j, true
}

// PaddingBandwidths returns the smallest margin between the data bounds and
// the grid edge, in units of h. It is negative when data falls outside.
func (g Grid) PaddingBandwidths(b Bounds, h float64) float64 {
	gb := g.Bounds()
	m := math.Min(
		math.Min(b.MinX-gb.MinX, gb.MaxX-b.MaxX),
		math.Min(b.MinY-gb.MinY, gb.MaxY-b.MaxY),
	)
	return m / h
}
