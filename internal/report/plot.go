package report

import (
	"fmt"
	"image/color"
	"io"
	"slices"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/homerange/internal/homerange"
	"github.com/banshee-data/homerange/internal/kde"
)

// Plot sizes used by the Write*Plot helpers.
var (
	PlotWidth  = 8 * vg.Inch
	PlotHeight = 8 * vg.Inch
)

var (
	contourColor = color.RGBA{R: 20, G: 20, B: 20, A: 255}
	pointColor   = color.RGBA{R: 30, G: 90, B: 200, A: 255}
	levelColor   = color.RGBA{R: 255, G: 255, B: 255, A: 200}
	curveColor   = color.RGBA{R: 200, G: 40, B: 40, A: 255}
)

// udGrid adapts a UD to plotter.GridXYZ. Columns run along x and rows
// along y, so row 0 is the southern edge.
type udGrid struct {
	ud *kde.UD
}

func (g udGrid) Dims() (c, r int)   { return g.ud.Grid.NX, g.ud.Grid.NY }
func (g udGrid) Z(c, r int) float64 { return g.ud.At(c, r) }
func (g udGrid) X(c int) float64    { return g.ud.Grid.X(c) }
func (g udGrid) Y(r int) float64    { return g.ud.Grid.Y(r) }

// volumeGrid adapts a volume surface from kde.VolumeUD to plotter.GridXYZ.
type volumeGrid struct {
	grid kde.Grid
	vol  []float64
}

func (g volumeGrid) Dims() (c, r int)   { return g.grid.NX, g.grid.NY }
func (g volumeGrid) Z(c, r int) float64 { return g.vol[g.grid.Index(c, r)] }
func (g volumeGrid) X(c int) float64    { return g.grid.X(c) }
func (g volumeGrid) Y(r int) float64    { return g.grid.Y(r) }

// mono is a one-colour palette for contour lines.
type mono struct{ c color.Color }

func (m mono) Colors() []color.Color { return []color.Color{m.c} }

// UDPlot draws the UD of r as a heatmap with the area-curve isopleths, the
// home-range polygon outlines and the relocations on top. obs may be empty.
func UDPlot(r *homerange.Result, obs kde.Observations) (*plot.Plot, error) {
	if r.UD == nil {
		return nil, fmt.Errorf("individual %q has no UD to plot", r.ID)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: UD (h=%.4g, %s)", r.ID, r.Bandwidth.H, r.Bandwidth.Method)
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"

	grid := udGrid{ud: r.UD}
	p.Add(plotter.NewHeatMap(grid, palette.Heat(16, 1)))

	if levels := isoplethLevels(r); len(levels) > 0 {
		vol, err := kde.VolumeUD(r.UD)
		if err != nil {
			return nil, err
		}
		p.Add(plotter.NewContour(volumeGrid{grid: r.UD.Grid, vol: vol}, levels, mono{levelColor}))
	}

	if r.Contour != nil {
		labelled := false
		for k, poly := range r.Contour.Polygons {
			for _, ring := range poly.Geometry {
				pts := make(plotter.XYs, len(ring))
				for i, v := range ring {
					pts[i] = plotter.XY{X: v[0], Y: v[1]}
				}
				line, err := plotter.NewLine(pts)
				if err != nil {
					return nil, fmt.Errorf("polygon %d: %w", k, err)
				}
				line.Color = contourColor
				line.Width = vg.Points(1.5)
				p.Add(line)
				if !labelled {
					p.Legend.Add(fmt.Sprintf("%g%% home range", r.Contour.Level*100), line)
					labelled = true
				}
			}
		}
	}

	if obs.Len() > 0 {
		clean, _ := obs.Clean()
		pts := make(plotter.XYs, clean.Len())
		for i, pt := range clean.Points {
			pts[i] = plotter.XY{X: pt.X, Y: pt.Y}
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("relocations: %w", err)
		}
		sc.GlyphStyle.Color = pointColor
		sc.GlyphStyle.Radius = vg.Points(1.5)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(sc)
		p.Legend.Add("relocations", sc)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// isoplethLevels returns the distinct area-curve levels below 1 in
// ascending order. Each is drawn as a contour of the volume surface.
func isoplethLevels(r *homerange.Result) []float64 {
	var levels []float64
	for _, a := range r.Areas {
		if a.Level < 1 {
			levels = append(levels, a.Level)
		}
	}
	sort.Float64s(levels)
	return slices.Compact(levels)
}

// LSCVPlot draws the LSCV score against bandwidth, marking the selected h.
func LSCVPlot(r *homerange.Result) (*plot.Plot, error) {
	curve := r.Bandwidth.Curve
	if len(curve) == 0 {
		return nil, fmt.Errorf("individual %q has no LSCV curve", r.ID)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: LSCV score", r.ID)
	p.X.Label.Text = "Bandwidth h"
	p.Y.Label.Text = "Score"
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}

	pts := make(plotter.XYs, len(curve))
	for i, sp := range curve {
		pts[i] = plotter.XY{X: sp.H, Y: sp.Score}
	}
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, err
	}
	line.Color = curveColor
	line.Width = vg.Points(1)
	points.Color = curveColor
	points.Radius = vg.Points(1.5)
	p.Add(line, points)
	p.Legend.Add("score", line, points)

	if r.Bandwidth.H > 0 {
		lo, hi := pts[0].Y, pts[0].Y
		for _, pt := range pts {
			lo = min(lo, pt.Y)
			hi = max(hi, pt.Y)
		}
		marker, err := plotter.NewLine(plotter.XYs{{X: r.Bandwidth.H, Y: lo}, {X: r.Bandwidth.H, Y: hi}})
		if err != nil {
			return nil, err
		}
		marker.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(marker)
		p.Legend.Add(fmt.Sprintf("h=%.4g (%s)", r.Bandwidth.H, r.Bandwidth.Method), marker)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	return p, nil
}

// WriteUDPlot renders UDPlot as PNG to w.
func WriteUDPlot(w io.Writer, r *homerange.Result, obs kde.Observations) error {
	p, err := UDPlot(r, obs)
	if err != nil {
		return err
	}
	return writePNG(w, p)
}

// WriteLSCVPlot renders LSCVPlot as PNG to w.
func WriteLSCVPlot(w io.Writer, r *homerange.Result) error {
	p, err := LSCVPlot(r)
	if err != nil {
		return err
	}
	return writePNG(w, p)
}

func writePNG(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(PlotWidth, PlotHeight, "png")
	if err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}
