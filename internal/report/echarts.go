package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/homerange/internal/homerange"
	"github.com/banshee-data/homerange/internal/units"
)

// WriteSummaryHTML renders an HTML page with two bar charts: home-range
// area per individual, one series per area level, and the bandwidth per
// individual. Failed individuals appear with empty bars.
func WriteSummaryHTML(w io.Writer, results []homerange.Result, levels []float64, unit string) error {
	ids := make([]string, len(results))
	for i := range results {
		ids[i] = results[i].ID
	}

	areas := charts.NewBar()
	areas.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Home ranges", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Home-range area", Subtitle: fmt.Sprintf("%d individuals, area in %s", len(results), units.Label(unit))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithYAxisOpts(opts.YAxis{Name: units.Label(unit)}),
	)
	areas.SetXAxis(ids)

	if len(levels) == 0 {
		data := make([]opts.BarData, len(results))
		for i := range results {
			if results[i].OK() {
				data[i] = opts.BarData{Value: results[i].Contour.Area}
			}
		}
		areas.AddSeries("home range", data)
	}
	for k, p := range levels {
		data := make([]opts.BarData, len(results))
		for i := range results {
			r := &results[i]
			if r.OK() && k < len(r.Areas) {
				data[i] = opts.BarData{Value: r.Areas[k].Area}
			}
		}
		areas.AddSeries(fmt.Sprintf("%g%%", p*100), data)
	}

	bw := charts.NewBar()
	bw.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Bandwidth", Subtitle: "selected h per individual"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	hs := make([]opts.BarData, len(results))
	for i := range results {
		if results[i].Bandwidth.H > 0 {
			hs[i] = opts.BarData{Value: results[i].Bandwidth.H, Name: string(results[i].Bandwidth.Method)}
		}
	}
	bw.SetXAxis(ids).
		AddSeries("h", hs,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.AddCharts(areas, bw)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	return nil
}
