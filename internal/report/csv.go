package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/homerange/internal/homerange"
)

// WriteAreaCSV writes one row per individual: the sample size, bandwidth,
// home-range area and mass, then the area at each level of the area curve.
// levels must match the estimator's AreaLevels. Failed individuals keep
// their row with empty numeric columns and the error text.
func WriteAreaCSV(w io.Writer, results []homerange.Result, levels []float64) error {
	cw := csv.NewWriter(w)

	header := []string{"id", "n", "dropped", "method", "bandwidth", "href", "fallback", "level", "area", "mass", "polygons"}
	for _, p := range levels {
		header = append(header, "area_"+formatFloat(p*100))
	}
	header = append(header, "warnings", "error")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i := range results {
		r := &results[i]
		row := []string{r.ID, strconv.Itoa(r.N), strconv.Itoa(r.Dropped)}
		if r.OK() {
			row = append(row,
				string(r.Bandwidth.Method),
				formatFloat(r.Bandwidth.H),
				formatFloat(r.Bandwidth.Reference),
				strconv.FormatBool(r.Fallback),
				formatFloat(r.Contour.Level),
				formatFloat(r.Contour.Area),
				formatFloat(r.Contour.Mass),
				strconv.Itoa(len(r.Contour.Polygons)),
			)
			for k := range levels {
				if k < len(r.Areas) {
					row = append(row, formatFloat(r.Areas[k].Area))
				} else {
					row = append(row, "")
				}
			}
		} else {
			row = append(row, make([]string, 8+len(levels))...)
		}

		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		row = append(row, strings.Join(r.Warnings, "; "), errText)

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %q: %w", r.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
