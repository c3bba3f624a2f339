// Package ingest reads relocation tables into per-individual observation
// sets.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/homerange/internal/fsutil"
	"github.com/banshee-data/homerange/internal/kde"
)

// SingleIndividual is the ID given to every row when no id column is
// configured.
const SingleIndividual = "all"

// Columns names the header fields holding the individual ID and the
// projected coordinates. An empty ID puts every row in one individual.
type Columns struct {
	ID string
	X  string
	Y  string
}

// DefaultColumns returns the columns id, x and y.
func DefaultColumns() Columns {
	return Columns{ID: "id", X: "x", Y: "y"}
}

// missing reports whether a cell denotes a missing value.
func missing(s string) bool {
	switch strings.ToLower(s) {
	case "", "na", "nan", "null":
		return true
	}
	return false
}

// ReadCSV parses a headed CSV table. Rows with a missing coordinate are
// kept as NaN points, so that Observations.Clean can drop and count them
// per individual. Individuals are returned in first-seen order.
func ReadCSV(r io.Reader, cols Columns) ([]kde.Observations, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty input: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	col := func(name string) (int, error) {
		i, ok := index[name]
		if !ok {
			return 0, fmt.Errorf("column %q not found in header %v", name, header)
		}
		return i, nil
	}
	xi, err := col(cols.X)
	if err != nil {
		return nil, err
	}
	yi, err := col(cols.Y)
	if err != nil {
		return nil, err
	}
	idi := -1
	if cols.ID != "" {
		if idi, err = col(cols.ID); err != nil {
			return nil, err
		}
	}

	var out []kde.Observations
	pos := make(map[string]int)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}

		id := SingleIndividual
		if idi >= 0 {
			if idi >= len(record) || strings.TrimSpace(record[idi]) == "" {
				return nil, fmt.Errorf("line %d: missing individual id", line)
			}
			id = strings.TrimSpace(record[idi])
		}
		x, err := parseCoord(record, xi)
		if err != nil {
			return nil, fmt.Errorf("line %d: column %q: %w", line, cols.X, err)
		}
		y, err := parseCoord(record, yi)
		if err != nil {
			return nil, fmt.Errorf("line %d: column %q: %w", line, cols.Y, err)
		}

		k, ok := pos[id]
		if !ok {
			k = len(out)
			pos[id] = k
			out = append(out, kde.Observations{ID: id})
		}
		out[k].Points = append(out[k].Points, kde.Point{X: x, Y: y})
	}
	return out, nil
}

func parseCoord(record []string, i int) (float64, error) {
	if i >= len(record) {
		return math.NaN(), nil
	}
	s := strings.TrimSpace(record[i])
	if missing(s) {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid coordinate '%s': %w", s, err)
	}
	return v, nil
}

// LoadFile reads a CSV relocation file from path on fsys.
func LoadFile(fsys fsutil.FileSystem, path string, cols Columns) ([]kde.Observations, error) {
	f, err := fsys.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	obs, err := ReadCSV(f, cols)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return obs, nil
}
