package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/banshee-data/homerange/internal/homerange"
)

// createdLayout keeps created_at lexically sortable.
const createdLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run describes one estimator invocation over a batch of individuals.
type Run struct {
	RunID     string          `json:"run_id"`
	CreatedAt time.Time       `json:"created_at"`
	Source    string          `json:"source"`
	Method    string          `json:"method"`
	Level     float64         `json:"level"`
	AreaUnit  string          `json:"area_unit"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// HomeRange is the stored summary of one individual in a run. Failed
// individuals are stored with Error set and zero geometry.
type HomeRange struct {
	RunID        string   `json:"run_id"`
	IndividualID string   `json:"individual_id"`
	N            int      `json:"n"`
	Dropped      int      `json:"dropped"`
	Method       string   `json:"method"`
	Bandwidth    float64  `json:"bandwidth"`
	Href         float64  `json:"href"`
	Fallback     bool     `json:"fallback"`
	Level        float64  `json:"level"`
	Threshold    float64  `json:"threshold"`
	Area         float64  `json:"area"`
	Mass         float64  `json:"mass"`
	UDMass       float64  `json:"ud_mass"`
	PolygonCount int      `json:"polygon_count"`
	Warnings     []string `json:"warnings"`
	Error        string   `json:"error,omitempty"`
}

// Polygon is one stored contour polygon.
type Polygon struct {
	Index    int         `json:"polygon_index"`
	Area     float64     `json:"area"`
	Mass     float64     `json:"mass"`
	Geometry orb.Polygon `json:"geometry"`
}

// LevelArea is one stored point of an individual's area curve.
type LevelArea struct {
	Level float64 `json:"level"`
	Area  float64 `json:"area"`
	Cells int     `json:"cells"`
}

// SaveRun stores run and its results in one transaction and returns the
// run id. A run id is generated when run.RunID is empty.
func (db *DB) SaveRun(ctx context.Context, run *Run, results []homerange.Result) (string, error) {
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = db.Clock.Now().UTC()
	}
	params := "{}"
	if len(run.Params) > 0 {
		params = string(run.Params)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, created_at, source, method, level, area_unit, params_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.CreatedAt.UTC().Format(createdLayout), run.Source, run.Method,
		run.Level, run.AreaUnit, params,
	)
	if err != nil {
		opsf("failed to insert run %s: %v", run.RunID, err)
		return "", fmt.Errorf("insert run: %w", err)
	}

	for i := range results {
		if err := insertResult(ctx, tx, run, &results[i]); err != nil {
			opsf("failed to insert %s for run %s: %v", results[i].ID, run.RunID, err)
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	diagf("saved run %s (%d individuals)", run.RunID, len(results))
	return run.RunID, nil
}

func insertResult(ctx context.Context, tx *sql.Tx, run *Run, r *homerange.Result) error {
	hr := summarise(run, r)
	warnings, err := json.Marshal(hr.Warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO home_ranges (
			run_id, individual_id, n, dropped, method, bandwidth, href, fallback,
			level, threshold, area, mass, ud_mass, polygon_count, warnings_json, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		hr.RunID, hr.IndividualID, hr.N, hr.Dropped, hr.Method, hr.Bandwidth, hr.Href, hr.Fallback,
		hr.Level, hr.Threshold, hr.Area, hr.Mass, hr.UDMass, hr.PolygonCount, string(warnings), hr.Error,
	)
	if err != nil {
		return fmt.Errorf("insert home range %q: %w", r.ID, err)
	}

	if r.Contour != nil {
		for k, p := range r.Contour.Polygons {
			geom, err := geojson.NewGeometry(p.Geometry).MarshalJSON()
			if err != nil {
				return fmt.Errorf("marshal polygon %d of %q: %w", k, r.ID, err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO home_range_polygons (run_id, individual_id, polygon_index, area, mass, geometry_json)
				VALUES (?, ?, ?, ?, ?, ?)`,
				run.RunID, r.ID, k, p.Area, p.Mass, string(geom),
			)
			if err != nil {
				return fmt.Errorf("insert polygon %d of %q: %w", k, r.ID, err)
			}
			tracef("%s/%s: polygon %d area=%g", run.RunID, r.ID, k, p.Area)
		}
	}

	for _, a := range r.Areas {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO home_range_areas (run_id, individual_id, level, area, cells)
			VALUES (?, ?, ?, ?, ?)`,
			run.RunID, r.ID, a.Level, a.Area, a.Cells,
		)
		if err != nil {
			return fmt.Errorf("insert area %g of %q: %w", a.Level, r.ID, err)
		}
	}
	return nil
}

func summarise(run *Run, r *homerange.Result) HomeRange {
	hr := HomeRange{
		RunID:        run.RunID,
		IndividualID: r.ID,
		N:            r.N,
		Dropped:      r.Dropped,
		Method:       string(r.Bandwidth.Method),
		Bandwidth:    r.Bandwidth.H,
		Href:         r.Bandwidth.Reference,
		Fallback:     r.Fallback,
		Level:        run.Level,
		Warnings:     r.Warnings,
	}
	if hr.Warnings == nil {
		hr.Warnings = []string{}
	}
	if r.Err != nil {
		hr.Error = r.Err.Error()
	}
	if r.UD != nil {
		hr.UDMass = r.UD.Mass
	}
	if c := r.Contour; c != nil {
		hr.Level = c.Level
		hr.Threshold = c.Threshold
		hr.Area = c.Area
		hr.Mass = c.Mass
		hr.PolygonCount = len(c.Polygons)
	}
	return hr
}

// GetRun returns a stored run.
func (db *DB) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := db.QueryRowContext(ctx, `
		SELECT run_id, created_at, source, method, level, area_unit, params_json
		FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %q not found", runID)
	}
	return run, err
}

// ListRuns returns every stored run, newest first.
func (db *DB) ListRuns(ctx context.Context) ([]*Run, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, created_at, source, method, level, area_unit, params_json
		FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var created, params string
	if err := s.Scan(&run.RunID, &created, &run.Source, &run.Method, &run.Level, &run.AreaUnit, &params); err != nil {
		return nil, err
	}
	t, err := time.Parse(createdLayout, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at of run %s: %w", run.RunID, err)
	}
	run.CreatedAt = t
	run.Params = json.RawMessage(params)
	return &run, nil
}

// ListHomeRanges returns the individuals of a run ordered by id.
func (db *DB) ListHomeRanges(ctx context.Context, runID string) ([]HomeRange, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, individual_id, n, dropped, method, bandwidth, href, fallback,
		       level, threshold, area, mass, ud_mass, polygon_count, warnings_json, error
		FROM home_ranges
		WHERE run_id = ?
		ORDER BY individual_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query home ranges: %w", err)
	}
	defer rows.Close()

	var out []HomeRange
	for rows.Next() {
		var hr HomeRange
		var warnings string
		err := rows.Scan(
			&hr.RunID, &hr.IndividualID, &hr.N, &hr.Dropped, &hr.Method, &hr.Bandwidth, &hr.Href, &hr.Fallback,
			&hr.Level, &hr.Threshold, &hr.Area, &hr.Mass, &hr.UDMass, &hr.PolygonCount, &warnings, &hr.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("scan home range: %w", err)
		}
		if err := json.Unmarshal([]byte(warnings), &hr.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings of %q: %w", hr.IndividualID, err)
		}
		out = append(out, hr)
	}
	return out, rows.Err()
}

// ListPolygons returns the contour polygons of one individual in a run.
func (db *DB) ListPolygons(ctx context.Context, runID, individualID string) ([]Polygon, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT polygon_index, area, mass, geometry_json
		FROM home_range_polygons
		WHERE run_id = ? AND individual_id = ?
		ORDER BY polygon_index`, runID, individualID)
	if err != nil {
		return nil, fmt.Errorf("query polygons: %w", err)
	}
	defer rows.Close()

	var out []Polygon
	for rows.Next() {
		var p Polygon
		var geom string
		if err := rows.Scan(&p.Index, &p.Area, &p.Mass, &geom); err != nil {
			return nil, fmt.Errorf("scan polygon: %w", err)
		}
		g, err := geojson.UnmarshalGeometry([]byte(geom))
		if err != nil {
			return nil, fmt.Errorf("decode polygon %d of %q: %w", p.Index, individualID, err)
		}
		poly, ok := g.Geometry().(orb.Polygon)
		if !ok {
			return nil, fmt.Errorf("polygon %d of %q is a %s", p.Index, individualID, g.Geometry().GeoJSONType())
		}
		p.Geometry = poly
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListAreas returns the area curve of one individual in a run, ordered by
// level.
func (db *DB) ListAreas(ctx context.Context, runID, individualID string) ([]LevelArea, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT level, area, cells
		FROM home_range_areas
		WHERE run_id = ? AND individual_id = ?
		ORDER BY level`, runID, individualID)
	if err != nil {
		return nil, fmt.Errorf("query areas: %w", err)
	}
	defer rows.Close()

	var out []LevelArea
	for rows.Next() {
		var a LevelArea
		if err := rows.Scan(&a.Level, &a.Area, &a.Cells); err != nil {
			return nil, fmt.Errorf("scan area: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and, by cascade, everything stored under it.
func (db *DB) DeleteRun(ctx context.Context, runID string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %q not found", runID)
	}
	return nil
}
