// Package db reads flowpath layers out of a PostGIS database.
package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoGeometryColumn is returned when a table is not registered in
// geometry_columns.
var ErrNoGeometryColumn = errors.New("table has no geometry column")

// Store wraps database access helpers.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GeometryColumn describes the spatial column of a table.
type GeometryColumn struct {
	Schema string
	Table  string
	Column string
	SRID   int
	// Proj4 is the PROJ definition from spatial_ref_sys. Empty for SRID 4326.
	Proj4 string
}

const geometryColumnSQL = `
	SELECT g.f_table_schema, g.f_table_name, g.f_geometry_column, g.srid, COALESCE(s.proj4text, '')
	FROM geometry_columns g
	LEFT JOIN spatial_ref_sys s ON s.srid = g.srid
	WHERE g.f_table_name = $1 AND ($2 = '' OR g.f_table_schema = $2)
	ORDER BY g.f_table_schema
	LIMIT 1
`

// LookupGeometryColumn finds the geometry column of ref, given as "table" or
// "schema.table".
func (s *Store) LookupGeometryColumn(ctx context.Context, ref string) (GeometryColumn, error) {
	schema, table := SplitTableRef(ref)

	var gc GeometryColumn
	err := s.pool.QueryRow(ctx, geometryColumnSQL, table, schema).Scan(
		&gc.Schema,
		&gc.Table,
		&gc.Column,
		&gc.SRID,
		&gc.Proj4,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return gc, fmt.Errorf("%w: %s", ErrNoGeometryColumn, ref)
	}
	if err != nil {
		return gc, err
	}
	if gc.SRID == 4326 {
		gc.Proj4 = ""
	}
	return gc, nil
}

// FlowpathRecord is one flowpath row with its geometry as WKB.
type FlowpathRecord struct {
	ID       *string
	ToID     *string
	Mainstem *string
	DivideID *string
	WKB      []byte
}

// ListFlowpaths returns every row of the table described by gc.
func (s *Store) ListFlowpaths(ctx context.Context, gc GeometryColumn) ([]FlowpathRecord, error) {
	rows, err := s.pool.Query(ctx, flowpathsSQL(gc))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]FlowpathRecord, 0)
	for rows.Next() {
		var rec FlowpathRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.ToID,
			&rec.Mainstem,
			&rec.DivideID,
			&rec.WKB,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func flowpathsSQL(gc GeometryColumn) string {
	table := pgx.Identifier{gc.Table}
	if gc.Schema != "" {
		table = pgx.Identifier{gc.Schema, gc.Table}
	}
	return fmt.Sprintf(
		`SELECT id::text, toid::text, mainstem::text, divide_id::text, ST_AsBinary(%s) FROM %s ORDER BY id`,
		pgx.Identifier{gc.Column}.Sanitize(), table.Sanitize(),
	)
}

// SplitTableRef splits "schema.table". A bare name has no schema.
func SplitTableRef(ref string) (schema, table string) {
	ref = strings.TrimSpace(ref)
	if i := strings.Index(ref, "."); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return "", ref
}
