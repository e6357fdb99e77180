package hydrofabric

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/wkb"
	_ "github.com/mattn/go-sqlite3"
)

// GeoPackage reads a flowpaths table from a GeoPackage file.
type GeoPackage struct {
	Table string
}

// NewGeoPackage reads table, or DefaultLayer when table is empty.
func NewGeoPackage(table string) *GeoPackage {
	if table == "" {
		table = DefaultLayer
	}
	return &GeoPackage{Table: table}
}

const geometryColumnSQL = `
	SELECT column_name, srs_id
	FROM gpkg_geometry_columns
	WHERE table_name = ?
`

const srsSQL = `
	SELECT organization, organization_coordsys_id, definition
	FROM gpkg_spatial_ref_sys
	WHERE srs_id = ?
`

// Load opens path read-only and reads every flowpath.
func (g *GeoPackage) Load(ctx context.Context, path string) (*Layer, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("geopackage %s: %w", path, err)
	}

	dsn := "file:" + path + "?mode=ro"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open geopackage %s: %w", path, err)
	}
	defer db.Close()

	var geomCol string
	var srsID int64
	err = db.QueryRowContext(ctx, geometryColumnSQL, g.Table).Scan(&geomCol, &srsID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s in %s", ErrLayerNotFound, g.Table, path)
	}
	if err != nil {
		return nil, fmt.Errorf("geopackage %s: geometry column: %w", path, err)
	}

	layer := &Layer{Name: g.Table}
	if err := g.loadSRS(ctx, db, srsID, layer); err != nil {
		return nil, fmt.Errorf("geopackage %s: %w", path, err)
	}

	query := fmt.Sprintf(
		`SELECT %s, %s, %s, %s, %s FROM %s`,
		quoteIdent("id"), quoteIdent("toid"), quoteIdent("mainstem"), quoteIdent("divide_id"),
		quoteIdent(geomCol), quoteIdent(g.Table),
	)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("geopackage %s: query %s: %w", path, g.Table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, toid, mainstem, divide any
		var blob []byte
		if err := rows.Scan(&id, &toid, &mainstem, &divide, &blob); err != nil {
			return nil, fmt.Errorf("geopackage %s: scan: %w", path, err)
		}
		var g geom.Geom
		if len(blob) > 0 {
			g, err = decodeGeoPackageBinary(blob)
			if err != nil {
				return nil, fmt.Errorf("geopackage %s: flowpath %s: %w", path, attrText(id), err)
			}
		}
		layer.Flowpaths = append(layer.Flowpaths, Flowpath{
			ID:       attrText(id),
			ToID:     attrText(toid),
			Mainstem: attrText(mainstem),
			DivideID: attrText(divide),
			Geometry: g,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("geopackage %s: %w", path, err)
	}
	return layer, nil
}

func (g *GeoPackage) loadSRS(ctx context.Context, db *sql.DB, srsID int64, layer *Layer) error {
	// 0 and -1 are the reserved "undefined" geographic and cartesian systems.
	if srsID == 0 || srsID == -1 {
		layer.Geographic = srsID == 0
		return nil
	}

	var org, def sql.NullString
	var code sql.NullInt64
	err := db.QueryRowContext(ctx, srsSQL, srsID).Scan(&org, &code, &def)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("spatial reference %d not defined", srsID)
	}
	if err != nil {
		return fmt.Errorf("spatial reference %d: %w", srsID, err)
	}
	if strings.EqualFold(org.String, "EPSG") && code.Int64 == 4326 {
		layer.Geographic = true
		return nil
	}
	layer.SRS = def.String
	return nil
}

// attrText renders a column of any SQLite storage class. Whole REAL values
// print without an exponent.
func attrText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// envelopeSizes maps the GeoPackage envelope indicator to its byte length.
var envelopeSizes = map[byte]int{0: 0, 1: 32, 2: 48, 3: 48, 4: 64}

// decodeGeoPackageBinary strips the "GP" header of a GeoPackage geometry
// blob and decodes the WKB that follows.
func decodeGeoPackageBinary(b []byte) (geom.Geom, error) {
	if len(b) < 8 || b[0] != 'G' || b[1] != 'P' {
		return nil, errors.New("not a GeoPackage geometry")
	}
	flags := b[3]
	if flags&0x20 != 0 {
		return nil, errors.New("extended GeoPackage geometry types are not supported")
	}
	env, ok := envelopeSizes[(flags>>1)&0x07]
	if !ok {
		return nil, fmt.Errorf("invalid envelope indicator in flags %#x", flags)
	}
	start := 8 + env
	if len(b) < start {
		return nil, errors.New("truncated GeoPackage geometry header")
	}
	if flags&0x10 != 0 {
		return geom.LineString{}, nil
	}
	return wkb.Decode(b[start:])
}
