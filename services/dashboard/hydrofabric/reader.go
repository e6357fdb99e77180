package hydrofabric

import (
	"context"
	"fmt"
	"time"

	"github.com/lowercolorado/flowpath-viewer/services/dashboard/memo"
)

// Reader loads and prepares flowpath layers. A non-empty path is read from
// a GeoPackage file; an empty one falls back to the database table.
type Reader struct {
	files     Source
	database  Source
	table     string
	tolerance float64
	cache     *memo.Cache[*Layer]
	onLoad    func(ref string, took time.Duration)
}

// ReaderOptions configure a Reader. Database may be nil.
type ReaderOptions struct {
	Files     Source
	Database  Source
	Table     string
	Tolerance float64
	Cache     *memo.Cache[*Layer]
	// OnLoad is told about every layer read from its source.
	OnLoad func(ref string, took time.Duration)
}

// NewReader builds a Reader. Files defaults to a GeoPackage source on Table.
func NewReader(opts ReaderOptions) *Reader {
	if opts.Table == "" {
		opts.Table = DefaultLayer
	}
	if opts.Files == nil {
		opts.Files = NewGeoPackage(opts.Table)
	}
	return &Reader{
		files:     opts.Files,
		database:  opts.Database,
		table:     opts.Table,
		tolerance: opts.Tolerance,
		cache:     opts.Cache,
		onLoad:    opts.OnLoad,
	}
}

// Read returns the prepared layer for path.
func (r *Reader) Read(ctx context.Context, path string) (*Layer, error) {
	if r.cache == nil {
		return r.read(ctx, path)
	}
	return r.cache.Do("hydrofabric.Read", []any{path, r.table, r.tolerance}, func() (*Layer, error) {
		return r.read(ctx, path)
	})
}

func (r *Reader) read(ctx context.Context, path string) (*Layer, error) {
	var (
		layer *Layer
		err   error
	)
	start := time.Now()
	switch {
	case path != "":
		layer, err = r.files.Load(ctx, path)
	case r.database != nil:
		layer, err = r.database.Load(ctx, r.table)
	default:
		return nil, fmt.Errorf("%w: no flowpath path or database configured", ErrLayerNotFound)
	}
	if err != nil {
		return nil, err
	}
	if r.onLoad != nil {
		r.onLoad(path, time.Since(start))
	}
	return Prepare(layer, r.tolerance)
}
