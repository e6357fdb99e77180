package hydrofabric

import (
	"context"
	"errors"
	"fmt"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/wkb"

	"github.com/lowercolorado/flowpath-viewer/services/dashboard/db"
)

// FlowpathStore is the slice of db.Store the PostGIS source needs.
type FlowpathStore interface {
	LookupGeometryColumn(ctx context.Context, ref string) (db.GeometryColumn, error)
	ListFlowpaths(ctx context.Context, gc db.GeometryColumn) ([]db.FlowpathRecord, error)
}

// PostGIS reads flowpaths from a spatial table. The ref passed to Load is the
// table name, optionally schema qualified.
type PostGIS struct {
	store FlowpathStore
}

// NewPostGIS wraps store.
func NewPostGIS(store FlowpathStore) *PostGIS {
	return &PostGIS{store: store}
}

// Load reads every flowpath of the table ref.
func (p *PostGIS) Load(ctx context.Context, ref string) (*Layer, error) {
	if ref == "" {
		ref = DefaultLayer
	}
	gc, err := p.store.LookupGeometryColumn(ctx, ref)
	if errors.Is(err, db.ErrNoGeometryColumn) {
		return nil, fmt.Errorf("%w: %v", ErrLayerNotFound, err)
	}
	if err != nil {
		return nil, fmt.Errorf("postgis %s: %w", ref, err)
	}

	records, err := p.store.ListFlowpaths(ctx, gc)
	if err != nil {
		return nil, fmt.Errorf("postgis %s: %w", ref, err)
	}

	layer := &Layer{
		Name:       gc.Table,
		SRS:        gc.Proj4,
		Geographic: gc.SRID == 4326,
		Flowpaths:  make([]Flowpath, 0, len(records)),
	}
	for _, rec := range records {
		f := Flowpath{
			ID:       deref(rec.ID),
			ToID:     deref(rec.ToID),
			Mainstem: deref(rec.Mainstem),
			DivideID: deref(rec.DivideID),
		}
		if len(rec.WKB) > 0 {
			var g geom.Geom
			if g, err = wkb.Decode(rec.WKB); err != nil {
				return nil, fmt.Errorf("postgis %s: flowpath %s: %w", ref, f.ID, err)
			}
			f.Geometry = g
		}
		layer.Flowpaths = append(layer.Flowpaths, f)
	}
	return layer, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
