package hydrofabric

import (
	"fmt"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// DefaultSimplifyTolerance is in degrees.
const DefaultSimplifyTolerance = 0.001

const lonLat = "+proj=longlat +datum=WGS84 +no_defs"

type simplifier interface {
	Simplify(tolerance float64) geom.Geom
}

// Prepare returns a copy of layer in longitude/latitude with every geometry
// simplified by tolerance. A tolerance <= 0 skips simplification.
func Prepare(layer *Layer, tolerance float64) (*Layer, error) {
	out := &Layer{
		Name:       layer.Name,
		Geographic: true,
		Flowpaths:  make([]Flowpath, len(layer.Flowpaths)),
	}
	copy(out.Flowpaths, layer.Flowpaths)

	if !layer.Geographic && layer.SRS != "" {
		trans, err := toLonLat(layer.SRS)
		if err != nil {
			return nil, fmt.Errorf("layer %s: %w", layer.Name, err)
		}
		for i, f := range out.Flowpaths {
			if f.Geometry == nil {
				continue
			}
			g, err := f.Geometry.Transform(trans)
			if err != nil {
				return nil, fmt.Errorf("reproject %s: %w", f.ID, err)
			}
			out.Flowpaths[i].Geometry = g
		}
	}

	if tolerance > 0 {
		for i, f := range out.Flowpaths {
			if s, ok := f.Geometry.(simplifier); ok {
				out.Flowpaths[i].Geometry = s.Simplify(tolerance)
			}
		}
	}
	return out, nil
}

func toLonLat(def string) (proj.Transformer, error) {
	src, err := proj.Parse(def)
	if err != nil {
		return nil, fmt.Errorf("parse projection: %w", err)
	}
	dst, err := proj.Parse(lonLat)
	if err != nil {
		return nil, err
	}
	return src.NewTransform(dst)
}
