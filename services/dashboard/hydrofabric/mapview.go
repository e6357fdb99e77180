package hydrofabric

import (
	"fmt"

	"github.com/ctessum/geom/encoding/geojson"
)

// DefaultZoom is the initial zoom level of the map.
const DefaultZoom = 10

// DefaultFitPadding is added on every side of the fitted feature, in degrees.
const DefaultFitPadding = 0.01

// Style is the stroke of one flowpath.
type Style struct {
	Color  string `json:"color"`
	Weight int    `json:"weight"`
}

var (
	DefaultStyle   = Style{Color: "blue", Weight: 2}
	HighlightStyle = Style{Color: "red", Weight: 5}
)

// Properties are the attributes carried by each map feature.
type Properties struct {
	ID        string `json:"id"`
	ToID      string `json:"toid"`
	Mainstem  string `json:"mainstem"`
	DivideID  string `json:"divide_id"`
	FeatureID *int64 `json:"feature_id"`
	Tooltip   string `json:"tooltip"`
	Selected  bool   `json:"selected"`
	Style     Style  `json:"style"`
}

// Feature is a GeoJSON feature.
type Feature struct {
	Type       string            `json:"type"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties Properties        `json:"properties"`
}

// FeatureCollection is a GeoJSON feature collection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// View positions the map. Coordinates are [lat, lon] pairs.
type View struct {
	Center    [2]float64     `json:"center"`
	Zoom      int            `json:"zoom"`
	FitBounds *[2][2]float64 `json:"fit_bounds,omitempty"`
}

// Map is a styled flowpath layer and its initial view.
type Map struct {
	Layer FeatureCollection `json:"layer"`
	View  View              `json:"view"`
}

// BuildMap styles a prepared layer. Features whose id is in selected are
// highlighted and the view is fitted to the last selected id found in the
// layer.
func BuildMap(layer *Layer, selected []int64, padding float64) (*Map, error) {
	highlight := make(map[int64]bool, len(selected))
	for _, id := range selected {
		highlight[id] = true
	}

	m := &Map{
		Layer: FeatureCollection{Type: "FeatureCollection", Features: make([]Feature, 0, len(layer.Flowpaths))},
		View:  View{Zoom: DefaultZoom},
	}
	if b := layer.Bounds(); b.Valid() {
		m.View.Center = [2]float64{(b.MinY + b.MaxY) / 2, (b.MinX + b.MaxX) / 2}
	}

	first := make(map[int64]*Flowpath, len(selected))
	for i := range layer.Flowpaths {
		f := &layer.Flowpaths[i]
		props := Properties{
			ID:       f.ID,
			ToID:     f.ToID,
			Mainstem: f.Mainstem,
			DivideID: f.DivideID,
			Tooltip:  f.Tooltip(),
			Style:    DefaultStyle,
		}
		if id, ok := f.FeatureID(); ok {
			props.FeatureID = &id
			if highlight[id] {
				props.Selected = true
				props.Style = HighlightStyle
				if _, seen := first[id]; !seen {
					first[id] = f
				}
			}
		}

		var g *geojson.Geometry
		if f.Geometry != nil {
			var err error
			if g, err = geojson.ToGeoJSON(f.Geometry); err != nil {
				return nil, fmt.Errorf("encode %s: %w", f.ID, err)
			}
		}
		m.Layer.Features = append(m.Layer.Features, Feature{Type: "Feature", Geometry: g, Properties: props})
	}

	var last *Flowpath
	for i := len(selected) - 1; i >= 0 && last == nil; i-- {
		last = first[selected[i]]
	}
	if last != nil {
		if b := emptyBox().extend(last.Geometry); b.Valid() {
			m.View.FitBounds = &[2][2]float64{
				{b.MinY - padding, b.MinX - padding},
				{b.MaxY + padding, b.MaxX + padding},
			}
		}
	}
	return m, nil
}
