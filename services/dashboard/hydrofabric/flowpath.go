// Package hydrofabric loads the flowpaths layer of a hydrofabric and turns
// it into a styled GeoJSON map view.
package hydrofabric

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
)

// IDPrefix precedes the integer feature id in a flowpath id.
const IDPrefix = "wb-"

// DefaultLayer is the table holding flowpaths.
const DefaultLayer = "flowpaths"

// ErrLayerNotFound is returned when the source has no flowpaths layer.
var ErrLayerNotFound = errors.New("flowpath layer not found")

// Flowpath is one reach polyline and its attributes.
type Flowpath struct {
	ID       string
	ToID     string
	Mainstem string
	DivideID string
	Geometry geom.Geom
}

// FeatureID strips IDPrefix from the flowpath id.
func (f Flowpath) FeatureID() (int64, bool) {
	if !strings.HasPrefix(f.ID, IDPrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(f.ID, IDPrefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Tooltip renders the attributes one per line, as the map shows them.
func (f Flowpath) Tooltip() string {
	var b strings.Builder
	b.WriteString("ID: " + f.ID + "\n")
	b.WriteString("To ID: " + f.ToID + "\n")
	b.WriteString("Mainstem: " + f.Mainstem + "\n")
	b.WriteString("Divide ID: " + f.DivideID + "\n")
	return b.String()
}

// Layer is a loaded flowpaths table.
type Layer struct {
	Name string
	// SRS is the WKT or PROJ definition of the coordinates. Empty means
	// geographic longitude/latitude.
	SRS string
	// Geographic is set once coordinates are EPSG:4326 longitude/latitude.
	Geographic bool
	Flowpaths  []Flowpath
}

// Source loads a flowpaths layer. ref is a file path for GeoPackages and a
// table name for PostGIS.
type Source interface {
	Load(ctx context.Context, ref string) (*Layer, error)
}

// Box is an axis aligned extent in layer coordinates.
type Box struct {
	MinX, MinY, MaxX, MaxY float64
}

func emptyBox() Box {
	return Box{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
}

// Valid reports whether the box covers at least one point.
func (b Box) Valid() bool {
	return b.MinX <= b.MaxX && b.MinY <= b.MaxY
}

func (b Box) extend(g geom.Geom) Box {
	if g == nil {
		return b
	}
	gb := g.Bounds()
	if gb == nil {
		return b
	}
	return Box{
		MinX: math.Min(b.MinX, gb.Min.X),
		MinY: math.Min(b.MinY, gb.Min.Y),
		MaxX: math.Max(b.MaxX, gb.Max.X),
		MaxY: math.Max(b.MaxY, gb.Max.Y),
	}
}

// Bounds returns the extent of every flowpath.
func (l *Layer) Bounds() Box {
	b := emptyBox()
	for _, f := range l.Flowpaths {
		b = b.extend(f.Geometry)
	}
	return b
}
