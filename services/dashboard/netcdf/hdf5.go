package netcdf

import (
	"fmt"

	native "github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// group is the part of a go-native-netcdf group the loader reads.
type group interface {
	Attributes() api.AttributeMap
	ListVariables() []string
	GetVariable(name string) (*api.Variable, error)
}

// openHDF5 reads a NetCDF4 (HDF5) file.
func openHDF5(path string) (*source, error) {
	g, err := native.Open(path)
	if err != nil {
		return nil, err
	}
	defer g.Close()
	return readGroup(g)
}

// readGroup reads every variable of g. Multi-dimensional values arrive as
// nested slices and character data as strings.
func readGroup(g group) (*source, error) {
	src := &source{attrs: groupAttrs(g.Attributes())}
	for _, name := range g.ListVariables() {
		vr, err := g.GetVariable(name)
		if err != nil {
			return nil, fmt.Errorf("read variable %s: %w", name, err)
		}
		if vr == nil {
			continue
		}

		nums, labels, shape, err := flattenValues(vr.Values)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		v := variable{
			name:   name,
			dims:   append([]string(nil), vr.Dimensions...),
			values: nums,
			labels: labels,
			char:   labels != nil,
			attrs:  groupAttrs(vr.Attributes),
		}
		switch {
		case v.char && len(v.dims) > len(shape):
			// Fixed-width char arrays lose their string-length dimension.
			v.dims = v.dims[:len(shape)]
			v.shape = shape
		case len(shape) == len(v.dims):
			v.shape = shape
		case len(v.dims) > 1 && len(shape) == 1:
			// Flat storage of a multi-dimensional variable; lengths come
			// from the coordinate variables.
		default:
			return nil, fmt.Errorf("%w: variable %s has %d dimensions but %d-level values",
				ErrUnsupportedLayout, name, len(v.dims), len(shape))
		}
		src.vars = append(src.vars, v)
	}
	return src, nil
}

func groupAttrs(m api.AttributeMap) map[string]any {
	out := make(map[string]any)
	if m == nil {
		return out
	}
	for _, k := range m.Keys() {
		x, ok := m.Get(k)
		if !ok {
			continue
		}
		if n := normalizeAttr(x); n != nil {
			out[k] = n
		}
	}
	return out
}
