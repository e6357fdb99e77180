// Package netcdf turns one time-slice file of routing output into a frame
// with one row per feature, time and type. Classic (CDF-1/2) and NetCDF4
// (HDF5) files are read.
package netcdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/lowercolorado/flowpath-viewer/services/dashboard/frame"
	"github.com/lowercolorado/flowpath-viewer/services/dashboard/memo"
)

// Dimension and variable names of routing output.
const (
	DimFeature = "feature_id"
	DimTime    = "time"
	VarType    = "type"
)

// ErrUnsupportedLayout is returned for files whose variables span
// dimensions other than feature_id and time.
var ErrUnsupportedLayout = errors.New("unsupported NetCDF layout")

// ErrUnknownFormat is returned for files that are neither classic NetCDF
// nor HDF5.
var ErrUnknownFormat = errors.New("not a NetCDF file")

// Loader reads time-slice files, memoizing per path. Files are assumed
// immutable once written.
type Loader struct {
	cache    *memo.Cache[*frame.Frame]
	onDecode func(path string, took time.Duration)
}

// NewLoader wraps cache; a nil cache disables memoization.
func NewLoader(cache *memo.Cache[*frame.Frame]) *Loader {
	return &Loader{cache: cache}
}

// OnDecode registers fn to be told about every file read from disk.
func (l *Loader) OnDecode(fn func(path string, took time.Duration)) {
	l.onDecode = fn
}

// Load returns the frame of path. Callers must not mutate the result.
func (l *Loader) Load(path string) (*frame.Frame, error) {
	if l.cache == nil {
		return l.decode(path)
	}
	return l.cache.Do("netcdf.Load", []any{path}, func() (*frame.Frame, error) {
		return l.decode(path)
	})
}

func (l *Loader) decode(path string) (*frame.Frame, error) {
	start := time.Now()
	f, err := Load(path)
	if err == nil && l.onDecode != nil {
		l.onDecode(path, time.Since(start))
	}
	return f, err
}

var (
	classicMagic = []byte("CDF")
	hdf5Magic    = []byte("\x89HDF\r\n\x1a\n")
)

// Load reads path and flattens every dimension into rows.
func Load(path string) (*frame.Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer fh.Close()

	magic := make([]byte, len(hdf5Magic))
	n, err := io.ReadFull(fh, magic)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	magic = magic[:n]

	var src *source
	switch {
	case bytes.HasPrefix(magic, classicMagic):
		src, err = readClassic(fh)
	case bytes.HasPrefix(magic, hdf5Magic):
		src, err = openHDF5(path)
	default:
		err = ErrUnknownFormat
	}
	if err != nil {
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}

	out, err := flatten(src, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return out, nil
}

// variable is one NetCDF variable read into memory. Character data is
// held in labels with the string-length dimension removed from dims.
type variable struct {
	name   string
	dims   []string
	shape  []int // nil when the reader could not tell
	values []float64
	labels []string
	char   bool
	attrs  map[string]any
}

// source is a file's variables in file order plus its global attributes.
// Attribute values are strings or []float64.
type source struct {
	vars  []variable
	attrs map[string]any
}

type typeVar struct {
	dims   []string
	labels []string
}

func flatten(src *source, name string) (*frame.Frame, error) {
	nFeature, nTime := -1, -1
	var values []variable
	var kind *typeVar
	var featureIDs []float64
	var times []time.Time

	for _, v := range src.vars {
		switch {
		case v.name == DimFeature && len(v.dims) == 1 && v.dims[0] == DimFeature && !v.char:
			featureIDs = v.values
		case v.name == DimTime && len(v.dims) == 1 && v.dims[0] == DimTime && !v.char:
			decoded, err := decodeTimes(v.values, attrString(v.attrs, "units"))
			if err != nil {
				return nil, fmt.Errorf("variable time: %w", err)
			}
			times = decoded
		case v.name == VarType:
			kind = typeLabels(v)
		case len(v.dims) == 0 || v.char:
			continue
		default:
			for _, d := range v.dims {
				if d != DimFeature && d != DimTime {
					return nil, fmt.Errorf("%w: variable %s spans dimension %s", ErrUnsupportedLayout, v.name, d)
				}
			}
			unpack(v)
			values = append(values, v)
		}
	}

	for _, v := range values {
		if len(v.shape) != len(v.dims) {
			continue
		}
		for i, d := range v.dims {
			switch d {
			case DimFeature:
				nFeature = max(nFeature, v.shape[i])
			case DimTime:
				nTime = max(nTime, v.shape[i])
			}
		}
	}
	if featureIDs != nil {
		nFeature = len(featureIDs)
	}
	if times != nil {
		nTime = len(times)
	}
	if nFeature < 0 {
		return nil, fmt.Errorf("%w: no %s dimension", ErrUnsupportedLayout, DimFeature)
	}
	if nTime < 0 {
		stamp, err := sliceTime(src.attrs, name)
		if err != nil {
			return nil, err
		}
		times = []time.Time{stamp}
		nTime = 1
	}
	if times == nil {
		return nil, fmt.Errorf("%w: time dimension without a time variable", ErrUnsupportedLayout)
	}

	for _, v := range values {
		if want := size(v.dims, nFeature, nTime); len(v.values) < want {
			return nil, fmt.Errorf("%w: variable %s has %d values, want %d", ErrUnsupportedLayout, v.name, len(v.values), want)
		}
	}
	if kind != nil {
		if want := size(kind.dims, nFeature, nTime); len(kind.labels) < want {
			return nil, fmt.Errorf("%w: variable %s has %d values, want %d", ErrUnsupportedLayout, VarType, len(kind.labels), want)
		}
	}

	cols := make([]string, len(values))
	for i, v := range values {
		cols[i] = v.name
	}
	out := frame.New(cols...)
	out.Rows = make([]frame.Row, 0, nFeature*nTime)

	for fi := 0; fi < nFeature; fi++ {
		id := int64(fi)
		if featureIDs != nil {
			id = int64(featureIDs[fi])
		}
		for ti := 0; ti < nTime; ti++ {
			k := frame.Key{FeatureID: id, Time: times[ti].UTC()}
			if kind != nil {
				k.Type = kind.labels[offset(kind.dims, fi, ti, nFeature, nTime)]
			}
			vals := make([]float64, len(values))
			for i, v := range values {
				vals[i] = v.values[offset(v.dims, fi, ti, nFeature, nTime)]
			}
			out.Rows = append(out.Rows, frame.Row{Key: k, Values: vals})
		}
	}
	return out, nil
}

// offset is the row-major position of (fi, ti) in a variable laid out over
// dims, which is a subset of {feature_id, time}.
func offset(dims []string, fi, ti, nFeature, nTime int) int {
	idx := 0
	for _, d := range dims {
		switch d {
		case DimFeature:
			idx = idx*nFeature + fi
		case DimTime:
			idx = idx*nTime + ti
		}
	}
	return idx
}

func size(dims []string, nFeature, nTime int) int {
	n := 1
	for _, d := range dims {
		switch d {
		case DimFeature:
			n *= nFeature
		case DimTime:
			n *= nTime
		}
	}
	return n
}

// typeLabels reads the type variable. Numeric codes print in their
// shortest decimal form.
func typeLabels(v variable) *typeVar {
	if v.char {
		return &typeVar{dims: v.dims, labels: v.labels}
	}
	labels := make([]string, len(v.values))
	for i, n := range v.values {
		labels[i] = strconv.FormatFloat(n, 'f', -1, 64)
	}
	return &typeVar{dims: v.dims, labels: labels}
}

// unpack applies CF packing and fill conventions in place.
func unpack(v variable) {
	fills := make([]float64, 0, 2)
	for _, a := range []string{"_FillValue", "missing_value"} {
		if x, ok := attrFloat(v.attrs, a); ok {
			fills = append(fills, x)
		}
	}
	scale, hasScale := attrFloat(v.attrs, "scale_factor")
	add, hasAdd := attrFloat(v.attrs, "add_offset")

	for i, x := range v.values {
		missing := false
		for _, fv := range fills {
			if x == fv {
				missing = true
				break
			}
		}
		if missing {
			v.values[i] = math.NaN()
			continue
		}
		if hasScale {
			x *= scale
		}
		if hasAdd {
			x += add
		}
		v.values[i] = x
	}
}

func attrFloat(attrs map[string]any, a string) (float64, bool) {
	if x, ok := attrs[a].([]float64); ok && len(x) > 0 {
		return x[0], true
	}
	return 0, false
}

func attrString(attrs map[string]any, a string) string {
	s, _ := attrs[a].(string)
	return s
}

var stampPattern = regexp.MustCompile(`(\d{12})`)

// sliceTime finds the timestamp of a file that has no time dimension.
func sliceTime(attrs map[string]any, name string) (time.Time, error) {
	for _, a := range []string{"file_output_time", "time"} {
		if s := attrString(attrs, a); s != "" {
			if t, err := parseReference(s); err == nil {
				return t, nil
			}
		}
	}
	if m := stampPattern.FindString(name); m != "" {
		if t, err := time.Parse("200601021504", m); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot determine time of %s", ErrUnsupportedLayout, name)
}
