package netcdf

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ctessum/cdf"
)

const recordChunk = 4096

// readClassic reads every variable of a CDF-1/2 file.
func readClassic(rw cdf.ReaderWriterAt) (*source, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, err
	}
	h := f.Header

	src := &source{attrs: classicAttrs(h, "")}
	for _, name := range h.Variables() {
		v := variable{
			name:  name,
			dims:  h.Dimensions(name),
			shape: h.Lengths(name),
			attrs: classicAttrs(h, name),
		}
		raw, err := readAll(f, name)
		if err != nil {
			return nil, err
		}

		if chars, ok := raw.([]uint8); ok && isCharVar(h, name) {
			v.char = true
			if len(v.dims) == 0 {
				v.labels = []string{cleanLabel(string(chars))}
			} else {
				width := v.shape[len(v.shape)-1]
				if width <= 0 {
					return nil, fmt.Errorf("variable %s: zero string length", name)
				}
				v.labels = make([]string, 0, len(chars)/width)
				for i := 0; i+width <= len(chars); i += width {
					v.labels = append(v.labels, cleanLabel(string(chars[i:i+width])))
				}
				v.dims = v.dims[:len(v.dims)-1]
				v.shape = v.shape[:len(v.shape)-1]
			}
		} else {
			values, err := toFloats(raw)
			if err != nil {
				return nil, fmt.Errorf("variable %s: %w", name, err)
			}
			v.values = values
		}
		v.shape = fillRecordLength(v.shape, len(v.values)+len(v.labels))
		src.vars = append(src.vars, v)
	}
	return src, nil
}

// isCharVar reports whether v has NetCDF type CHAR, which cdf models as a
// string zero value.
func isCharVar(h *cdf.Header, v string) bool {
	_, ok := h.ZeroValue(v, 0).(string)
	return ok
}

// zeroValue allocates a read buffer for v. CHAR variables are read as bytes.
func zeroValue(h *cdf.Header, v string, n int) any {
	if isCharVar(h, v) {
		return make([]uint8, n)
	}
	return h.ZeroValue(v, n)
}

// readAll reads every element of v. Record variables are read in chunks
// until the reader is exhausted.
func readAll(f *cdf.File, v string) (any, error) {
	n := 1
	for _, l := range f.Header.Lengths(v) {
		n *= l
	}
	if n > 0 {
		buf := zeroValue(f.Header, v, n)
		if _, err := f.Reader(v, nil, nil).Read(buf); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read variable %s: %w", v, err)
		}
		return buf, nil
	}

	r := f.Reader(v, nil, nil)
	var out any
	for {
		chunk := zeroValue(f.Header, v, recordChunk)
		got, err := r.Read(chunk)
		if got > 0 {
			out = appendChunk(out, chunk, got)
		}
		if errors.Is(err, io.EOF) || got == 0 {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read variable %s: %w", v, err)
		}
	}
	if out == nil {
		out = zeroValue(f.Header, v, 0)
	}
	return out, nil
}

func appendChunk(acc, chunk any, n int) any {
	switch c := chunk.(type) {
	case []uint8:
		a, _ := acc.([]uint8)
		return append(a, c[:n]...)
	case []int16:
		a, _ := acc.([]int16)
		return append(a, c[:n]...)
	case []int32:
		a, _ := acc.([]int32)
		return append(a, c[:n]...)
	case []float32:
		a, _ := acc.([]float32)
		return append(a, c[:n]...)
	case []float64:
		a, _ := acc.([]float64)
		return append(a, c[:n]...)
	}
	return acc
}

// fillRecordLength replaces the zero length the header reports for the
// record dimension with the length implied by n values.
func fillRecordLength(shape []int, n int) []int {
	out := append([]int(nil), shape...)
	known, zero := 1, -1
	for i, l := range out {
		if l == 0 {
			zero = i
			continue
		}
		known *= l
	}
	if zero >= 0 && known > 0 {
		out[zero] = n / known
	}
	return out
}

func classicAttrs(h *cdf.Header, v string) map[string]any {
	names := h.Attributes(v)
	out := make(map[string]any, len(names))
	for _, a := range names {
		if x := normalizeAttr(h.GetAttribute(v, a)); x != nil {
			out[a] = x
		}
	}
	return out
}

func cleanLabel(s string) string {
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}
