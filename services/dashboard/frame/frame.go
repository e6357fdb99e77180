// Package frame holds the tabular form of routing output: one row per
// (feature_id, time, type) with float value columns, plus the restrict,
// concat and join operations the dashboard runs on every interaction.
package frame

import (
	"errors"
	"math"
	"time"
)

// ErrUnknownColumn is returned when a caller asks for a value column the
// frame does not carry.
var ErrUnknownColumn = errors.New("unknown column")

// Key identifies one observation row.
type Key struct {
	FeatureID int64     `json:"feature_id"`
	Time      time.Time `json:"time"`
	Type      string    `json:"type"`
}

// Row is a keyed observation. Values are aligned with Frame.Columns and
// missing values are NaN.
type Row struct {
	Key
	Values []float64
}

// Frame is an ordered table of rows sharing the same value columns.
type Frame struct {
	Columns []string
	Rows    []Row
}

// New returns an empty frame with the given value columns.
func New(columns ...string) *Frame {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Frame{Columns: cols}
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// Empty reports whether the frame has no rows.
func (f *Frame) Empty() bool {
	return f.Len() == 0
}

// ColumnIndex returns the position of a value column, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Append adds a row. values must be aligned with f.Columns.
func (f *Frame) Append(key Key, values ...float64) {
	vals := make([]float64, len(f.Columns))
	for i := range vals {
		if i < len(values) {
			vals[i] = values[i]
		} else {
			vals[i] = math.NaN()
		}
	}
	f.Rows = append(f.Rows, Row{Key: key, Values: vals})
}

// Value returns the named column of row i.
func (f *Frame) Value(i int, column string) (float64, error) {
	idx := f.ColumnIndex(column)
	if idx < 0 {
		return 0, ErrUnknownColumn
	}
	return f.Rows[i].Values[idx], nil
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	out := New(f.Columns...)
	out.Rows = make([]Row, len(f.Rows))
	for i, r := range f.Rows {
		vals := make([]float64, len(r.Values))
		copy(vals, r.Values)
		out.Rows[i] = Row{Key: r.Key, Values: vals}
	}
	return out
}

// normalizeKey puts times in UTC so keys compare equal across files
// written with different zone offsets.
func normalizeKey(k Key) Key {
	k.Time = k.Time.UTC()
	return k
}
