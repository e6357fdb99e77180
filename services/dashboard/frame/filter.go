package frame

import (
	"math"
	"strings"
	"time"
)

// Restrict returns the rows of f whose feature id is in ids, with times
// normalized to UTC. A nil or empty id set yields an empty frame.
func Restrict(f *Frame, ids []int64) *Frame {
	out := New(f.Columns...)
	if len(ids) == 0 {
		return out
	}
	keep := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	for _, r := range f.Rows {
		if _, ok := keep[r.FeatureID]; !ok {
			continue
		}
		vals := make([]float64, len(r.Values))
		copy(vals, r.Values)
		out.Rows = append(out.Rows, Row{Key: normalizeKey(r.Key), Values: vals})
	}
	return out
}

// Concat stacks frames row-wise. The result carries the union of their
// columns in first-seen order; cells a frame does not have are NaN.
func Concat(frames ...*Frame) *Frame {
	var cols []string
	seen := map[string]bool{}
	for _, f := range frames {
		if f == nil {
			continue
		}
		for _, c := range f.Columns {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}

	out := New(cols...)
	for _, f := range frames {
		if f == nil {
			continue
		}
		pos := make([]int, len(f.Columns))
		for i, c := range f.Columns {
			pos[i] = out.ColumnIndex(c)
		}
		for _, r := range f.Rows {
			vals := nanRow(len(cols))
			for i, v := range r.Values {
				vals[pos[i]] = v
			}
			out.Rows = append(out.Rows, Row{Key: r.Key, Values: vals})
		}
	}
	return out
}

// BetweenTimes keeps rows with from <= time <= to.
func BetweenTimes(f *Frame, from, to time.Time) *Frame {
	out := New(f.Columns...)
	for _, r := range f.Rows {
		if r.Time.Before(from) || r.Time.After(to) {
			continue
		}
		out.Rows = append(out.Rows, r)
	}
	return out
}

// ForFeature returns the rows of a single feature, in frame order.
func ForFeature(f *Frame, id int64) *Frame {
	out := New(f.Columns...)
	for _, r := range f.Rows {
		if r.FeatureID == id {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// TimeBounds returns the earliest and latest row time across frames.
// ok is false when every frame is empty.
func TimeBounds(frames ...*Frame) (minT, maxT time.Time, ok bool) {
	for _, f := range frames {
		if f == nil {
			continue
		}
		for _, r := range f.Rows {
			if !ok || r.Time.Before(minT) {
				minT = r.Time
			}
			if !ok || r.Time.After(maxT) {
				maxT = r.Time
			}
			ok = true
		}
	}
	return minT, maxT, ok
}

// FeatureIDs returns the distinct feature ids of f in first-seen order.
func FeatureIDs(f *Frame) []int64 {
	seen := map[int64]bool{}
	ids := make([]int64, 0)
	for _, r := range f.Rows {
		if !seen[r.FeatureID] {
			seen[r.FeatureID] = true
			ids = append(ids, r.FeatureID)
		}
	}
	return ids
}

// ColumnsWithPrefix lists value columns starting with prefix, so "flow"
// picks up "flow", "flow_2", "flow_3" of a merged table.
func ColumnsWithPrefix(f *Frame, prefix string) []string {
	out := make([]string, 0)
	for _, c := range f.Columns {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func nanRow(n int) []float64 {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = math.NaN()
	}
	return vals
}
