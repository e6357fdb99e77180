package frame

import (
	"fmt"
	"strings"
)

// JoinMode selects how Merge treats keys missing from one side.
type JoinMode string

const (
	JoinInner JoinMode = "inner"
	JoinOuter JoinMode = "outer"
)

// ParseJoinMode accepts "inner" or "outer" in any case.
func ParseJoinMode(s string) (JoinMode, error) {
	switch JoinMode(strings.ToLower(strings.TrimSpace(s))) {
	case JoinInner:
		return JoinInner, nil
	case JoinOuter:
		return JoinOuter, nil
	default:
		return "", fmt.Errorf("invalid join mode %q", s)
	}
}

// Merge joins frames left to right on (feature_id, time, type).
//
// When a value column of the i-th frame (1-based) already exists in the
// accumulated result it is renamed "<name>_<i>"; the first frame keeps its
// bare names. Left row order is preserved. With JoinOuter, right rows that
// matched nothing follow in right order with NaN for the left columns.
// Duplicate keys on either side produce one row per pair.
func Merge(mode JoinMode, frames ...*Frame) (*Frame, error) {
	if mode != JoinInner && mode != JoinOuter {
		return nil, fmt.Errorf("merge: invalid join mode %q", mode)
	}
	if len(frames) == 0 {
		return New(), nil
	}

	acc := frames[0].Clone()
	for i := range acc.Rows {
		acc.Rows[i].Key = normalizeKey(acc.Rows[i].Key)
	}

	for n, right := range frames[1:] {
		ordinal := n + 2
		if right == nil {
			right = New()
		}
		acc = join(mode, acc, right, ordinal)
	}
	return acc, nil
}

func join(mode JoinMode, left, right *Frame, ordinal int) *Frame {
	cols := make([]string, 0, len(left.Columns)+len(right.Columns))
	cols = append(cols, left.Columns...)
	taken := make(map[string]bool, len(cols))
	for _, c := range cols {
		taken[c] = true
	}
	for _, c := range right.Columns {
		name := c
		for taken[name] {
			name = fmt.Sprintf("%s_%d", name, ordinal)
		}
		taken[name] = true
		cols = append(cols, name)
	}

	index := make(map[Key][]int, len(right.Rows))
	for i, r := range right.Rows {
		k := normalizeKey(r.Key)
		index[k] = append(index[k], i)
	}

	nl, nr := len(left.Columns), len(right.Columns)
	out := New(cols...)
	matched := make([]bool, len(right.Rows))

	for _, l := range left.Rows {
		hits := index[l.Key]
		if len(hits) == 0 {
			if mode == JoinOuter {
				vals := nanRow(nl + nr)
				copy(vals, l.Values)
				out.Rows = append(out.Rows, Row{Key: l.Key, Values: vals})
			}
			continue
		}
		for _, ri := range hits {
			matched[ri] = true
			vals := make([]float64, nl+nr)
			copy(vals, l.Values)
			copy(vals[nl:], right.Rows[ri].Values)
			out.Rows = append(out.Rows, Row{Key: l.Key, Values: vals})
		}
	}

	if mode == JoinOuter {
		for i, r := range right.Rows {
			if matched[i] {
				continue
			}
			vals := nanRow(nl + nr)
			copy(vals[nl:], r.Values)
			out.Rows = append(out.Rows, Row{Key: normalizeKey(r.Key), Values: vals})
		}
	}
	return out
}
