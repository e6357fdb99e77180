package frame_test

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowercolorado/flowpath-viewer/services/dashboard/frame"
)

var t0 = time.Date(2023, time.April, 1, 0, 0, 0, 0, time.UTC)

func hour(n int) time.Time { return t0.Add(time.Duration(n) * time.Hour) }

func key(id int64, h int) frame.Key {
	return frame.Key{FeatureID: id, Time: hour(h), Type: "ql"}
}

func flowFrame(rows ...[3]float64) *frame.Frame {
	f := frame.New("flow")
	for _, r := range rows {
		f.Append(key(int64(r[0]), int(r[1])), r[2])
	}
	return f
}

func TestRestrict_KeepsExactlySelectedFeatures(t *testing.T) {
	f := flowFrame(
		[3]float64{101, 0, 1},
		[3]float64{102, 0, 2},
		[3]float64{103, 0, 3},
		[3]float64{101, 1, 4},
	)

	tests := []struct {
		name string
		ids  []int64
		want []int64
	}{
		{"single", []int64{101}, []int64{101, 101}},
		{"two", []int64{102, 103}, []int64{102, 103}},
		{"absent", []int64{999}, nil},
		{"empty set", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := frame.Restrict(f, tt.ids)
			var ids []int64
			for _, r := range got.Rows {
				ids = append(ids, r.FeatureID)
			}
			assert.Equal(t, tt.want, ids)
			assert.Equal(t, f.Columns, got.Columns)
		})
	}
}

func TestRestrict_NormalizesTimeToUTC(t *testing.T) {
	loc := time.FixedZone("CDT", -5*3600)
	f := frame.New("flow")
	f.Append(frame.Key{FeatureID: 1, Time: t0.In(loc)}, 1)

	got := frame.Restrict(f, []int64{1})
	require.Equal(t, 1, got.Len())
	assert.Equal(t, time.UTC, got.Rows[0].Time.Location())
	assert.True(t, got.Rows[0].Time.Equal(t0))
}

func TestMerge_TwoDatasetsSuffixSecond(t *testing.T) {
	a := flowFrame([3]float64{101, 0, 1.0}, [3]float64{101, 1, 2.0})
	b := flowFrame([3]float64{101, 0, 1.5}, [3]float64{101, 1, 2.5})

	m, err := frame.Merge(frame.JoinInner, a, b)
	require.NoError(t, err)

	assert.Equal(t, []string{"flow", "flow_2"}, m.Columns)
	require.Equal(t, 2, m.Len())
	assert.Equal(t, key(101, 0), m.Rows[0].Key)
	assert.Equal(t, []float64{1.0, 1.5}, m.Rows[0].Values)
	assert.Equal(t, key(101, 1), m.Rows[1].Key)
	assert.Equal(t, []float64{2.0, 2.5}, m.Rows[1].Values)
}

func TestMerge_ThirdFrameGetsOrdinalSuffix(t *testing.T) {
	a := flowFrame([3]float64{1, 0, 1})
	b := flowFrame([3]float64{1, 0, 2})
	c := flowFrame([3]float64{1, 0, 3})

	m, err := frame.Merge(frame.JoinInner, a, b, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"flow", "flow_2", "flow_3"}, m.Columns)
	assert.Equal(t, []float64{1, 2, 3}, m.Rows[0].Values)
}

func TestMerge_DistinctColumnsAreNotSuffixed(t *testing.T) {
	a := flowFrame([3]float64{1, 0, 1})
	b := frame.New("depth")
	b.Append(key(1, 0), 0.4)

	m, err := frame.Merge(frame.JoinInner, a, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"flow", "depth"}, m.Columns)
}

func TestMerge_InnerDropsUnmatchedAndEmptyInputEmptiesResult(t *testing.T) {
	a := flowFrame([3]float64{1, 0, 1}, [3]float64{2, 0, 2})
	b := flowFrame([3]float64{2, 0, 20}, [3]float64{3, 0, 30})

	m, err := frame.Merge(frame.JoinInner, a, b)
	require.NoError(t, err)
	require.Equal(t, 1, m.Len())
	assert.Equal(t, int64(2), m.Rows[0].FeatureID)

	m, err = frame.Merge(frame.JoinInner, a, frame.New("flow"))
	require.NoError(t, err)
	assert.True(t, m.Empty())
}

func TestMerge_OuterKeepsBothSides(t *testing.T) {
	a := flowFrame([3]float64{1, 0, 1}, [3]float64{2, 0, 2})
	b := flowFrame([3]float64{2, 0, 20}, [3]float64{3, 0, 30})

	m, err := frame.Merge(frame.JoinOuter, a, b)
	require.NoError(t, err)
	require.Equal(t, 3, m.Len())

	assert.Equal(t, int64(1), m.Rows[0].FeatureID)
	assert.Equal(t, 1.0, m.Rows[0].Values[0])
	assert.True(t, math.IsNaN(m.Rows[0].Values[1]))

	assert.Equal(t, []float64{2, 20}, m.Rows[1].Values)

	assert.Equal(t, int64(3), m.Rows[2].FeatureID)
	assert.True(t, math.IsNaN(m.Rows[2].Values[0]))
	assert.Equal(t, 30.0, m.Rows[2].Values[1])
}

func TestMerge_AssociativeInContent(t *testing.T) {
	a := flowFrame([3]float64{1, 0, 1}, [3]float64{1, 1, 2}, [3]float64{2, 0, 9})
	b := flowFrame([3]float64{1, 0, 3}, [3]float64{1, 1, 4})
	c := flowFrame([3]float64{1, 0, 5}, [3]float64{1, 1, 6}, [3]float64{3, 0, 7})

	ab, err := frame.Merge(frame.JoinInner, a, b)
	require.NoError(t, err)
	left, err := frame.Merge(frame.JoinInner, ab, c)
	require.NoError(t, err)

	bc, err := frame.Merge(frame.JoinInner, b, c)
	require.NoError(t, err)
	right, err := frame.Merge(frame.JoinInner, a, bc)
	require.NoError(t, err)

	require.Equal(t, left.Len(), right.Len())
	for i := range left.Rows {
		assert.Equal(t, left.Rows[i].Key, right.Rows[i].Key)
		assert.Equal(t, left.Rows[i].Values, right.Rows[i].Values)
	}
}

func TestMerge_RejectsUnknownMode(t *testing.T) {
	_, err := frame.Merge(frame.JoinMode("left"), frame.New())
	assert.Error(t, err)
}

func TestParseJoinMode(t *testing.T) {
	m, err := frame.ParseJoinMode(" OUTER ")
	require.NoError(t, err)
	assert.Equal(t, frame.JoinOuter, m)

	_, err = frame.ParseJoinMode("cross")
	assert.Error(t, err)
}

func TestBetweenTimes_InclusiveRange(t *testing.T) {
	f := frame.New("flow")
	for h := 0; h <= 4; h++ {
		f.Append(key(1, h), float64(h))
	}

	got := frame.BetweenTimes(f, hour(1), hour(3))

	var hours []float64
	for _, r := range got.Rows {
		hours = append(hours, r.Values[0])
	}
	assert.Equal(t, []float64{1, 2, 3}, hours)
}

func TestConcat_UnionsColumns(t *testing.T) {
	a := flowFrame([3]float64{1, 0, 1})
	b := frame.New("depth", "flow")
	b.Append(key(1, 1), 0.5, 2)

	got := frame.Concat(a, nil, b)
	assert.Equal(t, []string{"flow", "depth"}, got.Columns)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, 1.0, got.Rows[0].Values[0])
	assert.True(t, math.IsNaN(got.Rows[0].Values[1]))
	assert.Equal(t, []float64{2, 0.5}, got.Rows[1].Values)
}

func TestTimeBoundsAndFeatureIDs(t *testing.T) {
	a := flowFrame([3]float64{5, 2, 1}, [3]float64{3, 0, 1}, [3]float64{5, 1, 1})
	b := flowFrame([3]float64{7, 6, 1})

	minT, maxT, ok := frame.TimeBounds(a, frame.New(), b)
	require.True(t, ok)
	assert.Equal(t, hour(0), minT)
	assert.Equal(t, hour(6), maxT)

	_, _, ok = frame.TimeBounds(frame.New())
	assert.False(t, ok)

	assert.Equal(t, []int64{5, 3}, frame.FeatureIDs(a))
}

func TestReducedTable(t *testing.T) {
	a := frame.New("flow", "velocity")
	a.Append(key(1, 0), 1, 0.1)
	b := frame.New("flow", "velocity")
	b.Append(key(1, 0), math.NaN(), 0.2)
	m, err := frame.Merge(frame.JoinInner, a, b)
	require.NoError(t, err)

	tbl, err := frame.ReducedTable(m, "flow")
	require.NoError(t, err)
	assert.Equal(t, []string{"time", "feature_id", "flow", "flow_2"}, tbl.Columns)
	assert.Equal(t, []any{"2023-04-01T00:00:00Z", int64(1), 1.0, nil}, tbl.Rows[0])

	_, err = frame.ReducedTable(m, "depth")
	assert.ErrorIs(t, err, frame.ErrUnknownColumn)

	full := frame.FullTable(m)
	assert.Equal(t, []string{"feature_id", "time", "type", "flow", "velocity", "flow_2", "velocity_2"}, full.Columns)
}

func TestTableWriteCSV(t *testing.T) {
	f := frame.New("flow")
	f.Append(key(101, 0), 1.5)
	f.Append(key(101, 1), math.NaN())

	var buf bytes.Buffer
	require.NoError(t, frame.FullTable(f).WriteCSV(&buf))
	assert.Equal(t,
		"feature_id,time,type,flow\n"+
			"101,2023-04-01T00:00:00Z,ql,1.5\n"+
			"101,2023-04-01T01:00:00Z,ql,\n",
		buf.String())
}
