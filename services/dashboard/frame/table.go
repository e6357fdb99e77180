package frame

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

// Table is a JSON friendly projection of a frame. NaN cells are null.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// FullTable projects every key and value column.
func FullTable(f *Frame) Table {
	t, _ := project(f, []string{"feature_id", "time", "type"}, f.Columns)
	return t
}

// ReducedTable keeps time, feature_id and the value columns starting with
// column.
func ReducedTable(f *Frame, column string) (Table, error) {
	cols := ColumnsWithPrefix(f, column)
	if len(cols) == 0 && !f.Empty() {
		return Table{}, fmt.Errorf("%w: %s", ErrUnknownColumn, column)
	}
	return project(f, []string{"time", "feature_id"}, cols)
}

func project(f *Frame, keys, values []string) (Table, error) {
	idx := make([]int, len(values))
	for i, c := range values {
		idx[i] = f.ColumnIndex(c)
		if idx[i] < 0 {
			return Table{}, fmt.Errorf("%w: %s", ErrUnknownColumn, c)
		}
	}

	t := Table{
		Columns: append(append([]string{}, keys...), values...),
		Rows:    make([][]any, 0, len(f.Rows)),
	}
	for _, r := range f.Rows {
		row := make([]any, 0, len(t.Columns))
		for _, k := range keys {
			switch k {
			case "feature_id":
				row = append(row, r.FeatureID)
			case "time":
				row = append(row, r.Time.UTC().Format(time.RFC3339))
			case "type":
				row = append(row, r.Type)
			}
		}
		for _, i := range idx {
			v := r.Values[i]
			if math.IsNaN(v) {
				row = append(row, nil)
				continue
			}
			row = append(row, v)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// WriteCSV writes the table with a header row. Null cells are empty.
func (t Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	rec := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, cell := range row {
			switch v := cell.(type) {
			case nil:
				rec[i] = ""
			case float64:
				rec[i] = strconv.FormatFloat(v, 'g', -1, 64)
			case int64:
				rec[i] = strconv.FormatInt(v, 10)
			default:
				rec[i] = fmt.Sprint(v)
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
