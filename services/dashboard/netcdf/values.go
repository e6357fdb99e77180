package netcdf

import (
	"fmt"
	"reflect"
	"strings"
)

// flattenValues walks a scalar or a (nested) slice of numbers or strings in
// row-major order. shape holds the length of each nesting level.
func flattenValues(x any) (nums []float64, labels []string, shape []int, err error) {
	var walk func(rv reflect.Value, depth int) error
	walk = func(rv reflect.Value, depth int) error {
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			if depth == len(shape) {
				shape = append(shape, rv.Len())
			}
			for i := 0; i < rv.Len(); i++ {
				if err := walk(rv.Index(i), depth+1); err != nil {
					return err
				}
			}
		case reflect.String:
			labels = append(labels, cleanLabel(rv.String()))
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			nums = append(nums, float64(rv.Int()))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			nums = append(nums, float64(rv.Uint()))
		case reflect.Float32, reflect.Float64:
			nums = append(nums, rv.Float())
		case reflect.Interface:
			return walk(rv.Elem(), depth)
		default:
			return fmt.Errorf("unsupported value type %s", rv.Type())
		}
		return nil
	}

	if x == nil {
		return nil, nil, nil, fmt.Errorf("no values")
	}
	if err := walk(reflect.ValueOf(x), 0); err != nil {
		return nil, nil, nil, err
	}
	if nums != nil && labels != nil {
		return nil, nil, nil, fmt.Errorf("mixed numeric and character values")
	}
	return nums, labels, shape, nil
}

// toFloats converts numeric variable data to float64.
func toFloats(raw any) ([]float64, error) {
	nums, labels, _, err := flattenValues(raw)
	if err != nil {
		return nil, err
	}
	if labels != nil {
		return nil, fmt.Errorf("character data where numbers were expected")
	}
	if nums == nil {
		nums = []float64{}
	}
	return nums, nil
}

// normalizeAttr turns an attribute value into a string or []float64. Other
// values are dropped.
func normalizeAttr(x any) any {
	if s, ok := x.(string); ok {
		return strings.TrimRight(s, "\x00")
	}
	nums, labels, _, err := flattenValues(x)
	switch {
	case err != nil:
		return nil
	case labels != nil:
		return strings.Join(labels, "")
	case nums != nil:
		return nums
	}
	return nil
}
