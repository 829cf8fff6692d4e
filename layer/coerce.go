package layer

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/go-spatial/geom"
)

func asString(name string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf(`%s is not a string but a %T`, name, v)
	}
	return s, nil
}

func asInt(name string, v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case int32:
		return int(n), nil
	case uint:
		return int(n), nil
	case uint64:
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf(`%s is not an integer: %w`, name, err)
		}
		return int(i), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf(`%s is not an integer: %v`, name, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf(`%s is not an integer but a %T`, name, v)
	}
}

// asNumber also reports whether the value is an integer rather than a float
func asNumber(name string, v any) (float64, bool, error) {
	switch n := v.(type) {
	case float64:
		return n, false, nil
	case float32:
		return float64(n), false, nil
	case int:
		return float64(n), true, nil
	case int64:
		return float64(n), true, nil
	case uint64:
		return float64(n), true, nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return float64(i), true, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false, fmt.Errorf(`%s is not a number: %w`, name, err)
		}
		return f, false, nil
	default:
		return 0, false, fmt.Errorf(`%s is not a number but a %T`, name, v)
	}
}

// asBBox accepts 4 numbers: minx, miny, maxx, maxy. An empty list means no extent.
func asBBox(name string, v any) (*BBox, error) {
	var values []any
	switch t := v.(type) {
	case *BBox:
		return t, nil
	case geom.Extent:
		return &BBox{Extent: t}, nil
	case *geom.Extent:
		return &BBox{Extent: *t}, nil
	case []float64:
		for _, f := range t {
			values = append(values, f)
		}
	case []any:
		values = t
	default:
		return nil, fmt.Errorf(`%s is not a list but a %T`, name, v)
	}
	if len(values) == 0 {
		return nil, nil
	}
	if len(values) != 4 {
		return nil, fmt.Errorf(`%s should have 4 values (minx, miny, maxx, maxy), got %d`, name, len(values))
	}
	var bbox BBox
	for i, value := range values {
		f, integral, err := asNumber(fmt.Sprintf("%s[%d]", name, i), value)
		if err != nil {
			return nil, err
		}
		bbox.Extent[i] = f
		bbox.Integral[i] = integral
	}
	return &bbox, nil
}
