package repository

import (
	"encoding/json"
	"math"

	"tablerepo/internal/dbexec"
	"tablerepo/internal/uuidutil"
)

// Record is one row keyed by column name.
type Record map[string]any

func scanRecords(rows dbexec.Rows) ([]Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	records := []Record{}
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		record := make(Record, len(columns))
		for i, col := range columns {
			switch v := values[i].(type) {
			case []byte:
				record[col] = string(v)
			case [16]byte:
				record[col] = uuidutil.FromArray(v)
			default:
				record[col] = v
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func scanCount(rows dbexec.Rows) (int64, error) {
	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

// normalizeValues converts decoded JSON into values the driver binds
// natively: json.Number becomes int64 or float64, and homogeneous arrays
// become typed slices.
func normalizeValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case []any:
		return normalizeSlice(val)
	default:
		return v
	}
}

func normalizeSlice(items []any) any {
	if len(items) == 0 {
		return items
	}
	switch items[0].(type) {
	case string:
		out := make([]string, len(items))
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				return items
			}
			out[i] = s
		}
		return out
	case json.Number, float64:
		ints := make([]int64, 0, len(items))
		floats := make([]float64, len(items))
		integral := true
		for i, item := range items {
			var f float64
			switch n := item.(type) {
			case json.Number:
				parsed, err := n.Float64()
				if err != nil {
					return items
				}
				f = parsed
			case float64:
				f = n
			default:
				return items
			}
			floats[i] = f
			if integral && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
				ints = append(ints, int64(f))
			} else {
				integral = false
			}
		}
		if integral {
			return ints
		}
		return floats
	case bool:
		out := make([]bool, len(items))
		for i, item := range items {
			b, ok := item.(bool)
			if !ok {
				return items
			}
			out[i] = b
		}
		return out
	default:
		return items
	}
}
