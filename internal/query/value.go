package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ValueKind discriminates the shapes a filter value may take.
type ValueKind int

const (
	KindNone ValueKind = iota
	KindText
	KindNumber
	KindBool
	KindTextArray
	KindNumberArray
)

func (k ValueKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindTextArray:
		return "text[]"
	case KindNumberArray:
		return "number[]"
	default:
		return "unknown"
	}
}

// Value is a typed filter value. The zero Value is absent (KindNone).
type Value struct {
	kind    ValueKind
	text    string
	number  numeric
	boolean bool
	texts   []string
	numbers []numeric
}

// numeric keeps integers exact; only non-integral input is held as float64.
type numeric struct {
	integer bool
	i       int64
	f       float64
}

func intNumeric(n int64) numeric { return numeric{integer: true, i: n, f: float64(n)} }

func floatNumeric(f float64) numeric {
	if isIntegral(f) {
		return intNumeric(int64(f))
	}
	return numeric{f: f}
}

func parseNumeric(num json.Number) (numeric, error) {
	if i, err := num.Int64(); err == nil {
		return intNumeric(i), nil
	}
	f, err := num.Float64()
	if err != nil {
		return numeric{}, fmt.Errorf("%w: invalid number %s", ErrInvalid, num.String())
	}
	return floatNumeric(f), nil
}

func (n numeric) bind() any {
	if n.integer {
		return n.i
	}
	return n.f
}

func (n numeric) String() string {
	if n.integer {
		return strconv.FormatInt(n.i, 10)
	}
	return strconv.FormatFloat(n.f, 'f', -1, 64)
}

// Text returns a text value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, number: floatNumeric(n)} }

// Int returns a numeric value holding an integer.
func Int(n int64) Value { return Value{kind: KindNumber, number: intNumeric(n)} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// TextArray returns an array-of-text value.
func TextArray(items ...string) Value {
	return Value{kind: KindTextArray, texts: append([]string{}, items...)}
}

// NumberArray returns an array-of-number value.
func NumberArray(items ...float64) Value {
	numbers := make([]numeric, len(items))
	for i, n := range items {
		numbers[i] = floatNumeric(n)
	}
	return Value{kind: KindNumberArray, numbers: numbers}
}

// IntArray returns an array-of-number value holding integers.
func IntArray(items ...int64) Value {
	numbers := make([]numeric, len(items))
	for i, n := range items {
		numbers[i] = intNumeric(n)
	}
	return Value{kind: KindNumberArray, numbers: numbers}
}

// Kind reports the value's shape.
func (v Value) Kind() ValueKind { return v.kind }

// IsZero reports whether the value is absent.
func (v Value) IsZero() bool { return v.kind == KindNone }

// IsArray reports whether the value holds an array.
func (v Value) IsArray() bool { return v.kind == KindTextArray || v.kind == KindNumberArray }

// Len returns the number of array elements, or 0 for scalars.
func (v Value) Len() int {
	switch v.kind {
	case KindTextArray:
		return len(v.texts)
	case KindNumberArray:
		return len(v.numbers)
	default:
		return 0
	}
}

// Truthy reports whether the value is boolean true or the text "true".
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.boolean
	case KindText:
		return v.text == "true"
	default:
		return false
	}
}

// Bind returns the value in the form handed to the driver. Integral numbers
// bind as int64 and arrays bind as a single slice.
func (v Value) Bind() any {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return v.number.bind()
	case KindBool:
		return v.boolean
	case KindTextArray:
		return append([]string{}, v.texts...)
	case KindNumberArray:
		if allIntegral(v.numbers) {
			out := make([]int64, len(v.numbers))
			for i, n := range v.numbers {
				out[i] = n.i
			}
			return out
		}
		out := make([]float64, len(v.numbers))
		for i, n := range v.numbers {
			out[i] = n.f
		}
		return out
	default:
		return nil
	}
}

// Elements returns the bindable array elements, or nil for scalars.
func (v Value) Elements() []any {
	switch v.kind {
	case KindTextArray:
		out := make([]any, len(v.texts))
		for i, s := range v.texts {
			out[i] = s
		}
		return out
	case KindNumberArray:
		out := make([]any, len(v.numbers))
		for i, n := range v.numbers {
			out[i] = n.bind()
		}
		return out
	default:
		return nil
	}
}

// String renders scalar values as text, used for LIKE patterns.
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return v.number.String()
	case KindBool:
		return strconv.FormatBool(v.boolean)
	default:
		return ""
	}
}

func isIntegral(n float64) bool {
	return n == math.Trunc(n) && math.Abs(n) < 1<<53
}

func allIntegral(numbers []numeric) bool {
	for _, n := range numbers {
		if !n.integer {
			return false
		}
	}
	return true
}

// UnmarshalJSON accepts null, strings, numbers, booleans, and flat arrays
// of strings or of numbers. Anything else is rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("%w: filter value: %v", ErrInvalid, err)
	}
	parsed, err := valueFromJSON(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalJSON renders the value back into its JSON shape.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindNone {
		return []byte("null"), nil
	}
	return json.Marshal(v.Bind())
}

func valueFromJSON(raw any) (Value, error) {
	switch typed := raw.(type) {
	case nil:
		return Value{}, nil
	case string:
		return Text(typed), nil
	case bool:
		return Bool(typed), nil
	case json.Number:
		n, err := parseNumeric(typed)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindNumber, number: n}, nil
	case []any:
		return arrayFromJSON(typed)
	default:
		return Value{}, fmt.Errorf("%w: filter value must be text, number, boolean or a flat array", ErrInvalid)
	}
}

func arrayFromJSON(items []any) (Value, error) {
	if len(items) == 0 {
		return TextArray(), nil
	}
	switch items[0].(type) {
	case string:
		texts := make([]string, len(items))
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				return Value{}, fmt.Errorf("%w: array elements must share one type", ErrInvalid)
			}
			texts[i] = s
		}
		return TextArray(texts...), nil
	case json.Number:
		numbers := make([]numeric, len(items))
		for i, item := range items {
			num, ok := item.(json.Number)
			if !ok {
				return Value{}, fmt.Errorf("%w: array elements must share one type", ErrInvalid)
			}
			n, err := parseNumeric(num)
			if err != nil {
				return Value{}, err
			}
			numbers[i] = n
		}
		return Value{kind: KindNumberArray, numbers: numbers}, nil
	default:
		return Value{}, fmt.Errorf("%w: array elements must be text or numbers", ErrInvalid)
	}
}
