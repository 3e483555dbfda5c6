package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueUnmarshal_Scalars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		kind     ValueKind
		bound    any
		rendered string
	}{
		{name: "text", input: `"active"`, kind: KindText, bound: "active", rendered: "active"},
		{name: "integer", input: `42`, kind: KindNumber, bound: int64(42), rendered: "42"},
		{name: "float", input: `2.5`, kind: KindNumber, bound: 2.5, rendered: "2.5"},
		{name: "exponent integer", input: `1e3`, kind: KindNumber, bound: int64(1000), rendered: "1000"},
		{name: "bigint", input: `9007199254740993`, kind: KindNumber, bound: int64(9007199254740993), rendered: "9007199254740993"},
		{name: "bool", input: `true`, kind: KindBool, bound: true, rendered: "true"},
		{name: "null", input: `null`, kind: KindNone, bound: nil, rendered: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v Value
			require.NoError(t, json.Unmarshal([]byte(tt.input), &v))
			assert.Equal(t, tt.kind, v.Kind())
			assert.Equal(t, tt.bound, v.Bind())
			assert.Equal(t, tt.rendered, v.String())
			assert.False(t, v.IsArray())
		})
	}
}

func TestValueUnmarshal_Arrays(t *testing.T) {
	var ints Value
	require.NoError(t, json.Unmarshal([]byte(`[1, 2, 3]`), &ints))
	assert.Equal(t, KindNumberArray, ints.Kind())
	assert.Equal(t, []int64{1, 2, 3}, ints.Bind())
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, ints.Elements())
	assert.Equal(t, 3, ints.Len())

	var bigints Value
	require.NoError(t, json.Unmarshal([]byte(`[9007199254740993, 1]`), &bigints))
	assert.Equal(t, []int64{9007199254740993, 1}, bigints.Bind())
	assert.Equal(t, []any{int64(9007199254740993), int64(1)}, bigints.Elements())

	var floats Value
	require.NoError(t, json.Unmarshal([]byte(`[1, 2.5]`), &floats))
	assert.Equal(t, []float64{1, 2.5}, floats.Bind())

	var texts Value
	require.NoError(t, json.Unmarshal([]byte(`["a", "b"]`), &texts))
	assert.Equal(t, KindTextArray, texts.Kind())
	assert.Equal(t, []string{"a", "b"}, texts.Bind())
	assert.True(t, texts.IsArray())
}

func TestValueUnmarshal_Rejects(t *testing.T) {
	inputs := []string{
		`{"a": 1}`,
		`[1, "a"]`,
		`["a", 1]`,
		`[[1], [2]]`,
		`[true]`,
		`[{"a": 1}]`,
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			var v Value
			err := json.Unmarshal([]byte(input), &v)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestValueTruthy(t *testing.T) {
	assert.True(t, Bool(true).Truthy())
	assert.True(t, Text("true").Truthy())
	assert.False(t, Bool(false).Truthy())
	assert.False(t, Text("yes").Truthy())
	assert.False(t, Int(1).Truthy())
	assert.False(t, Value{}.Truthy())
}

func TestValueMarshalRoundTrip(t *testing.T) {
	out, err := json.Marshal(IntArray(1, 2))
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2]`, string(out))

	out, err = json.Marshal(Value{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}
