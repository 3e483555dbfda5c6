package planner

import (
	"testing"

	"tablerepo/internal/query"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFilter(t *testing.T) {
	table := widgetTable(t, false)

	tests := []struct {
		name     string
		filter   query.DataFilter
		wantSQL  string
		wantArgs []interface{}
	}{
		{
			name:     "equality",
			filter:   query.DataFilter{Name: "status", Value: query.Text("active")},
			wantSQL:  "public.widget.status = ?",
			wantArgs: []interface{}{"active"},
		},
		{
			name:     "dotted name keeps trailing segment",
			filter:   query.DataFilter{Name: "other.status", Value: query.Text("x")},
			wantSQL:  "public.widget.status = ?",
			wantArgs: []interface{}{"x"},
		},
		{
			name:     "boolean equality",
			filter:   query.DataFilter{Name: "enabled", Value: query.Bool(false)},
			wantSQL:  "public.widget.enabled = ?",
			wantArgs: []interface{}{false},
		},
		{
			name:     "in",
			filter:   query.DataFilter{Name: "id", Condition: CondIn, Value: query.IntArray(1, 2)},
			wantSQL:  "public.widget.id = ANY(?)",
			wantArgs: []interface{}{[]int64{1, 2}},
		},
		{
			name:     "not in",
			filter:   query.DataFilter{Name: "code", Condition: CondNotIn, Value: query.TextArray("a", "b")},
			wantSQL:  "NOT public.widget.code = ANY(?)",
			wantArgs: []interface{}{[]string{"a", "b"}},
		},
		{
			name:     "like",
			filter:   query.DataFilter{Name: "name", Condition: CondLike, Value: query.Text("bo")},
			wantSQL:  "public.widget.name LIKE ?",
			wantArgs: []interface{}{"%bo%"},
		},
		{
			name:     "contains",
			filter:   query.DataFilter{Name: "name", Condition: CondContains, Value: query.Int(7)},
			wantSQL:  "public.widget.name LIKE ?",
			wantArgs: []interface{}{"%7%"},
		},
		{
			name:     "ilike",
			filter:   query.DataFilter{Name: "name", Condition: CondILike, Value: query.Text("Bo")},
			wantSQL:  "public.widget.name ILIKE ?",
			wantArgs: []interface{}{"%Bo%"},
		},
		{
			name:     "any of any",
			filter:   query.DataFilter{Name: "tags", Condition: CondAnyOfAny, Value: query.TextArray("x", "y", "z")},
			wantSQL:  "(? = ANY(public.widget.tags) OR ? = ANY(public.widget.tags) OR ? = ANY(public.widget.tags))",
			wantArgs: []interface{}{"x", "y", "z"},
		},
		{
			name:    "is null",
			filter:  query.DataFilter{Name: "parent_id", Condition: CondIsNull},
			wantSQL: "public.widget.parent_id is null",
		},
		{
			name:    "is not null ignores value",
			filter:  query.DataFilter{Name: "parent_id", Condition: CondNotNull, Value: query.Int(1)},
			wantSQL: "public.widget.parent_id is not null",
		},
		{
			name:     "symbolic operator",
			filter:   query.DataFilter{Name: "weight", Condition: "<=", Value: query.Number(2.5)},
			wantSQL:  "public.widget.weight <= ?",
			wantArgs: []interface{}{2.5},
		},
		{
			name:     "keyword operator",
			filter:   query.DataFilter{Name: "name", Condition: "not ilike", Value: query.Text("x%")},
			wantSQL:  "public.widget.name not ilike ?",
			wantArgs: []interface{}{"x%"},
		},
		{
			name:     "array containment",
			filter:   query.DataFilter{Name: "tags", Condition: "@>", Value: query.TextArray("x")},
			wantSQL:  "public.widget.tags @> ?",
			wantArgs: []interface{}{[]string{"x"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			predicate, err := ResolveFilter(table, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, predicate.SQL)
			assert.Equal(t, len(tt.wantArgs), predicate.Placeholders())
			if tt.wantArgs != nil {
				assert.Equal(t, tt.wantArgs, predicate.Args)
			}
		})
	}
}

func TestResolveFilter_Rejects(t *testing.T) {
	table := widgetTable(t, false)

	tests := []struct {
		name   string
		filter query.DataFilter
	}{
		{"unsafe column", query.DataFilter{Name: "a = 1 or 1", Value: query.Int(1)}},
		{"unsafe trailing segment", query.DataFilter{Name: "other.id;", Value: query.Int(1)}},
		{"missing value", query.DataFilter{Name: "status"}},
		{"in with scalar", query.DataFilter{Name: "id", Condition: CondIn, Value: query.Int(1)}},
		{"not in with scalar", query.DataFilter{Name: "id", Condition: CondNotIn, Value: query.Text("a")}},
		{"like with array", query.DataFilter{Name: "name", Condition: CondLike, Value: query.TextArray("a")}},
		{"like without value", query.DataFilter{Name: "name", Condition: CondLike}},
		{"empty any of any", query.DataFilter{Name: "tags", Condition: CondAnyOfAny, Value: query.TextArray()}},
		{"any of any with scalar", query.DataFilter{Name: "tags", Condition: CondAnyOfAny, Value: query.Text("x")}},
		{"injected operator", query.DataFilter{Name: "id", Condition: "= 1 or 1 =", Value: query.Int(1)}},
		{"comment operator", query.DataFilter{Name: "id", Condition: "--", Value: query.Int(1)}},
		{"placeholder operator", query.DataFilter{Name: "tags", Condition: "?|", Value: query.TextArray("a")}},
		{"unknown keyword", query.DataFilter{Name: "id", Condition: "between", Value: query.Int(1)}},
		{"operator without value", query.DataFilter{Name: "id", Condition: ">"}},
		{"reserved condition", query.DataFilter{Name: "deleted", Condition: query.IncludeDeleted}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveFilter(table, tt.filter)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestBuildWhereClause_PlaceholdersAccumulate(t *testing.T) {
	where, err := BuildWhereClause(widgetTable(t, true), []query.DataFilter{
		{Name: "a", Condition: CondIsNull},
		{Name: "b", Condition: CondAnyOfAny, Value: query.IntArray(1, 2)},
		{Name: "c", Value: query.Text("x")},
	})
	require.NoError(t, err)
	assert.False(t, where.IncludeDeleted)
	assert.Len(t, where.Predicates, 4)
	assert.Equal(t, 4, where.Placeholders())

	sql, args, err := where.Condition().ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"public.widget.a is null and (? = ANY(public.widget.b) OR ? = ANY(public.widget.b)) and public.widget.c = ? and public.widget.deleted = ?",
		sql)
	assert.Equal(t, []interface{}{int64(1), int64(2), "x", "false"}, args)
}

func TestBuildWhereClause_IncludeDeletedIsNotAPredicate(t *testing.T) {
	where, err := BuildWhereClause(widgetTable(t, false), []query.DataFilter{
		{Name: "deleted", Condition: query.IncludeDeleted, Value: query.Bool(true)},
	})
	require.NoError(t, err)
	assert.True(t, where.IncludeDeleted)
	assert.True(t, where.Empty())
}

func TestBuildWhereClause_IncludeDeletedNeedsTrue(t *testing.T) {
	tests := []struct {
		name    string
		values  []query.Value
		include bool
	}{
		{name: "absent value", values: []query.Value{{}}, include: false},
		{name: "false", values: []query.Value{query.Bool(false)}, include: false},
		{name: "text false", values: []query.Value{query.Text("false")}, include: false},
		{name: "number", values: []query.Value{query.Int(1)}, include: false},
		{name: "text true", values: []query.Value{query.Text("true")}, include: true},
		{name: "true then false", values: []query.Value{query.Bool(true), query.Bool(false)}, include: true},
		{name: "absent then true", values: []query.Value{{}, query.Bool(true)}, include: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filters := make([]query.DataFilter, len(tt.values))
			for i, v := range tt.values {
				filters[i] = query.DataFilter{Name: "x", Condition: query.IncludeDeleted, Value: v}
			}
			where, err := BuildWhereClause(widgetTable(t, true), filters)
			require.NoError(t, err)
			assert.Equal(t, tt.include, where.IncludeDeleted)
			if tt.include {
				assert.True(t, where.Empty())
				return
			}
			sql, args, err := where.Condition().ToSql()
			require.NoError(t, err)
			assert.Equal(t, "public.widget.deleted = ?", sql)
			assert.Equal(t, []interface{}{"false"}, args)
		})
	}
}
