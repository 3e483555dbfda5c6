package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanInsert_SortedFillableColumns(t *testing.T) {
	plan, err := PlanInsert(widgetTable(t, false), map[string]interface{}{
		"status": "new",
		"name":   "bolt",
		"id":     99,
	})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO public.widget (name,status) VALUES ($1,$2) RETURNING *", plan.SQL)
	assert.Equal(t, []interface{}{"bolt", "new"}, plan.Args)
	assert.Equal(t, []string{"id"}, plan.Dropped)
}

func TestPlanInsert_NoFillableColumns(t *testing.T) {
	plan, err := PlanInsert(widgetTable(t, false), map[string]interface{}{"secret": 1})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO public.widget DEFAULT VALUES RETURNING *", plan.SQL)
	assert.Empty(t, plan.Args)
	assert.Equal(t, []string{"secret"}, plan.Dropped)
}

func TestPlanInsert_NullValue(t *testing.T) {
	plan, err := PlanInsert(widgetTable(t, false), map[string]interface{}{"name": nil})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO public.widget (name) VALUES ($1) RETURNING *", plan.SQL)
	assert.Equal(t, []interface{}{nil}, plan.Args)
}

func TestPlanUpdate_KeyBoundFirst(t *testing.T) {
	plan, err := PlanUpdate(widgetTable(t, false), 7, map[string]interface{}{
		"status": "done",
		"name":   "nut",
		"id":     8,
	})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE public.widget SET name = $2, status = $3 WHERE id = $1 RETURNING *", plan.SQL)
	assert.Equal(t, []interface{}{7, "nut", "done"}, plan.Args)
	assert.Equal(t, []string{"id"}, plan.Dropped)
}

func TestPlanUpdate_NothingFillable(t *testing.T) {
	_, err := PlanUpdate(widgetTable(t, false), 7, map[string]interface{}{"id": 8})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestPlanDelete_Hard(t *testing.T) {
	planned, err := PlanDelete(widgetTable(t, false), map[string]interface{}{"tenant_id": 3, "id": 7})
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM public.widget WHERE id = $1 and tenant_id = $2", planned.SQL)
	assert.Equal(t, []interface{}{7, 3}, planned.Args)
}

func TestPlanDelete_Soft(t *testing.T) {
	planned, err := PlanDelete(widgetTable(t, true), map[string]interface{}{"id": 7})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE public.widget SET deleted = true WHERE id = $1", planned.SQL)
	assert.Equal(t, []interface{}{7}, planned.Args)
}

func TestPlanDelete_Rejects(t *testing.T) {
	_, err := PlanDelete(widgetTable(t, false), nil)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = PlanDelete(widgetTable(t, false), map[string]interface{}{"id = id or 1": 1})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestPlanAppend_Array(t *testing.T) {
	planned, err := PlanAppend(widgetTable(t, false), 7, AppendSpec{Field: "tags", Value: "red", Type: "text"})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE public.widget SET tags = array_append(tags, $2::text) WHERE id = $1 RETURNING *", planned.SQL)
	assert.Equal(t, []interface{}{7, "red"}, planned.Args)
}

func TestPlanAppend_Scalar(t *testing.T) {
	planned, err := PlanAppend(widgetTable(t, false), 7, AppendSpec{Field: "status", Value: "done", Scalar: true})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE public.widget SET status = $2 WHERE id = $1 RETURNING *", planned.SQL)
	assert.Equal(t, []interface{}{7, "done"}, planned.Args)
}

func TestPlanAppend_Rejects(t *testing.T) {
	table := widgetTable(t, false)

	tests := []struct {
		name string
		spec AppendSpec
	}{
		{"not fillable", AppendSpec{Field: "owner", Value: 1, Type: "integer"}},
		{"unsafe field", AppendSpec{Field: "tags)", Value: "x", Type: "text"}},
		{"unsafe type", AppendSpec{Field: "tags", Value: "x", Type: "text); drop table t; --"}},
		{"array without type", AppendSpec{Field: "tags", Value: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PlanAppend(table, 7, tt.spec)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}
