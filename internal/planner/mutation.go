package planner

import (
	"fmt"
	"sort"
	"strings"

	"tablerepo/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
)

// WritePlan is a planned write statement plus the input columns that were
// dropped because they are not fillable.
type WritePlan struct {
	SQLQuery
	Dropped []string
}

// splitFillable returns the fillable keys of values in sorted order and
// the rejected keys.
func splitFillable(table Table, values map[string]interface{}) (columns, dropped []string) {
	for col := range values {
		if table.IsFillable(col) {
			columns = append(columns, col)
		} else {
			dropped = append(dropped, col)
		}
	}
	sort.Strings(columns)
	sort.Strings(dropped)
	return columns, dropped
}

// PlanInsert builds an INSERT of the fillable values returning the new row.
func PlanInsert(table Table, values map[string]interface{}) (WritePlan, error) {
	columns, dropped := splitFillable(table, values)
	if len(columns) == 0 {
		return WritePlan{
			SQLQuery: SQLQuery{SQL: fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING *", table.Name)},
			Dropped:  dropped,
		}, nil
	}

	args := make([]interface{}, len(columns))
	for i, col := range columns {
		args[i] = values[col]
	}
	planned, err := toSQLQuery(sq.Insert(table.Name).
		Columns(columns...).
		Values(args...).
		Suffix("RETURNING *").
		PlaceholderFormat(sq.Dollar))
	if err != nil {
		return WritePlan{}, err
	}
	return WritePlan{SQLQuery: planned, Dropped: dropped}, nil
}

// PlanUpdate builds an UPDATE of the fillable values for one primary key.
// The key is bound first so the SET list starts at $2.
func PlanUpdate(table Table, key interface{}, values map[string]interface{}) (WritePlan, error) {
	columns, dropped := splitFillable(table, values)
	if len(columns) == 0 {
		return WritePlan{}, fmt.Errorf("%w: no fillable columns to update", ErrInvalid)
	}

	sets := make([]string, len(columns))
	args := make([]interface{}, 0, len(columns)+1)
	args = append(args, key)
	for i, col := range columns {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+2)
		args = append(args, values[col])
	}
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $1 RETURNING *",
		table.Name, strings.Join(sets, ", "), table.PrimaryKey)
	return WritePlan{SQLQuery: SQLQuery{SQL: sql, Args: args}, Dropped: dropped}, nil
}

// PlanDelete builds a delete matching every key column. Soft-delete tables
// get an UPDATE that sets the deleted flag instead.
func PlanDelete(table Table, keys map[string]interface{}) (SQLQuery, error) {
	if len(keys) == 0 {
		return SQLQuery{}, fmt.Errorf("%w: delete needs at least one key", ErrInvalid)
	}
	columns := make([]string, 0, len(keys))
	for col := range keys {
		if !sqlutil.IsIdentifier(col) {
			return SQLQuery{}, fmt.Errorf("%w: key column %q", ErrInvalid, col)
		}
		columns = append(columns, col)
	}
	sort.Strings(columns)

	where := make(conjunction, len(columns))
	for i, col := range columns {
		where[i] = Predicate{SQL: col + " = ?", Args: []interface{}{keys[col]}}
	}

	if table.SoftDelete {
		return toSQLQuery(sq.Update(table.Name).
			Set(SoftDeleteColumn, sq.Expr("true")).
			Where(where).
			PlaceholderFormat(sq.Dollar))
	}
	return toSQLQuery(sq.Delete(table.Name).
		Where(where).
		PlaceholderFormat(sq.Dollar))
}

// AppendSpec describes a single-field append.
type AppendSpec struct {
	Field string
	Value interface{}
	// Type is the element cast for array appends, e.g. "text" or "integer".
	Type string
	// Scalar replaces the field instead of appending to an array.
	Scalar bool
}

// PlanAppend builds an UPDATE that appends one element to an array column,
// or overwrites a scalar column.
func PlanAppend(table Table, key interface{}, spec AppendSpec) (SQLQuery, error) {
	if !sqlutil.IsIdentifier(spec.Field) {
		return SQLQuery{}, fmt.Errorf("%w: field %q", ErrInvalid, spec.Field)
	}
	if !table.IsFillable(spec.Field) {
		return SQLQuery{}, fmt.Errorf("%w: field %q is not fillable", ErrInvalid, spec.Field)
	}

	placeholder := "$2"
	if spec.Type != "" {
		if !sqlutil.IsTypeName(spec.Type) {
			return SQLQuery{}, fmt.Errorf("%w: type %q", ErrInvalid, spec.Type)
		}
		placeholder += "::" + strings.TrimSpace(spec.Type)
	} else if !spec.Scalar {
		return SQLQuery{}, fmt.Errorf("%w: array append on %q needs an element type", ErrInvalid, spec.Field)
	}

	expr := placeholder
	if !spec.Scalar {
		expr = fmt.Sprintf("array_append(%s, %s)", spec.Field, placeholder)
	}
	sql := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = $1 RETURNING *",
		table.Name, spec.Field, expr, table.PrimaryKey)
	return SQLQuery{SQL: sql, Args: []interface{}{key, spec.Value}}, nil
}
