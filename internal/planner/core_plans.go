package planner

import (
	"fmt"
	"strings"

	"tablerepo/internal/query"
	"tablerepo/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
)

// PlanSelect builds the filtered, ordered and paged SELECT for a request.
func PlanSelect(table Table, params query.Parameters, fields []string) (SQLQuery, error) {
	columns, err := selectColumns(table, fields)
	if err != nil {
		return SQLQuery{}, err
	}
	where, err := BuildWhereClause(table, params.Filters)
	if err != nil {
		return SQLQuery{}, err
	}
	orderBy, err := OrderByClauses(table, params.OrderBys)
	if err != nil {
		return SQLQuery{}, err
	}

	builder := sq.Select(columns...).From(table.Name)
	if !where.Empty() {
		builder = builder.Where(where.Condition())
	}
	if len(orderBy) > 0 {
		builder = builder.OrderBy(orderBy...)
	}
	if paging := strings.TrimSpace(PagingClause(params)); paging != "" {
		builder = builder.Suffix(paging)
	}
	return toSQLQuery(builder.PlaceholderFormat(sq.Dollar))
}

// PlanCount builds the COUNT over the same predicates PlanSelect uses.
// Ordering and paging are ignored.
func PlanCount(table Table, params query.Parameters) (SQLQuery, error) {
	where, err := BuildWhereClause(table, params.Filters)
	if err != nil {
		return SQLQuery{}, err
	}
	builder := sq.Select("count(" + table.PrimaryKey + ")").From(table.Name)
	if !where.Empty() {
		builder = builder.Where(where.Condition())
	}
	return toSQLQuery(builder.PlaceholderFormat(sq.Dollar))
}

// PlanFindOne builds a primary key lookup. Soft-deleted rows are hidden.
func PlanFindOne(table Table, key interface{}, fields []string) (SQLQuery, error) {
	columns, err := selectColumns(table, fields)
	if err != nil {
		return SQLQuery{}, err
	}
	where := conjunction{Predicate{SQL: table.PrimaryKey + " = ?", Args: []interface{}{key}}}
	if table.SoftDelete {
		where = append(where, softDeletePredicate(table))
	}
	builder := sq.Select(columns...).
		From(table.Name).
		Where(where).
		PlaceholderFormat(sq.Dollar)
	return toSQLQuery(builder)
}

// selectColumns picks the SELECT list: requested fields narrowed to the
// selectable set, else the selectable set, else "*".
func selectColumns(table Table, fields []string) ([]string, error) {
	defaults := table.Selectable()
	if len(defaults) == 0 {
		defaults = []string{"*"}
	}

	var columns []string
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if field == "*" {
			return defaults, nil
		}
		if !sqlutil.IsIdentifier(field) {
			return nil, fmt.Errorf("%w: field %q", ErrInvalid, field)
		}
		if len(table.selectable) > 0 && !table.isSelectable(field) {
			continue
		}
		if _, dup := seen[field]; dup {
			continue
		}
		seen[field] = struct{}{}
		columns = append(columns, field)
	}
	if len(columns) == 0 {
		return defaults, nil
	}
	return columns, nil
}

func toSQLQuery(builder sq.Sqlizer) (SQLQuery, error) {
	sql, args, err := builder.ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: sql, Args: args}, nil
}
