package planner

import (
	"fmt"
	"strings"

	"tablerepo/internal/query"
	"tablerepo/internal/sqlutil"
)

// DefaultSchema qualifies "relation.column" sort fields.
const DefaultSchema = "public"

// OrderByClauses renders sort fields as ORDER BY terms.
//
//	"a.b"     -> public.a.b
//	"alias:x" -> x
//	"x"       -> <table>.x
//
// An alias with nothing after the colon is skipped.
func OrderByClauses(table Table, fields []query.SortField) ([]string, error) {
	clauses := make([]string, 0, len(fields))
	for _, field := range fields {
		dir := field.Direction.OrDefault()
		if dir != query.Asc && dir != query.Desc {
			return nil, fmt.Errorf("%w: direction %q", ErrInvalid, field.Direction)
		}

		var target string
		switch {
		case strings.Contains(field.Field, "."):
			relation, column, _ := strings.Cut(field.Field, ".")
			if !sqlutil.IsIdentifier(relation) || !sqlutil.IsIdentifier(column) {
				return nil, fmt.Errorf("%w: order field %q", ErrInvalid, field.Field)
			}
			target = DefaultSchema + "." + relation + "." + column
		case strings.Contains(field.Field, ":"):
			_, alias, _ := strings.Cut(field.Field, ":")
			if alias == "" {
				continue
			}
			if !sqlutil.IsIdentifier(alias) {
				return nil, fmt.Errorf("%w: order alias %q", ErrInvalid, alias)
			}
			target = alias
		default:
			if !sqlutil.IsIdentifier(field.Field) {
				return nil, fmt.Errorf("%w: order field %q", ErrInvalid, field.Field)
			}
			target = table.Qualify(field.Field)
		}
		clauses = append(clauses, target+" "+string(dir))
	}
	return clauses, nil
}

// PagingClause renders OFFSET and LIMIT for the request. A zero offset
// or page size leaves that part out.
func PagingClause(params query.Parameters) string {
	var b strings.Builder
	if offset := params.OffsetValue(); offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d ", offset)
	}
	if size := params.PageSizeValue(); size > 0 {
		fmt.Fprintf(&b, " LIMIT %d", size)
	}
	return b.String()
}
