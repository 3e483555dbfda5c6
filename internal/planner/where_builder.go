package planner

import (
	"tablerepo/internal/query"

	sq "github.com/Masterminds/squirrel"
)

// WhereClause represents the resolved filters of a request.
type WhereClause struct {
	Predicates     []Predicate
	IncludeDeleted bool
}

// BuildWhereClause resolves every filter in order. The includeDeleted
// marker only sets a flag, and only for true or "true"; once set it stays set. For soft-delete tables the exclusion predicate
// is appended last unless the flag is set.
func BuildWhereClause(table Table, filters []query.DataFilter) (*WhereClause, error) {
	where := &WhereClause{}
	for _, filter := range filters {
		if filter.Condition == query.IncludeDeleted {
			if filter.Value.Truthy() {
				where.IncludeDeleted = true
			}
			continue
		}
		predicate, err := ResolveFilter(table, filter)
		if err != nil {
			return nil, err
		}
		where.Predicates = append(where.Predicates, predicate)
	}

	if table.SoftDelete && !where.IncludeDeleted {
		where.Predicates = append(where.Predicates, softDeletePredicate(table))
	}
	return where, nil
}

func softDeletePredicate(table Table) Predicate {
	return Predicate{
		SQL:  table.Qualify(SoftDeleteColumn) + " = ?",
		Args: []interface{}{"false"},
	}
}

// Empty reports whether the clause has no predicates.
func (w *WhereClause) Empty() bool {
	return w == nil || len(w.Predicates) == 0
}

// Condition returns the predicates joined with "and".
func (w *WhereClause) Condition() sq.Sqlizer {
	parts := make(conjunction, len(w.Predicates))
	for i, p := range w.Predicates {
		parts[i] = p
	}
	return parts
}

// Placeholders returns the number of placeholders the clause consumes.
func (w *WhereClause) Placeholders() int {
	if w == nil {
		return 0
	}
	n := 0
	for _, p := range w.Predicates {
		n += p.Placeholders()
	}
	return n
}
