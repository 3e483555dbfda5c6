package planner

import (
	"fmt"
	"regexp"
	"strings"

	"tablerepo/internal/query"
	"tablerepo/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
)

// Named filter conditions. Any other non-empty condition is used as a
// literal operator after validation.
const (
	CondIn       = "in"
	CondNotIn    = "notIn"
	CondLike     = "like"
	CondContains = "contains"
	CondILike    = "iLike"
	CondAnyOfAny = "anyOfAny"
	CondIsNull   = "isNull"
	CondNotNull  = "isNotNull"
)

var (
	symbolicOperator = regexp.MustCompile(`^[<>=!~*@#%^&|]{1,3}$`)
	keywordOperators = map[string]struct{}{
		"like":                 {},
		"not like":             {},
		"ilike":                {},
		"not ilike":            {},
		"similar to":           {},
		"not similar to":       {},
		"is distinct from":     {},
		"is not distinct from": {},
	}
)

// Predicate is a single boolean SQL fragment with "?" placeholders and
// the args bound to them, in order.
type Predicate struct {
	SQL  string
	Args []interface{}
}

// ToSql implements sq.Sqlizer.
func (p Predicate) ToSql() (string, []interface{}, error) {
	return p.SQL, p.Args, nil
}

// Placeholders returns how many placeholders the predicate consumes.
func (p Predicate) Placeholders() int {
	return len(p.Args)
}

// conjunction joins predicates with a lowercase "and" and no grouping.
type conjunction []sq.Sqlizer

func (c conjunction) ToSql() (string, []interface{}, error) {
	parts := make([]string, 0, len(c))
	var args []interface{}
	for _, part := range c {
		sql, partArgs, err := part.ToSql()
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		args = append(args, partArgs...)
	}
	return strings.Join(parts, " and "), args, nil
}

// ResolveFilter translates one filter into a predicate against the table.
// Columns are always qualified with the repository table: a dotted name
// keeps only its trailing segment.
func ResolveFilter(table Table, filter query.DataFilter) (Predicate, error) {
	name := filter.Name
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	if !sqlutil.IsIdentifier(name) {
		return Predicate{}, fmt.Errorf("%w: filter column %q", ErrInvalid, filter.Name)
	}
	column := table.Qualify(name)
	value := filter.Value

	switch filter.Condition {
	case "":
		if value.IsZero() {
			return Predicate{}, fmt.Errorf("%w: filter %q needs a value, use %s to match NULL", ErrInvalid, filter.Name, CondIsNull)
		}
		return Predicate{SQL: column + " = ?", Args: []interface{}{value.Bind()}}, nil
	case CondIn, CondNotIn:
		if !value.IsArray() {
			return Predicate{}, fmt.Errorf("%w: filter %q with %s needs an array value", ErrInvalid, filter.Name, filter.Condition)
		}
		sql := column + " = ANY(?)"
		if filter.Condition == CondNotIn {
			sql = "NOT " + sql
		}
		return Predicate{SQL: sql, Args: []interface{}{value.Bind()}}, nil
	case CondLike, CondContains, CondILike:
		if value.IsZero() || value.IsArray() {
			return Predicate{}, fmt.Errorf("%w: filter %q with %s needs a scalar value", ErrInvalid, filter.Name, filter.Condition)
		}
		op := "LIKE"
		if filter.Condition == CondILike {
			op = "ILIKE"
		}
		return Predicate{SQL: column + " " + op + " ?", Args: []interface{}{"%" + value.String() + "%"}}, nil
	case CondAnyOfAny:
		if !value.IsArray() || value.Len() == 0 {
			return Predicate{}, fmt.Errorf("%w: filter %q with %s needs a non-empty array value", ErrInvalid, filter.Name, filter.Condition)
		}
		elements := value.Elements()
		parts := make([]string, len(elements))
		for i := range elements {
			parts[i] = "? = ANY(" + column + ")"
		}
		return Predicate{SQL: "(" + strings.Join(parts, " OR ") + ")", Args: elements}, nil
	case CondIsNull:
		return Predicate{SQL: column + " is null"}, nil
	case CondNotNull:
		return Predicate{SQL: column + " is not null"}, nil
	case query.IncludeDeleted:
		return Predicate{}, fmt.Errorf("%w: %s does not produce a predicate", ErrInvalid, query.IncludeDeleted)
	default:
		if !isAllowedOperator(filter.Condition) {
			return Predicate{}, fmt.Errorf("%w: unsupported condition %q on %q", ErrInvalid, filter.Condition, filter.Name)
		}
		if value.IsZero() {
			return Predicate{}, fmt.Errorf("%w: filter %q needs a value", ErrInvalid, filter.Name)
		}
		return Predicate{SQL: column + " " + filter.Condition + " ?", Args: []interface{}{value.Bind()}}, nil
	}
}

func isAllowedOperator(condition string) bool {
	if symbolicOperator.MatchString(condition) {
		return true
	}
	_, ok := keywordOperators[strings.ToLower(condition)]
	return ok
}
