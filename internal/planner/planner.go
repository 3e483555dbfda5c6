// Package planner converts table descriptors and query parameters into
// parameterized PostgreSQL statements. It resolves filters into predicates,
// orders and pages result sets, and plans the write statements used by the
// repository.
package planner

import (
	"errors"
	"fmt"
	"sort"

	"tablerepo/internal/sqlutil"
)

var (
	// ErrInvalid indicates caller input that cannot be turned into SQL.
	ErrInvalid = errors.New("invalid input")
	// ErrNoTable indicates a table descriptor without a table name.
	ErrNoTable = errors.New("no table name")
)

// SQLQuery represents a planned SQL statement with bound args.
type SQLQuery struct {
	SQL  string
	Args []interface{}
}

// SoftDeleteColumn is the boolean column used to hide rows instead of removing them.
const SoftDeleteColumn = "deleted"

// DefaultPrimaryKey is used when a descriptor names no primary key.
const DefaultPrimaryKey = "id"

// Table is the validated form of a table descriptor.
type Table struct {
	Name       string
	PrimaryKey string
	SoftDelete bool

	fillable   map[string]struct{}
	selectable []string
	selectSet  map[string]struct{}
}

// NewTable validates the descriptor fields and freezes the column sets.
// The primary key defaults to DefaultPrimaryKey.
func NewTable(name, primaryKey string, softDelete bool, fillable, selectable []string) (Table, error) {
	if name == "" {
		return Table{}, ErrNoTable
	}
	if !sqlutil.IsQualifiedName(name) {
		return Table{}, fmt.Errorf("%w: table name %q", ErrInvalid, name)
	}
	if primaryKey == "" {
		primaryKey = DefaultPrimaryKey
	}
	if !sqlutil.IsIdentifier(primaryKey) {
		return Table{}, fmt.Errorf("%w: primary key %q", ErrInvalid, primaryKey)
	}

	table := Table{
		Name:       name,
		PrimaryKey: primaryKey,
		SoftDelete: softDelete,
		fillable:   make(map[string]struct{}, len(fillable)),
		selectSet:  make(map[string]struct{}, len(selectable)),
	}
	for _, col := range fillable {
		if !sqlutil.IsIdentifier(col) {
			return Table{}, fmt.Errorf("%w: fillable column %q", ErrInvalid, col)
		}
		table.fillable[col] = struct{}{}
	}
	for _, col := range selectable {
		if !sqlutil.IsIdentifier(col) {
			return Table{}, fmt.Errorf("%w: selectable column %q", ErrInvalid, col)
		}
		if _, dup := table.selectSet[col]; dup {
			continue
		}
		table.selectSet[col] = struct{}{}
		table.selectable = append(table.selectable, col)
	}
	return table, nil
}

// IsFillable reports whether writes may set the column.
func (t Table) IsFillable(column string) bool {
	_, ok := t.fillable[column]
	return ok
}

// Fillable returns the writable columns in sorted order.
func (t Table) Fillable() []string {
	cols := make([]string, 0, len(t.fillable))
	for col := range t.fillable {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// Selectable returns the default SELECT list in declaration order.
func (t Table) Selectable() []string {
	return append([]string(nil), t.selectable...)
}

func (t Table) isSelectable(column string) bool {
	_, ok := t.selectSet[column]
	return ok
}

// Qualify prefixes a column with the table name.
func (t Table) Qualify(column string) string {
	return t.Name + "." + column
}
