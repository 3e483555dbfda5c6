package repository

import (
	"errors"
	"fmt"

	"tablerepo/internal/planner"
)

// TableDescriptor is the data-only description of a table. It is copied
// on construction; later changes to the slices have no effect.
type TableDescriptor struct {
	Table      string   `mapstructure:"table" json:"table"`
	Fillable   []string `mapstructure:"fillable" json:"fillable,omitempty"`
	Selectable []string `mapstructure:"selectable" json:"selectable,omitempty"`
	PrimaryKey string   `mapstructure:"primary_key" json:"primary_key,omitempty"`
	SoftDelete bool     `mapstructure:"soft_delete" json:"soft_delete,omitempty"`
	ReadOnly   bool     `mapstructure:"read_only" json:"read_only,omitempty"`
}

func (d TableDescriptor) plannerTable() (planner.Table, error) {
	table, err := planner.NewTable(d.Table, d.PrimaryKey, d.SoftDelete, d.Fillable, d.Selectable)
	if errors.Is(err, planner.ErrNoTable) {
		return planner.Table{}, fmt.Errorf("%w: no table configured", ErrConfiguration)
	}
	if err != nil {
		return planner.Table{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return table, nil
}
