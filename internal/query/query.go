// Package query defines the structured query description consumed by the
// repository layer: filters, sort fields, and paging.
package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid marks malformed query parameters.
var ErrInvalid = errors.New("invalid query parameters")

// IncludeDeleted is the reserved condition that toggles soft-delete inclusion
// instead of producing a predicate.
const IncludeDeleted = "includeDeleted"

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// UnmarshalJSON normalizes the direction to upper case and rejects unknown values.
func (d *Direction) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: direction must be a string", ErrInvalid)
	}
	if raw == nil {
		*d = ""
		return nil
	}
	parsed, err := ParseDirection(*raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDirection parses ASC/DESC case-insensitively. Empty means ASC.
func ParseDirection(raw string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", "ASC":
		return Asc, nil
	case "DESC":
		return Desc, nil
	default:
		return "", fmt.Errorf("%w: direction must be ASC or DESC, got %q", ErrInvalid, raw)
	}
}

// OrDefault returns ASC for an unset direction.
func (d Direction) OrDefault() Direction {
	if d == "" {
		return Asc
	}
	return d
}

// DataFilter is one column comparison.
type DataFilter struct {
	Name      string `json:"name"`
	Condition string `json:"condition,omitempty"`
	Value     Value  `json:"value"`
}

// SortField is one ORDER BY entry. Field may be "column", "table.column",
// or "alias:column".
type SortField struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction,omitempty"`
}

// Parameters is the per-request query description. It is read-only once built.
type Parameters struct {
	Offset   *int         `json:"offset,omitempty"`
	PageSize *int         `json:"page_size,omitempty"`
	Filters  []DataFilter `json:"filters,omitempty"`
	OrderBys []SortField  `json:"order_bys,omitempty"`
}

// OffsetValue returns the offset, or 0 when unset.
func (p Parameters) OffsetValue() int {
	if p.Offset == nil {
		return 0
	}
	return *p.Offset
}

// PageSizeValue returns the page size, or 0 when unset.
func (p Parameters) PageSizeValue() int {
	if p.PageSize == nil {
		return 0
	}
	return *p.PageSize
}

// Validate checks paging bounds and that every filter and sort field names a column.
func (p Parameters) Validate() error {
	if p.OffsetValue() < 0 {
		return fmt.Errorf("%w: offset must be non-negative", ErrInvalid)
	}
	if p.PageSizeValue() < 0 {
		return fmt.Errorf("%w: page_size must be positive", ErrInvalid)
	}
	for i, f := range p.Filters {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("%w: filters[%d] is missing a name", ErrInvalid, i)
		}
	}
	for i, o := range p.OrderBys {
		if strings.TrimSpace(o.Field) == "" {
			return fmt.Errorf("%w: order_bys[%d] is missing a field", ErrInvalid, i)
		}
	}
	return nil
}

// Parse decodes and validates a JSON query description.
func Parse(data []byte) (Parameters, error) {
	var params Parameters
	if len(strings.TrimSpace(string(data))) == 0 {
		return params, nil
	}
	if err := json.Unmarshal(data, &params); err != nil {
		if errors.Is(err, ErrInvalid) {
			return Parameters{}, err
		}
		return Parameters{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := params.Validate(); err != nil {
		return Parameters{}, err
	}
	return params, nil
}
