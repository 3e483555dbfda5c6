package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ParseValues builds Parameters from gateway-style query string values:
// offset, page_size, and the comma-joined JSON objects in string_filters
// and string_order_bys.
func ParseValues(values url.Values) (Parameters, error) {
	var params Parameters

	if raw := strings.TrimSpace(values.Get("offset")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Parameters{}, fmt.Errorf("%w: offset must be an integer", ErrInvalid)
		}
		params.Offset = &n
	}
	if raw := strings.TrimSpace(values.Get("page_size")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Parameters{}, fmt.Errorf("%w: page_size must be an integer", ErrInvalid)
		}
		params.PageSize = &n
	}

	filters, err := ParseStringFilters(values.Get("string_filters"))
	if err != nil {
		return Parameters{}, err
	}
	params.Filters = filters

	orderBys, err := ParseStringOrderBys(values.Get("string_order_bys"))
	if err != nil {
		return Parameters{}, err
	}
	params.OrderBys = orderBys

	if err := params.Validate(); err != nil {
		return Parameters{}, err
	}
	return params, nil
}

// ParseStringFilters decodes a comma-joined list of JSON filter objects.
func ParseStringFilters(raw string) ([]DataFilter, error) {
	parts, err := splitObjects(raw)
	if err != nil {
		return nil, err
	}
	filters := make([]DataFilter, 0, len(parts))
	for _, part := range parts {
		var f DataFilter
		if err := decodeObject(part, &f); err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}

// ParseStringOrderBys decodes a comma-joined list of JSON sort objects.
func ParseStringOrderBys(raw string) ([]SortField, error) {
	parts, err := splitObjects(raw)
	if err != nil {
		return nil, err
	}
	orderBys := make([]SortField, 0, len(parts))
	for _, part := range parts {
		var o SortField
		if err := decodeObject(part, &o); err != nil {
			return nil, err
		}
		orderBys = append(orderBys, o)
	}
	return orderBys, nil
}

func decodeObject(part string, dst any) error {
	if err := json.Unmarshal([]byte(part), dst); err != nil {
		if errors.Is(err, ErrInvalid) {
			return err
		}
		return fmt.Errorf("%w: %q is not a JSON object: %v", ErrInvalid, part, err)
	}
	return nil
}

// splitObjects splits on commas that sit outside any JSON object, array,
// or string, so array values inside a filter survive the split.
func splitObjects(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var parts []string
	depth := 0
	inString := false
	escaped := false
	start := 0
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("%w: unbalanced brackets in %q", ErrInvalid, raw)
			}
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(raw[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 || inString {
		return nil, fmt.Errorf("%w: unterminated JSON in %q", ErrInvalid, raw)
	}
	parts = append(parts, strings.TrimSpace(raw[start:]))

	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}
