// Package sqlutil provides SQL utility functions.
package sqlutil

import (
	"regexp"
	"strings"
)

var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)
	typeNamePattern   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_ ]*(\[\])?$`)
)

// QuoteIdentifier quotes a PostgreSQL identifier (role, schema, column)
// with double quotes and escapes any double quotes within the identifier.
func QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, `"`, `""`)
	return `"` + escaped + `"`
}

// IsIdentifier reports whether name is a plain, unquoted SQL identifier
// that can be written into statement text as-is.
func IsIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// IsQualifiedName reports whether name is one or more plain identifiers
// joined by dots, e.g. "widget" or "public.widget".
func IsQualifiedName(name string) bool {
	if name == "" {
		return false
	}
	for _, part := range strings.Split(name, ".") {
		if !IsIdentifier(part) {
			return false
		}
	}
	return true
}

// IsTypeName reports whether name is usable as a cast target such as
// "text", "integer[]" or "double precision".
func IsTypeName(name string) bool {
	name = strings.TrimSpace(name)
	if !typeNamePattern.MatchString(name) {
		return false
	}
	return !strings.Contains(name, "  ")
}
