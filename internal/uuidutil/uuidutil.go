// Package uuidutil normalizes UUID values crossing the driver boundary.
package uuidutil

import (
	"strings"

	"github.com/google/uuid"
)

// Canonical returns the lower-case hyphenated form of raw when it parses
// as a UUID in any of the common spellings.
func Canonical(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if len(raw) < 32 {
		return "", false
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

// FromArray renders RFC-order UUID bytes as a string.
func FromArray(raw [16]byte) string {
	return uuid.UUID(raw).String()
}
