package repository

import (
	"context"
	"fmt"
	"strings"

	"tablerepo/internal/dbexec"
)

// ReadOnly exposes only the read operations. It has no write methods, and
// its Query refuses data-modifying statements before reaching the database.
type ReadOnly struct {
	base
}

// NewReadOnly creates a read-only repository for desc.
func NewReadOnly(desc TableDescriptor, exec dbexec.QueryExecutor, opts ...Option) (*ReadOnly, error) {
	b, err := newBase(desc, exec, opts)
	if err != nil {
		return nil, err
	}
	b.notifier = nil
	return &ReadOnly{base: b}, nil
}

// Query runs a read statement and returns its rows.
func (r *ReadOnly) Query(ctx context.Context, sql string, args ...any) ([]Record, error) {
	if err := checkReadOnly(sql); err != nil {
		return nil, err
	}
	return r.rawQuery(ctx, sql, args)
}

var readVerbs = map[string]struct{}{
	"SELECT": {},
	"WITH":   {},
	"VALUES": {},
	"TABLE":  {},
	"SHOW":   {},
}

// modifyingWords may not appear bare in the body of a read statement. INTO
// catches SELECT ... INTO, UPDATE also catches FOR UPDATE row locks.
var modifyingWords = map[string]struct{}{
	"INSERT": {},
	"UPDATE": {},
	"DELETE": {},
	"MERGE":  {},
	"INTO":   {},
}

var explainOptions = map[string]struct{}{
	"VERBOSE": {}, "COSTS": {}, "SETTINGS": {}, "GENERIC_PLAN": {}, "BUFFERS": {},
	"SERIALIZE": {}, "WAL": {}, "TIMING": {}, "SUMMARY": {}, "MEMORY": {},
	"FORMAT": {}, "TEXT": {}, "XML": {}, "JSON": {}, "YAML": {}, "BINARY": {},
	"NONE": {}, "TRUE": {}, "FALSE": {}, "ON": {}, "OFF": {},
}

// checkReadOnly admits a single statement led by SELECT, WITH, VALUES,
// TABLE, SHOW or a plain EXPLAIN of one of those. EXPLAIN ANALYZE runs the
// statement and is refused.
func checkReadOnly(sql string) error {
	words, multiple := statementWords(sql)
	if len(words) == 0 {
		return invalid(errEmptyStatement)
	}
	if multiple {
		return fmt.Errorf("%w: multiple statements on a read-only repository", ErrPermission)
	}
	if words[0] == "EXPLAIN" {
		rest := words[1:]
		for len(rest) > 0 {
			if rest[0] == "ANALYZE" || rest[0] == "ANALYSE" {
				return fmt.Errorf("%w: EXPLAIN ANALYZE on a read-only repository", ErrPermission)
			}
			if _, opt := explainOptions[rest[0]]; !opt {
				break
			}
			rest = rest[1:]
		}
		if len(rest) == 0 {
			return fmt.Errorf("%w: EXPLAIN without a statement", ErrPermission)
		}
		words = rest
	}
	if _, read := readVerbs[words[0]]; !read {
		return fmt.Errorf("%w: %s on a read-only repository", ErrPermission, words[0])
	}
	for _, w := range words[1:] {
		if _, modifying := modifyingWords[w]; modifying {
			return fmt.Errorf("%w: %s inside %s on a read-only repository", ErrPermission, w, words[0])
		}
	}
	return nil
}

// statementWords returns the upper-cased bare words of sql, skipping string
// literals, quoted identifiers, dollar-quoted bodies and comments. multiple
// reports content after a top-level semicolon.
func statementWords(sql string) (words []string, multiple bool) {
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			words = append(words, strings.ToUpper(word.String()))
			word.Reset()
		}
	}
	terminated := false

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			flush()
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			continue
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			flush()
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				return words, multiple
			}
			i += end + 3
			continue
		case c == '\'' || c == '"':
			flush()
			i = skipQuoted(sql, i, c)
		case c == '$':
			if tag, ok := dollarTag(sql, i); ok {
				flush()
				end := strings.Index(sql[i+len(tag):], tag)
				if end < 0 {
					return words, multiple
				}
				i += len(tag) + end + len(tag) - 1
			} else if word.Len() > 0 {
				word.WriteByte(c)
			}
		case c == ';':
			flush()
			terminated = true
			continue
		case isWordByte(c):
			if word.Len() == 0 && c >= '0' && c <= '9' {
				continue
			}
			word.WriteByte(c)
		default:
			flush()
		}
		if terminated && !isSpace(c) {
			multiple = true
		}
	}
	flush()
	return words, multiple
}

func skipQuoted(sql string, start int, quote byte) int {
	for i := start + 1; i < len(sql); i++ {
		if sql[i] == quote {
			if i+1 < len(sql) && sql[i+1] == quote {
				i++
				continue
			}
			return i
		}
	}
	return len(sql)
}

// dollarTag returns the "$tag$" opening at i, if any.
func dollarTag(sql string, i int) (string, bool) {
	for j := i + 1; j < len(sql); j++ {
		switch c := sql[j]; {
		case c == '$':
			return sql[i : j+1], true
		case c == '_' || (c|0x20 >= 'a' && c|0x20 <= 'z') || (j > i+1 && c >= '0' && c <= '9'):
		default:
			return "", false
		}
	}
	return "", false
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
