// Package store is the remote table protocol the registry talks to. A Store
// exposes CRUD over named tables with the small operator set the backend
// client supports: select-all, order by one column, and column equality.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
)

// ErrNotFound is returned by Update and Delete when no row matched the id.
var ErrNotFound = errors.New("row not found")

// Row is one stored record. Values keep whatever shape the backend returned:
// strings, float64 or int64 numbers, bools, time.Time, nested maps and lists.
type Row map[string]any

// Query narrows a Select. Eq is ANDed column equality.
type Query struct {
	Eq    map[string]any
	Order string
	Desc  bool
}

// Store is the backend client. Insert and Update return the stored row when the
// backend sends a representation back, and a nil Row when it does not.
type Store interface {
	Select(ctx context.Context, table string, q Query) ([]Row, error)
	Insert(ctx context.Context, table string, row Row) (Row, error)
	Update(ctx context.Context, table, id string, row Row) (Row, error)
	Delete(ctx context.Context, table, id string) error
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func checkIdent(names ...string) error {
	for _, n := range names {
		if !identPattern.MatchString(n) {
			return fmt.Errorf("invalid identifier %q", n)
		}
	}
	return nil
}

// sortedKeys returns the row's columns in a stable order so generated SQL and
// argument lists line up.
func sortedKeys(r Row) []string {
	cols := make([]string, 0, len(r))
	for k := range r {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func eqKeys(eq map[string]any) []string {
	cols := make([]string, 0, len(eq))
	for k := range eq {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// Clone deep-copies a row, including nested maps and lists.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case Row:
		return t.Clone()
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = cloneValue(vv)
		}
		return s
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
