package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// PGStore talks to the tables directly over a pgx pool. Writes use RETURNING *
// so callers always get the stored representation back.
type PGStore struct {
	db queryable
}

func NewPGStore(pool *pgxpool.Pool) *PGStore { return &PGStore{db: pool} }

func (s *PGStore) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	sql := `SELECT * FROM ` + table
	var args []interface{}
	var where []string
	for _, col := range eqKeys(q.Eq) {
		if err := checkIdent(col); err != nil {
			return nil, err
		}
		args = append(args, q.Eq[col])
		where = append(where, fmt.Sprintf(`%s = $%d`, col, len(args)))
	}
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, ` AND `)
	}
	if q.Order != "" {
		if err := checkIdent(q.Order); err != nil {
			return nil, err
		}
		sql += ` ORDER BY ` + q.Order
		if q.Desc {
			sql += ` DESC`
		}
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	return collectRows(rows)
}

func (s *PGStore) Insert(ctx context.Context, table string, row Row) (Row, error) {
	cols := sortedKeys(row)
	if err := checkIdent(append([]string{table}, cols...)...); err != nil {
		return nil, err
	}
	placeholders := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, c := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = row[c]
	}
	sql := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING *`,
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	out, err := collectRows(rows)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (s *PGStore) Update(ctx context.Context, table, id string, row Row) (Row, error) {
	cols := make([]string, 0, len(row))
	for _, c := range sortedKeys(row) {
		if c != "id" {
			cols = append(cols, c)
		}
	}
	if err := checkIdent(append([]string{table}, cols...)...); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("update %s: no columns", table)
	}
	sets := make([]string, len(cols))
	args := []interface{}{id}
	for i, c := range cols {
		args = append(args, row[c])
		sets[i] = fmt.Sprintf("%s = $%d", c, i+2)
	}
	sql := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $1 RETURNING *`, table, strings.Join(sets, ", "))

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", table, err)
	}
	out, err := collectRows(rows)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", table, err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out[0], nil
}

func (s *PGStore) Delete(ctx context.Context, table, id string) error {
	if err := checkIdent(table); err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// collectRows turns a result set into column-keyed rows.
func collectRows(rows pgx.Rows) ([]Row, error) {
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	var out []Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		r := make(Row, len(fieldDescs))
		for i, fd := range fieldDescs {
			r[fd.Name] = values[i]
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
