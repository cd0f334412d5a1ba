package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps tables in process. It backs STORE_BACKEND=memory and the
// tests; it stamps created_at like the database default does.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]map[string]memRow
	seq    int64
	now    func() time.Time
}

// createdAtLayout is fixed width so string order matches time order.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

type memRow struct {
	seq int64
	row Row
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]map[string]memRow), now: time.Now}
}

func (s *MemoryStore) Select(_ context.Context, table string, q Query) ([]Row, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []memRow
	for _, mr := range s.tables[table] {
		if matches(mr.row, q.Eq) {
			items = append(items, mr)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if q.Order != "" {
			a, b := fmt.Sprint(items[i].row[q.Order]), fmt.Sprint(items[j].row[q.Order])
			if a != b {
				if q.Desc {
					return a > b
				}
				return a < b
			}
		}
		if q.Desc {
			return items[i].seq > items[j].seq
		}
		return items[i].seq < items[j].seq
	})

	out := make([]Row, len(items))
	for i, mr := range items {
		out[i] = mr.row.Clone()
	}
	return out, nil
}

func (s *MemoryStore) Insert(_ context.Context, table string, row Row) (Row, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	id := fmt.Sprint(row["id"])
	if row["id"] == nil || id == "" {
		return nil, fmt.Errorf("insert %s: id is required", table)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[table]
	if !ok {
		t = make(map[string]memRow)
		s.tables[table] = t
	}
	if _, exists := t[id]; exists {
		return nil, fmt.Errorf("insert %s: duplicate key %q", table, id)
	}
	stored := row.Clone()
	if _, ok := stored["created_at"]; !ok {
		stored["created_at"] = s.now().UTC().Format(createdAtLayout)
	}
	s.seq++
	t[id] = memRow{seq: s.seq, row: stored}
	return stored.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, table, id string, row Row) (Row, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	mr, ok := s.tables[table][id]
	if !ok {
		return nil, ErrNotFound
	}
	for k, v := range row {
		if k == "id" {
			continue
		}
		mr.row[k] = cloneValue(v)
	}
	s.tables[table][id] = mr
	return mr.row.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, table, id string) error {
	if err := checkIdent(table); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[table][id]; !ok {
		return ErrNotFound
	}
	delete(s.tables[table], id)
	return nil
}

func matches(r Row, eq map[string]any) bool {
	for k, v := range eq {
		if fmt.Sprint(r[k]) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}
