package store

import (
	"context"
	"time"
)

type timeoutStore struct {
	next Store
	d    time.Duration
}

// WithTimeout bounds every call to next by d, so a hung backend surfaces as
// context.DeadlineExceeded instead of blocking its caller forever.
func WithTimeout(next Store, d time.Duration) Store {
	if d <= 0 {
		return next
	}
	return &timeoutStore{next: next, d: d}
}

func (s *timeoutStore) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	ctx, cancel := context.WithTimeout(ctx, s.d)
	defer cancel()
	return s.next.Select(ctx, table, q)
}

func (s *timeoutStore) Insert(ctx context.Context, table string, row Row) (Row, error) {
	ctx, cancel := context.WithTimeout(ctx, s.d)
	defer cancel()
	return s.next.Insert(ctx, table, row)
}

func (s *timeoutStore) Update(ctx context.Context, table, id string, row Row) (Row, error) {
	ctx, cancel := context.WithTimeout(ctx, s.d)
	defer cancel()
	return s.next.Update(ctx, table, id, row)
}

func (s *timeoutStore) Delete(ctx context.Context, table, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.d)
	defer cancel()
	return s.next.Delete(ctx, table, id)
}
