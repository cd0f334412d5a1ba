package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

// hangingStore blocks until the caller's context is done.
type hangingStore struct{ *MemoryStore }

func (hangingStore) Select(ctx context.Context, _ string, _ Query) ([]Row, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestWithTimeout_BoundsHungCalls(t *testing.T) {
	s := WithTimeout(hangingStore{NewMemoryStore()}, 20*time.Millisecond)

	start := time.Now()
	_, err := s.Select(context.Background(), "patients", Query{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("timeout did not fire promptly")
	}
}

func TestWithTimeout_PassesThrough(t *testing.T) {
	mem := NewMemoryStore()
	s := WithTimeout(mem, time.Second)
	ctx := context.Background()

	if _, err := s.Insert(ctx, "patients", Row{"id": "P1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Update(ctx, "patients", "P1", Row{"name": "Asha"}); err != nil {
		t.Fatal(err)
	}
	rows, err := s.Select(ctx, "patients", Query{})
	if err != nil || len(rows) != 1 || rows[0]["name"] != "Asha" {
		t.Fatalf("unexpected rows %v (%v)", rows, err)
	}
	if err := s.Delete(ctx, "patients", "P1"); err != nil {
		t.Fatal(err)
	}
	if WithTimeout(mem, 0) != Store(mem) {
		t.Error("zero timeout should return the store unchanged")
	}
}
