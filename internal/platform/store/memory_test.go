package store

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStore_InsertSelectOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"P1", "P2", "P3"} {
		if _, err := s.Insert(ctx, "patients", Row{"id": id, "status": "Arrived"}); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	if _, err := s.Insert(ctx, "patients", Row{"id": "A1", "status": "Scheduled"}); err != nil {
		t.Fatalf("insert A1: %v", err)
	}

	rows, err := s.Select(ctx, "patients", Query{Order: "created_at", Desc: true})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if rows[0]["id"] != "A1" {
		t.Errorf("expected newest row first, got %v", rows[0]["id"])
	}

	scheduled, err := s.Select(ctx, "patients", Query{Eq: map[string]any{"status": "Scheduled"}})
	if err != nil {
		t.Fatalf("select eq: %v", err)
	}
	if len(scheduled) != 1 || scheduled[0]["id"] != "A1" {
		t.Errorf("expected only A1, got %v", scheduled)
	}
}

func TestMemoryStore_InsertDuplicate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if _, err := s.Insert(ctx, "patients", Row{"id": "P1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Insert(ctx, "patients", Row{"id": "P1"}); err == nil {
		t.Fatal("expected duplicate key error")
	}
}

func TestMemoryStore_InsertRequiresID(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Insert(context.Background(), "patients", Row{"name": "x"}); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestMemoryStore_UpdateAndDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Insert(ctx, "patients", Row{"id": "P1", "name": "Asha"})

	got, err := s.Update(ctx, "patients", "P1", Row{"name": "Asha K", "id": "ignored"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got["name"] != "Asha K" || got["id"] != "P1" {
		t.Errorf("unexpected row after update: %v", got)
	}

	if _, err := s.Update(ctx, "patients", "nope", Row{"name": "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "patients", "P1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "patients", "P1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMemoryStore_RowsAreCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	nested := map[string]any{"outcome": "Lost"}
	s.Insert(ctx, "patients", Row{"id": "P1", "package_proposal": nested})
	nested["outcome"] = "Completed"

	rows, _ := s.Select(ctx, "patients", Query{})
	pp := rows[0]["package_proposal"].(map[string]any)
	if pp["outcome"] != "Lost" {
		t.Errorf("stored row was mutated through caller map: %v", pp["outcome"])
	}
	pp["outcome"] = "Scheduled"
	rows, _ = s.Select(ctx, "patients", Query{})
	if rows[0]["package_proposal"].(map[string]any)["outcome"] != "Lost" {
		t.Error("stored row was mutated through returned map")
	}
}

func TestCheckIdent(t *testing.T) {
	if err := checkIdent("patients", "created_at"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, bad := range []string{"", "Patients", "x; DROP TABLE y", "1abc"} {
		if err := checkIdent(bad); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}
