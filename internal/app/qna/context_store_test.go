package qna

import (
	"errors"
	"testing"

	"github.com/qna-labs/qna-service/internal/domain"
)

func TestContextStoreLastWriteWins(t *testing.T) {
	s := NewContextStore()

	s.Set("a", Entry{Content: "x"})
	s.Set("a", Entry{Content: "y"})

	if s.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", s.Len())
	}
	e, ok := s.Get("a")
	if !ok || e.Content != "y" {
		t.Fatalf("expected content %q, got %+v", "y", e)
	}
}

func TestContextStoreRemoveTwiceFails(t *testing.T) {
	s := NewContextStore()
	s.Set("a", Entry{Content: "x"})

	if err := s.Remove("a"); err != nil {
		t.Fatalf("first remove failed: %v", err)
	}
	err := s.Remove("a")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second remove, got %v", err)
	}
}

func TestContextStoreRenderOrder(t *testing.T) {
	s := NewContextStore()
	s.Set("b", Entry{Content: "second"})
	s.Set("a", Entry{Content: "first"})
	// Overwriting keeps the original position.
	s.Set("b", Entry{Content: "second-v2"})

	notes := s.Render()
	if len(notes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(notes))
	}
	if notes[0].Content != "second-v2" || notes[1].Content != "first" {
		t.Fatalf("render order wrong: %+v", notes)
	}
	for _, n := range notes {
		if n.Role != domain.RoleContextNote {
			t.Fatalf("expected context note role, got %q", n.Role)
		}
	}
}

func TestContextStoreRenderDescription(t *testing.T) {
	s := NewContextStore()
	s.Set("pricing", Entry{Content: "42 EUR", Description: "Current premium price"})

	notes := s.Render()
	want := "Current premium price\n\n42 EUR"
	if notes[0].Content != want {
		t.Fatalf("expected %q, got %q", want, notes[0].Content)
	}
}
