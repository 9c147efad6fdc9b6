package qna

import (
	"fmt"

	"github.com/qna-labs/qna-service/internal/domain"
)

// Entry is one piece of caller-supplied side information.
type Entry struct {
	Content     string
	Description string
}

// ContextStore is an insertion-ordered mapping from a caller-chosen id to
// an Entry. Order is load-bearing: entries are rendered between the system
// prompt and the chat history in the order they were first added.
type ContextStore struct {
	order   []string
	entries map[string]Entry
}

func NewContextStore() *ContextStore {
	return &ContextStore{
		entries: make(map[string]Entry),
	}
}

// Set inserts or overwrites an entry. Overwriting keeps the entry's
// original position in the render order.
func (s *ContextStore) Set(id string, e Entry) {
	if _, exists := s.entries[id]; !exists {
		s.order = append(s.order, id)
	}
	s.entries[id] = e
}

// Remove deletes an entry, failing with ErrNotFound if it is absent.
func (s *ContextStore) Remove(id string) error {
	if _, exists := s.entries[id]; !exists {
		return fmt.Errorf("%w: additional %q", domain.ErrNotFound, id)
	}
	delete(s.entries, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns the entry for id, if present.
func (s *ContextStore) Get(id string) (Entry, bool) {
	e, ok := s.entries[id]
	return e, ok
}

// IDs returns the ids in insertion order.
func (s *ContextStore) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *ContextStore) Len() int {
	return len(s.entries)
}

// Render emits one context-note envelope per entry, in insertion order.
// A description, when present, prefixes the content on its own paragraph.
func (s *ContextStore) Render() []domain.Message {
	if len(s.order) == 0 {
		return nil
	}
	out := make([]domain.Message, 0, len(s.order))
	for _, id := range s.order {
		e := s.entries[id]
		text := e.Content
		if e.Description != "" {
			text = e.Description + "\n\n" + e.Content
		}
		out = append(out, domain.NewContextNote(text))
	}
	return out
}
