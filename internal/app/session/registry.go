package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/qna-labs/qna-service/internal/app/qna"
	"github.com/qna-labs/qna-service/internal/domain"
)

// Registry maps session identifiers to (conversation, exclusive guard)
// pairs and owns the session lifecycle. It is an explicit object created
// at service start and injected into the HTTP layer, never ambient state,
// so tests construct isolated registries per case.
//
// The registry's own map has its own lock, independent of any session's
// guard: Create, Get and Remove stay safe while turns are in flight on
// other sessions.
type Registry struct {
	mu      sync.RWMutex
	entries map[domain.SessionID]*entry
	newID   func() string
}

type entry struct {
	conv *qna.Conversation

	// guard is a one-slot semaphore. A non-blocking send is the atomic
	// try-acquire; len(guard) exposes "held?" to Stats without mutation.
	guard chan struct{}
}

// Option configures a Registry.
type Option func(*Registry)

// WithIDGenerator overrides the identifier source. Tests use this to force
// collisions.
func WithIDGenerator(gen func() string) Option {
	return func(r *Registry) { r.newID = gen }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[domain.SessionID]*entry),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create stores a new conversation under a freshly generated identifier
// and returns it. An identifier collision is retried silently; the caller
// never observes it.
func (r *Registry) Create(conv *qna.Conversation) domain.SessionID {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := domain.SessionID(r.newID())
	for _, exists := r.entries[id]; exists; _, exists = r.entries[id] {
		id = domain.SessionID(r.newID())
	}

	r.entries[id] = &entry{
		conv:  conv,
		guard: make(chan struct{}, 1),
	}
	return id
}

// Get returns the conversation for id without acquiring its guard. Callers
// that intend to mutate must go through TryAcquire instead.
func (r *Registry) Get(id domain.SessionID) (*qna.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return e.conv, nil
}

// Remove deletes the session. A second removal of the same id fails: the
// identifier is no longer valid, matching end-of-session semantics.
func (r *Registry) Remove(id domain.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	delete(r.entries, id)
	return nil
}

// TryAcquire attempts to take the session's exclusive guard in a single
// atomic step. It never blocks: if the guard is held the call fails with
// ErrSessionBusy immediately, since concurrent turns on one session are a
// conflict, not a scheduling opportunity. The returned handle must be
// released on every exit path, normally via defer.
func (r *Registry) TryAcquire(id domain.SessionID) (*Handle, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}

	select {
	case e.guard <- struct{}{}:
		return &Handle{Conversation: e.conv, guard: e.guard}, nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionBusy, id)
	}
}

// Stats returns a best-effort snapshot of total and guard-held session
// counts. It is not synchronized against concurrent turns.
func (r *Registry) Stats() (total, locked int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total = len(r.entries)
	for _, e := range r.entries {
		if len(e.guard) == 1 {
			locked++
		}
	}
	return total, locked
}

// Handle is an acquired exclusive guard over one conversation. Release is
// idempotent so a deferred release stays correct even when an error path
// released early.
type Handle struct {
	Conversation *qna.Conversation

	guard chan struct{}
	once  sync.Once
}

// Release gives the guard back. Safe to call more than once.
func (h *Handle) Release() {
	h.once.Do(func() { <-h.guard })
}
