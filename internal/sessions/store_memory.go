package sessions

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps sessions in memory and is safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]Session
	now  func() time.Time
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]Session),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new session.
func (s *MemoryStore) Create(ctx context.Context, sess Session) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	if sess.ID == "" {
		return Session{}, ErrValidation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[sess.ID]; ok {
		return Session{}, ErrDuplicateID
	}
	now := s.now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
	s.byID[sess.ID] = sess.Clone()
	return sess.Clone(), nil
}

// Get returns a session by id.
func (s *MemoryStore) Get(ctx context.Context, id string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byID[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess.Clone(), nil
}

// Update applies p to the session under the store lock.
func (s *MemoryStore) Update(ctx context.Context, id string, p Patch) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	updated, err := p.Apply(sess, s.now())
	if err != nil {
		return Session{}, err
	}
	s.byID[id] = updated
	return updated.Clone(), nil
}

// ListStale returns processing sessions last updated before the cutoff, oldest first.
func (s *MemoryStore) ListStale(ctx context.Context, updatedBefore time.Time, limit int) ([]Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var out []Session
	for _, sess := range s.byID {
		if sess.Status == StatusProcessing && sess.UpdatedAt.Before(updatedBefore) {
			out = append(out, sess.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var (
	_ Store       = (*MemoryStore)(nil)
	_ StaleLister = (*MemoryStore)(nil)
)
