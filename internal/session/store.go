// Package session provides keyed, TTL-bounded storage of in-progress
// conversation state.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dealflow-ai/qualification-platform/internal/model"
)

// Store is keyed storage for qualification sessions. Update is the atomic
// read-modify-write primitive; concurrent updates for the same key must not
// lose writes.
type Store interface {
	// Get returns a copy of the session for key, ErrNotFound when absent,
	// or ErrExpired when its TTL has elapsed.
	Get(ctx context.Context, key string) (*model.Session, error)

	// Put stores the session under its key, replacing any existing entry.
	Put(ctx context.Context, sess *model.Session) error

	// Update applies fn to the stored session atomically. fn receives the
	// current session and may mutate it in place; a non-nil error aborts
	// the write.
	Update(ctx context.Context, key string, fn func(*model.Session) error) error

	// Delete removes the session for key. Deleting an absent key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// Keys lists all stored session keys, expired entries included.
	Keys(ctx context.Context) ([]string, error)

	// Close releases any underlying resources.
	Close() error
}

// MemoryStore is an in-process Store guarded by a single lock. Adequate at
// expected load; the bolt store exists for durability, not throughput.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates an in-memory store with the given TTL. A zero TTL
// disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*model.Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*model.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if s.expired(sess) {
		s.mu.Lock()
		delete(s.sessions, key)
		s.mu.Unlock()
		return nil, ErrExpired
	}
	return cloneSession(sess)
}

func (s *MemoryStore) Put(ctx context.Context, sess *model.Session) error {
	clone, err := cloneSession(sess)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sessions[sess.SessionKey] = clone
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, key string, fn func(*model.Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		return ErrNotFound
	}
	if s.expired(sess) {
		delete(s.sessions, key)
		return ErrExpired
	}
	if err := fn(sess); err != nil {
		return err
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.sessions, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.sessions))
	for k := range s.sessions {
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) expired(sess *model.Session) bool {
	return s.ttl > 0 && s.now().Sub(sess.LastActivity) > s.ttl
}

// cloneSession deep-copies via JSON so callers never alias stored state.
func cloneSession(sess *model.Session) (*model.Session, error) {
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}
	var out model.Session
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
