package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/moneypot/verifier/internal/store"
)

type entry struct {
	value  []byte
	expiry time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiry.IsZero() && !now.Before(e.expiry)
}

// Store is an in-memory store.Interface. Expired entries are invisible
// immediately and pruned periodically. It does not scale past one process.
type Store struct {
	mu   sync.Mutex
	data map[string]entry
}

var _ store.Interface = (*Store)(nil)

// New creates a Store whose cleanup goroutine stops when ctx is done.
func New(ctx context.Context) *Store {
	s := &Store{data: make(map[string]entry)}
	go s.cleanupThread(ctx)
	return s
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}
	return e.value, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = newEntry(value, expiry)
	return nil
}

func (s *Store) SetNX(_ context.Context, key string, value []byte, expiry time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(key); ok {
		return false, nil
	}
	s.data[key] = newEntry(value, expiry)
	return true, nil
}

func (s *Store) Take(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}
	delete(s.data, key)
	return e.value, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(key); !ok {
		return fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}
	delete(s.data, key)
	return nil
}

// Cleanup drops every expired entry.
func (s *Store) Cleanup() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.data {
		if e.expired(now) {
			delete(s.data, k)
		}
	}
}

// live must be called with mu held.
func (s *Store) live(key string) (entry, bool) {
	e, ok := s.data[key]
	if !ok {
		return entry{}, false
	}
	if e.expired(time.Now()) {
		delete(s.data, key)
		return entry{}, false
	}
	return e, true
}

func (s *Store) cleanupThread(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Cleanup()
		}
	}
}

func newEntry(value []byte, expiry time.Duration) entry {
	e := entry{value: append([]byte(nil), value...)}
	if expiry > 0 {
		e.expiry = time.Now().Add(expiry)
	}
	return e
}
