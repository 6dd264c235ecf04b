// Package sessionstore keeps the live simulation sessions of the web application in memory.
package sessionstore

import (
	"context"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/medcircle/medresident/internal/errors"
	"github.com/medcircle/medresident/internal/logging"
	"github.com/medcircle/medresident/internal/simulation"
	"log/slog"
	"sync"
)

// Factory creates the session stored under id on behalf of learnerID.
type Factory func(id string, learnerID string) *simulation.Session

type entry struct {
	session   *simulation.Session
	learnerID string
}

// Store holds at most a fixed number of live sessions. The least recently used session is evicted and reset when the
// store is full so that its countdown stops.
type Store struct {
	mu      sync.Mutex
	cache   *lru.Cache[string, entry]
	factory Factory
	logger  *slog.Logger
}

// New creates a store holding up to size sessions.
func New(size int, factory Factory, logger *slog.Logger) (*Store, error) {
	s := &Store{mu: sync.Mutex{}, cache: nil, factory: factory, logger: logger}
	cache, err := lru.NewWithEvict[string, entry](size, s.onEvict)
	if err != nil {
		return nil, errors.Wrap(err, "new lru", slog.Int("size", size))
	}
	s.cache = cache
	return s, nil
}

func (s *Store) onEvict(id string, e entry) {
	ctx := logging.WithAttrs(context.Background(), slog.String("simulation_id", id))
	e.session.Reset(ctx)
	s.logger.LogAttrs(ctx, slog.LevelDebug, "live session released")
}

// Get returns the session stored under id if it belongs to learnerID and marks it as recently used.
func (s *Store) Get(id string, learnerID string) (*simulation.Session, bool) {
	if id == "" {
		return nil, false
	}
	e, ok := s.cache.Get(id)
	if !ok || e.learnerID != learnerID {
		return nil, false
	}
	return e.session, true
}

// GetOrCreate returns the session of learnerID stored under id or creates a new one with a fresh id when there is
// none.
func (s *Store) GetOrCreate(id string, learnerID string) *simulation.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.Get(id, learnerID); ok {
		return session
	}
	session := s.factory(uuid.NewString(), learnerID)
	s.cache.Add(session.ID(), entry{session: session, learnerID: learnerID})
	return session
}

// Delete resets and forgets the session stored under id.
func (s *Store) Delete(id string) {
	s.cache.Remove(id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.cache.Len()
}

// Purge resets and forgets every session. Used on shutdown.
func (s *Store) Purge() {
	s.cache.Purge()
}
