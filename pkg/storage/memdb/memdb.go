package memdb

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"

	"blog/pkg/blog"
	"blog/pkg/storage"
)

const (
	defaultIdleTTL      = 30 * time.Minute
	defaultCleanupEvery = 2 * time.Minute
)

type Store struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*blog.Session

	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type Option func(*Store)

func WithIdleTTL(d time.Duration) Option {
	return func(s *Store) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) Option {
	return func(s *Store) { s.cleanupEvery = d }
}

func New(opts ...Option) *Store {
	db := Store{
		sessions:     make(map[uuid.UUID]*blog.Session),
		idleTTL:      defaultIdleTTL,
		cleanupEvery: defaultCleanupEvery,
	}
	for _, opt := range opts {
		opt(&db)
	}

	return &db
}

func (db *Store) AddSession(ctx context.Context, s *blog.Session) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.sessions[s.ID] = s
	return nil
}

func (db *Store) Session(ctx context.Context, id uuid.UUID) (*blog.Session, error) {
	db.mu.Lock()
	s, ok := db.sessions[id]
	db.mu.Unlock()

	if !ok {
		return nil, storage.ErrSessionNotFound
	}

	s.Touch()
	return s, nil
}

func (db *Store) DeleteSession(ctx context.Context, id uuid.UUID) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.sessions[id]; !ok {
		return storage.ErrSessionNotFound
	}
	delete(db.sessions, id)

	return nil
}

func (db *Store) Len() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.sessions)
}

// Cleanup drops sessions not seen for longer than the idle TTL and returns
// how many were removed.
func (db *Store) Cleanup() int {
	cutoff := time.Now().Add(-db.idleTTL)

	db.mu.Lock()
	defer db.mu.Unlock()

	removed := 0
	for id, s := range db.sessions {
		if s.LastSeen().Before(cutoff) {
			delete(db.sessions, id)
			removed++
		}
	}

	return removed
}

// StartJanitor runs Cleanup periodically until ctx is done.
func (db *Store) StartJanitor(ctx context.Context) {
	if db.cleanupEvery <= 0 || db.idleTTL <= 0 {
		return
	}

	t := time.NewTicker(db.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := db.Cleanup(); n > 0 {
					log.Debugf("[memdb] removed %d idle sessions", n)
				}
			}
		}
	}()
}
