package blog

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"blog/pkg/models"
)

// Snapshot holds the prepared first page of the index. It is regenerated
// periodically; a failed regeneration keeps serving the previous page.
type Snapshot struct {
	loader *Loader

	mu          sync.RWMutex
	page        Page
	ready       bool
	generatedAt time.Time
}

func NewSnapshot(l *Loader) *Snapshot {
	return &Snapshot{loader: l}
}

// Regenerate runs the loader and replaces the prepared page on success.
func (s *Snapshot) Regenerate(ctx context.Context) error {
	page, err := s.loader.Load(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.page = page
	s.ready = true
	s.generatedAt = time.Now()
	s.mu.Unlock()

	log.Infof("[snapshot] first page regenerated: %d posts, more: %v", len(page.Posts), page.HasMore())
	return nil
}

// Current returns a copy of the prepared page or ErrNotPrepared if no
// regeneration has succeeded yet.
func (s *Snapshot) Current() (Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.ready {
		return Page{}, ErrNotPrepared
	}

	posts := make([]models.DisplayPost, len(s.page.Posts))
	copy(posts, s.page.Posts)
	return Page{Cursor: s.page.Cursor, Posts: posts}, nil
}

func (s *Snapshot) GeneratedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generatedAt
}
