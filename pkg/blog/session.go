package blog

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"blog/pkg/models"
)

type State int

const (
	StateIdleWithMore State = iota
	StateFetching
	StateIdleExhausted
)

func (s State) String() string {
	switch s {
	case StateIdleWithMore:
		return "idle-with-more"
	case StateFetching:
		return "fetching"
	case StateIdleExhausted:
		return "idle-exhausted"
	}
	return "unknown"
}

// Session is the post list of one page view: the posts shown so far, in
// fetch order, and the cursor to the next page.
//
// Fetches are serialized: LoadMore holds a single slot for the whole round
// trip, so concurrent callers append in the order they acquire it.
type Session struct {
	ID uuid.UUID

	slot chan struct{}

	mu       sync.Mutex
	posts    []models.DisplayPost
	cursor   string
	fetching bool
	lastErr  error
	lastSeen time.Time
}

func NewSession(id uuid.UUID, first Page) *Session {
	posts := make([]models.DisplayPost, len(first.Posts))
	copy(posts, first.Posts)

	return &Session{
		ID:       id,
		slot:     make(chan struct{}, 1),
		posts:    posts,
		cursor:   first.Cursor,
		lastSeen: time.Now(),
	}
}

// LoadMore fetches the page behind the current cursor, appends it and moves
// the cursor forward. It returns the appended posts with the new cursor.
//
// With an empty cursor it returns ErrNoMorePages. On any other error the list
// and cursor are left untouched and the error is kept for LastError, so the
// same cursor can be retried.
func (s *Session) LoadMore(ctx context.Context, f *Fetcher) (Page, error) {
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return Page{}, ctx.Err()
	}
	defer func() { <-s.slot }()

	s.mu.Lock()
	cursor := s.cursor
	if cursor == "" {
		s.mu.Unlock()
		return Page{}, ErrNoMorePages
	}
	s.fetching = true
	s.mu.Unlock()

	page, err := f.Next(ctx, cursor)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetching = false
	s.lastSeen = time.Now()
	if err != nil {
		s.lastErr = err
		return Page{}, err
	}

	s.posts = append(s.posts, page.Posts...)
	s.cursor = page.Cursor
	s.lastErr = nil

	return page, nil
}

// Posts returns a copy of the list.
func (s *Session) Posts() []models.DisplayPost {
	s.mu.Lock()
	defer s.mu.Unlock()

	posts := make([]models.DisplayPost, len(s.posts))
	copy(posts, s.posts)
	return posts
}

// Page returns the whole list with the current cursor.
func (s *Session) Page() Page {
	s.mu.Lock()
	defer s.mu.Unlock()

	posts := make([]models.DisplayPost, len(s.posts))
	copy(posts, s.posts)
	return Page{Cursor: s.cursor, Posts: posts}
}

func (s *Session) Cursor() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *Session) HasMore() bool {
	return s.Cursor() != ""
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posts)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.fetching:
		return StateFetching
	case s.cursor == "":
		return StateIdleExhausted
	default:
		return StateIdleWithMore
	}
}

// LastError returns the error of the most recent failed LoadMore, or nil if
// the last attempt succeeded.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
