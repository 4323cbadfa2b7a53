// Package storage defines where page sessions live between requests.
package storage

import (
	"context"
	"errors"

	"github.com/gofrs/uuid"

	"blog/pkg/blog"
)

var ErrSessionNotFound = errors.New("session not found")

type Store interface {
	AddSession(ctx context.Context, s *blog.Session) error
	// Session returns the session with the given ID and marks it as seen.
	Session(ctx context.Context, id uuid.UUID) (*blog.Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
}
