package repository

import (
	"context"

	"github.com/vinq-io/vinq/pkg/model"
)

// Repository defines the interface for session state storage. Sessions are
// scoped to one conversation; the core requires no durable persistence, so
// the default implementation is in-memory.
type Repository interface {
	// PutSession saves a session
	PutSession(ctx context.Context, session *model.Session) error

	// GetSession retrieves a session by ID. Returns model.ErrSessionNotFound
	// if the session does not exist.
	GetSession(ctx context.Context, id model.SessionID) (*model.Session, error)

	// DeleteSession removes a session at end of conversation
	DeleteSession(ctx context.Context, id model.SessionID) error
}
