package repository

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/vinq-io/vinq/pkg/model"
)

// Memory is the process-lifetime session store. Reads return deep copies so
// concurrent sessions never observe each other's mutations; state changes
// only land through PutSession.
type Memory struct {
	mu       sync.RWMutex
	sessions map[model.SessionID]*model.Session
}

func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[model.SessionID]*model.Session),
	}
}

func (m *Memory) PutSession(ctx context.Context, session *model.Session) error {
	if session.ID == "" {
		return goerr.New("session ID is empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session.Clone()
	return nil
}

func (m *Memory) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, goerr.Wrap(model.ErrSessionNotFound, "no such session", goerr.V("session_id", id))
	}
	return session.Clone(), nil
}

func (m *Memory) DeleteSession(ctx context.Context, id model.SessionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
