package model

import (
	"time"

	"github.com/google/uuid"
)

type SessionID string

// NewSessionID generates a new unique SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Turn is a single conversation turn. Immutable once appended to a session.
type Turn struct {
	Role      Role
	Text      string
	Timestamp time.Time

	// Intent is set on user turns once interpretation succeeded
	Intent *Intent
	// Bundle is set on agent turns that answered from retrieved evidence
	Bundle *EvidenceBundle
}

// ResolvedEntity is an entity value established during the conversation,
// with the index of the turn that set it.
type ResolvedEntity struct {
	Value     string
	TurnIndex int
}

// Session holds one user's conversation transcript and the entities resolved
// so far. It lives in memory for the lifetime of the conversation only.
type Session struct {
	ID        SessionID
	CreatedAt time.Time
	Turns     []Turn
	Entities  map[EntityType]ResolvedEntity
}

// NewSession creates an empty session
func NewSession() *Session {
	return &Session{
		ID:        NewSessionID(),
		CreatedAt: time.Now(),
		Entities:  make(map[EntityType]ResolvedEntity),
	}
}

// AppendTurn appends a turn to the transcript. Turns are never reordered or
// deleted afterwards.
func (s *Session) AppendTurn(turn Turn) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	s.Turns = append(s.Turns, turn)
}

// ResolveEntity records an entity literal found in the current turn. An
// existing value is only replaced, never silently dropped.
func (s *Session) ResolveEntity(typ EntityType, value string) {
	if value == "" {
		return
	}
	s.Entities[typ] = ResolvedEntity{
		Value:     value,
		TurnIndex: len(s.Turns),
	}
}

// Entity returns the last-known value for an entity type
func (s *Session) Entity(typ EntityType) (string, bool) {
	e, ok := s.Entities[typ]
	if !ok {
		return "", false
	}
	return e.Value, true
}

// Window returns the last n turns for prompt context
func (s *Session) Window(n int) []Turn {
	if n <= 0 || len(s.Turns) <= n {
		return s.Turns
	}
	return s.Turns[len(s.Turns)-n:]
}

// Clone returns a deep copy so repository readers cannot mutate stored state
func (s *Session) Clone() *Session {
	c := &Session{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Turns:     make([]Turn, len(s.Turns)),
		Entities:  make(map[EntityType]ResolvedEntity, len(s.Entities)),
	}
	copy(c.Turns, s.Turns)
	for k, v := range s.Entities {
		c.Entities[k] = v
	}
	return c
}
