// Package session is the hosting-surface isolation layer: each active
// reviewer gets one coding session keyed by a server-assigned id.
package session

import (
	"context"
	"errors"
	"sync"

	"fomcval/api/internal/validation"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// Registry stores live coding sessions by id.
type Registry interface {
	Get(ctx context.Context, id string) (*validation.Session, error)
	Put(ctx context.Context, id string, session *validation.Session) error
	Delete(ctx context.Context, id string) error
}

// Memory is the default in-process registry. Sessions are copied on the way
// in and out, matching the value semantics of the Redis store's JSON round
// trip: callers never share live state with the registry or each other.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*validation.Session
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*validation.Session)}
}

func (m *Memory) Get(_ context.Context, id string) (*validation.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return session.Clone(), nil
}

func (m *Memory) Put(_ context.Context, id string, session *validation.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = session.Clone()
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
