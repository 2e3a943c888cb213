package memory

import (
	"context"
	"sync"
)

// SessionGuard enforces one in-progress session per user with a plain
// mutex-guarded map. The Redis variant replaces it in multi-instance
// deployments.
type SessionGuard struct {
	mu     sync.Mutex
	active map[string]string // userID -> sessionID
}

func NewSessionGuard() *SessionGuard {
	return &SessionGuard{active: make(map[string]string)}
}

func (g *SessionGuard) Acquire(_ context.Context, userID, sessionID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, held := g.active[userID]; held {
		return false, nil
	}
	g.active[userID] = sessionID
	return true, nil
}

func (g *SessionGuard) Release(_ context.Context, userID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, userID)
	return nil
}
