// Package admission caps how many transfers run at once and keeps the pending
// confirmation sessions that hold those slots.
package admission

import (
	"sync"
	"time"

	"github.com/memohai/stowbot/internal/transfer"
)

// Token is one reserved slot. Releasing it more than once is a no-op.
type Token struct {
	once    sync.Once
	release func()
}

// Session is a pending confirmation holding a slot.
type Session struct {
	ID        string
	Token     *Token
	Payload   any
	ExpiresAt time.Time
}

func (s *Session) expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Controller is a non-blocking counting semaphore plus a session registry.
type Controller struct {
	slots chan struct{}
	ttl   time.Duration
	now   func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewController allows capacity concurrent slots; idle sessions expire after ttl.
func NewController(capacity int, ttl time.Duration) *Controller {
	if capacity < 1 {
		capacity = 1
	}
	return &Controller{
		slots:    make(chan struct{}, capacity),
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// TryReserve takes a slot without waiting, or fails with a Busy error.
func (c *Controller) TryReserve() (*Token, error) {
	select {
	case c.slots <- struct{}{}:
		return &Token{release: func() { <-c.slots }}, nil
	default:
		return nil, transfer.Busy()
	}
}

// Release returns the token's slot. Safe to call repeatedly and with nil.
func (c *Controller) Release(t *Token) {
	if t == nil {
		return
	}
	t.once.Do(t.release)
}

// Register parks a reserved token under sessionID until Consume, Cancel or expiry.
func (c *Controller) Register(sessionID string, t *Token, payload any) *Session {
	s := &Session{ID: sessionID, Token: t, Payload: payload}
	if c.ttl > 0 {
		s.ExpiresAt = c.now().Add(c.ttl)
	}

	c.mu.Lock()
	prev := c.sessions[sessionID]
	c.sessions[sessionID] = s
	c.mu.Unlock()

	if prev != nil && prev.Token != t {
		c.Release(prev.Token)
	}
	return s
}

// Consume removes and returns the session; the caller now owns its token.
// An expired session is dropped, its slot freed, and reported as missing.
func (c *Controller) Consume(sessionID string) (*Session, bool) {
	c.mu.Lock()
	s, ok := c.sessions[sessionID]
	if ok {
		delete(c.sessions, sessionID)
	}
	c.mu.Unlock()

	if !ok {
		return nil, false
	}
	if s.expired(c.now()) {
		c.Release(s.Token)
		return nil, false
	}
	return s, true
}

// Peek returns the session without taking it. Expired sessions are dropped.
func (c *Controller) Peek(sessionID string) (*Session, bool) {
	c.mu.Lock()
	s, ok := c.sessions[sessionID]
	if ok && s.expired(c.now()) {
		delete(c.sessions, sessionID)
		ok = false
	}
	c.mu.Unlock()

	if s != nil && !ok {
		c.Release(s.Token)
		return nil, false
	}
	return s, ok
}

// Cancel drops the session and frees its slot.
func (c *Controller) Cancel(sessionID string) bool {
	s, ok := c.Consume(sessionID)
	if !ok {
		return false
	}
	c.Release(s.Token)
	return true
}

// Sweep expires sessions past their deadline and returns how many were dropped.
func (c *Controller) Sweep(now time.Time) int {
	var expired []*Session

	c.mu.Lock()
	for id, s := range c.sessions {
		if s.expired(now) {
			expired = append(expired, s)
			delete(c.sessions, id)
		}
	}
	c.mu.Unlock()

	for _, s := range expired {
		c.Release(s.Token)
	}
	return len(expired)
}

// InFlight is the number of reserved slots.
func (c *Controller) InFlight() int { return len(c.slots) }

// Capacity is the maximum number of reserved slots.
func (c *Controller) Capacity() int { return cap(c.slots) }

// Pending is the number of registered sessions.
func (c *Controller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}
