// Package mission tracks the ambient mission context of each MCP
// connection. A connection can pin a mission (and optionally a target)
// once and have every later tool call inherit it instead of repeating
// IDs on each call.
package mission

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is the immutable ambient context of one connection.
// Readers always see a complete snapshot, never a half-applied update.
type Snapshot struct {
	MissionID     string    `json:"mission_id,omitempty"`
	TargetID      string    `json:"target_id,omitempty"`
	CookieProfile string    `json:"active_cookie_profile,omitempty"`
	SetAt         time.Time `json:"set_at"`
}

// Context holds the ambient state of a single connection.
type Context struct {
	current atomic.Pointer[Snapshot]
}

// Set replaces the snapshot wholesale.
func (c *Context) Set(missionID, targetID, cookieProfile string) Snapshot {
	snap := Snapshot{
		MissionID:     missionID,
		TargetID:      targetID,
		CookieProfile: cookieProfile,
		SetAt:         time.Now().UTC(),
	}
	c.current.Store(&snap)
	return snap
}

// Get returns the current snapshot, or nil when none is set.
func (c *Context) Get() *Snapshot {
	return c.current.Load()
}

// Clear drops the ambient context.
func (c *Context) Clear() {
	c.current.Store(nil)
}

// Resolve fills empty mission/target IDs from the ambient snapshot.
// It reports whether the ambient context supplied anything, so the
// caller can note that in its response.
func (c *Context) Resolve(missionID, targetID string) (string, string, bool) {
	snap := c.Get()
	if snap == nil {
		return missionID, targetID, false
	}
	ambient := false
	if missionID == "" && snap.MissionID != "" {
		missionID = snap.MissionID
		ambient = true
	}
	if targetID == "" && snap.TargetID != "" {
		targetID = snap.TargetID
		ambient = true
	}
	return missionID, targetID, ambient
}

// ResolveCookieProfile returns the explicit profile when given,
// otherwise the ambient one. The bool reports whether the ambient
// profile was used.
func (c *Context) ResolveCookieProfile(explicit string) (string, bool) {
	if explicit != "" {
		return explicit, false
	}
	snap := c.Get()
	if snap == nil || snap.CookieProfile == "" {
		return "", false
	}
	return snap.CookieProfile, true
}

// Registry hands out one Context per MCP session. Sessions are isolated
// from each other; a session that never sets context gets an empty one.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Context
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Context)}
}

// ForSession returns the session's context, creating it on first use.
func (r *Registry) ForSession(id string) *Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.sessions[id]
	if !ok {
		c = &Context{}
		r.sessions[id] = c
	}
	return c
}

// Drop forgets a session's context, for session teardown.
func (r *Registry) Drop(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}
