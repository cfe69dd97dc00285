package server

import (
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// session is the server-side state of one connected client.
type session struct {
	handle      uint64
	locator     string
	clusterName string
	connectedAt time.Time
}

// sessionRegistry issues and validates session handles. Handles are
// opaque 64-bit identifiers starting at 1; 0 is never valid, so a zeroed
// handle always fails validation. Safe for concurrent use.
type sessionRegistry struct {
	sessions   *xsync.MapOf[uint64, *session]
	nextHandle atomic.Uint64
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{
		sessions: xsync.NewMapOf[uint64, *session](),
	}
}

// register creates a session and returns its fresh handle.
func (r *sessionRegistry) register(locator, clusterName string) uint64 {
	handle := r.nextHandle.Add(1)
	r.sessions.Store(handle, &session{
		handle:      handle,
		locator:     locator,
		clusterName: clusterName,
		connectedAt: time.Now(),
	})
	return handle
}

// valid reports whether the handle belongs to a live session.
func (r *sessionRegistry) valid(handle uint64) bool {
	_, ok := r.sessions.Load(handle)
	return ok
}

// drop invalidates a handle. It reports whether the handle was live.
func (r *sessionRegistry) drop(handle uint64) bool {
	_, ok := r.sessions.LoadAndDelete(handle)
	return ok
}

// size returns the number of live sessions.
func (r *sessionRegistry) size() int {
	return r.sessions.Size()
}
