// Package admission decides whether a request proceeds at all: it holds the
// per-caller rate-limit state and the shared-secret API key check that
// together form the admission gate in front of every upload and delete.
//
// Rate-limit state is injected, never process-global, so tests get isolated
// limiters and the implementation can later be swapped for a shared external
// store without touching handlers.
package admission

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Limiter admits or refuses requests per caller identity. Implementations
// must be safe for concurrent use.
type Limiter interface {
	// Allow records one attempt for the identity and reports whether the
	// request is admitted. Refused attempts are recorded too: a caller
	// hammering the gate keeps its window full.
	Allow(identity string) bool

	// Reset discards all recorded attempts for the identity.
	Reset(identity string)
}

// SlidingWindow is an approximate sliding-window Limiter: it keeps one
// timestamp per attempt per identity and prunes entries older than the
// window on every check. The count may briefly overcount around window
// edges; exactness is not required, only a bounded overcount.
type SlidingWindow struct {
	window time.Duration
	max    int
	now    func() time.Time

	mu      sync.Mutex
	windows map[string][]time.Time
}

// NewSlidingWindow creates a SlidingWindow limiter admitting up to max
// attempts per identity within the trailing window.
func NewSlidingWindow(window time.Duration, max int) *SlidingWindow {
	return &SlidingWindow{
		window:  window,
		max:     max,
		now:     time.Now,
		windows: make(map[string][]time.Time),
	}
}

// NewSlidingWindowWithClock creates a SlidingWindow with an injected clock.
// Used by tests to step time without sleeping.
func NewSlidingWindowWithClock(window time.Duration, max int, now func() time.Time) *SlidingWindow {
	l := NewSlidingWindow(window, max)
	l.now = now
	return l
}

// Allow implements Limiter.
func (l *SlidingWindow) Allow(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recorded := l.windows[identity]
	kept := recorded[:0]
	for _, ts := range recorded {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	admitted := len(kept) < l.max
	kept = append(kept, now)
	l.windows[identity] = kept

	return admitted
}

// Reset implements Limiter.
func (l *SlidingWindow) Reset(identity string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, identity)
}

// ClientIdentity extracts the caller identity from a request: the first
// X-Forwarded-For hop when present (the service normally sits behind a
// reverse proxy), otherwise the remote address host.
func ClientIdentity(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
