package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"imagequeue/internal/clock"
)

// pruneAt is the number of tracked submitters above which expired windows
// are dropped.
const pruneAt = 1024

type submitWindow struct {
	used    int
	resetAt time.Time
}

// SubmissionLimiter caps how many jobs each submitter may enqueue within a
// fixed window. It only bounds intake; the coordinator still runs one job at
// a time regardless of how many are queued.
type SubmissionLimiter struct {
	limit  int
	window time.Duration
	clock  clock.Clock

	mu      sync.Mutex
	windows map[string]*submitWindow
}

func NewSubmissionLimiter(limit int, window time.Duration, clk clock.Clock) *SubmissionLimiter {
	if clk == nil {
		clk = clock.Real{}
	}
	if window <= 0 {
		window = time.Minute
	}
	return &SubmissionLimiter{limit: limit, window: window, clock: clk, windows: make(map[string]*submitWindow)}
}

// Allow records one submission for key. It reports how many remain in the
// current window, or how long until the window resets when none do.
func (l *SubmissionLimiter) Allow(key string) (remaining int, retryAfter time.Duration, ok bool) {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.windows) >= pruneAt {
		for k, w := range l.windows {
			if !now.Before(w.resetAt) {
				delete(l.windows, k)
			}
		}
	}

	w, found := l.windows[key]
	if !found || !now.Before(w.resetAt) {
		w = &submitWindow{resetAt: now.Add(l.window)}
		l.windows[key] = w
	}
	if w.used >= l.limit {
		return 0, w.resetAt.Sub(now), false
	}
	w.used++
	return l.limit - w.used, 0, true
}

// Middleware rejects submissions over the limit with 429 and a Retry-After
// header. A non-positive limit disables it.
func (l *SubmissionLimiter) Middleware(next http.Handler) http.Handler {
	if l.limit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining, retryAfter, ok := l.Allow(submitterKey(r))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			secs := int((retryAfter + time.Second - 1) / time.Second)
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many job submissions; retry after "+strconv.Itoa(secs)+"s")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit allows limit job submissions per client in each window of per.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	return NewSubmissionLimiter(limit, per, nil).Middleware
}

// submitterKey identifies the client: the first valid X-Forwarded-For entry,
// otherwise the remote host.
func submitterKey(r *http.Request) string {
	for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if addr, err := netip.ParseAddr(strings.TrimSpace(part)); err == nil {
			return addr.String()
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
