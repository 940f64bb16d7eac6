package httpx

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

const rateLimiterSweepInterval = 5 * time.Minute

// RateLimiter counts requests per key within fixed windows.
type RateLimiter interface {
	Allow(key string, limit int, window time.Duration) rateDecision
	Close()
}

type rateDecision struct {
	allowed   bool
	count     int
	windowEnd time.Time
}

type memoryRateLimiter struct {
	mu      sync.Mutex
	entries map[string]rateState
	stopCh  chan struct{}
	once    sync.Once
}

type rateState struct {
	count     int
	windowEnd time.Time
}

// NewMemoryRateLimiter returns a process-local limiter.
func NewMemoryRateLimiter() RateLimiter {
	rl := &memoryRateLimiter{
		entries: make(map[string]rateState),
		stopCh:  make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

func (rl *memoryRateLimiter) Allow(key string, limit int, window time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, ok := rl.entries[key]
	if !ok || now.After(state.windowEnd) {
		state = rateState{count: 1, windowEnd: now.Add(window)}
		rl.entries[key] = state
		return rateDecision{allowed: true, count: state.count, windowEnd: state.windowEnd}
	}
	if state.count >= limit {
		return rateDecision{allowed: false, count: state.count, windowEnd: state.windowEnd}
	}
	state.count++
	rl.entries[key] = state
	return rateDecision{allowed: true, count: state.count, windowEnd: state.windowEnd}
}

func (rl *memoryRateLimiter) sweepLoop() {
	ticker := time.NewTicker(rateLimiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *memoryRateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, state := range rl.entries {
		if now.After(state.windowEnd) {
			delete(rl.entries, key)
		}
	}
}

func (rl *memoryRateLimiter) Close() {
	rl.once.Do(func() {
		close(rl.stopCh)
	})
}

// rateKeyFunc names the bucket a request is counted in: a scope such as
// "user" or "project", and the identity within it.
type rateKeyFunc func(*http.Request) (scope, id string)

// withRateLimit counts requests per route and identity, so a burst on one
// route never starves another.
func (r *Router) withRateLimit(route string, limit int, window time.Duration, keyFn rateKeyFunc, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if limit <= 0 || r.limiter == nil {
			next(w, req)
			return
		}
		scope, id := keyFn(req)
		if id == "" {
			scope, id = rateLimitKeyIP(req)
		}
		decision := r.limiter.Allow(rateBucket(route, scope, id), limit, window)
		r.applyRateHeaders(w, limit, decision)
		if !decision.allowed {
			r.recordRateLimitHit(route, scope)
			r.logger.Warn("rate limit exceeded", "route", route, "scope", scope, "id", id)
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, req)
	}
}

func (r *Router) handlerAuthRate(route string, limit int, window time.Duration, keyFn rateKeyFunc, next http.HandlerFunc) http.HandlerFunc {
	return r.requireAuth(r.withRateLimit(route, limit, window, keyFn, next))
}

func rateBucket(route, scope, id string) string {
	return route + "|" + scope + ":" + id
}

func rateLimitKeyUser(req *http.Request) (string, string) {
	if info, ok := authInfoFromContext(req.Context()); ok && info.Username != "" {
		return "user", info.Username
	}
	return "", ""
}

// rateLimitKeyProject buckets by the storage key a route acts on, resolved
// against the caller so one user cannot drain another's project budget.
func rateLimitKeyProject(req *http.Request) (string, string) {
	info, ok := authInfoFromContext(req.Context())
	if !ok || info.Username == "" {
		return "", ""
	}
	if id := strings.TrimSpace(req.PathValue("id")); id != "" {
		return "project", info.Username + "/" + id
	}
	if name := strings.TrimSpace(req.PathValue("name")); name != "" {
		return "project", info.Username + "/" + info.projectKey(name)
	}
	return "user", info.Username
}

func rateLimitKeyIP(req *http.Request) (string, string) {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	if host == "" {
		host = "unknown"
	}
	return "ip", host
}

// rateMetricKey reduces a bucket to its scope, keeping identities out of logs
// and metric labels.
func rateMetricKey(bucket string) string {
	if _, rest, ok := strings.Cut(bucket, "|"); ok {
		bucket = rest
	}
	if bucket == "" {
		return "unknown"
	}
	if idx := strings.IndexRune(bucket, ':'); idx > 0 {
		return bucket[:idx]
	}
	return bucket
}
