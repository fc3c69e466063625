package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Clients idle for longer than clientIdleTTL lose their bucket on the next
// sweep.
const (
	clientSweepInterval = 5 * time.Minute
	clientIdleTTL       = 10 * time.Minute
)

type clientBucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
}

// clientLimiters holds one token bucket per client IP. A client may burst
// a full minute of requests and then refills at the per-minute rate.
type clientLimiters struct {
	mu      sync.Mutex
	clients map[string]*clientBucket
	every   rate.Limit
	burst   int
	now     func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

func newClientLimiters(requestsPerMinute int) *clientLimiters {
	cl := &clientLimiters{
		clients: make(map[string]*clientBucket),
		every:   rate.Every(time.Minute / time.Duration(requestsPerMinute)),
		burst:   requestsPerMinute,
		now:     time.Now,
		done:    make(chan struct{}),
	}

	go cl.sweepLoop()

	return cl
}

// allow takes a token for ip. When none is left it returns how long the
// client has to wait for the next one.
func (cl *clientLimiters) allow(ip string) (bool, time.Duration) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	now := cl.now()

	b, ok := cl.clients[ip]
	if !ok {
		b = &clientBucket{tokens: rate.NewLimiter(cl.every, cl.burst)}
		cl.clients[ip] = b
	}

	b.lastSeen = now

	r := b.tokens.ReserveN(now, 1)
	if wait := r.DelayFrom(now); wait > 0 {
		r.CancelAt(now)

		return false, wait
	}

	return true, 0
}

// sweep drops buckets of clients not seen since clientIdleTTL and returns
// how many remain.
func (cl *clientLimiters) sweep() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	cutoff := cl.now().Add(-clientIdleTTL)

	for ip, b := range cl.clients {
		if b.lastSeen.Before(cutoff) {
			delete(cl.clients, ip)
		}
	}

	return len(cl.clients)
}

func (cl *clientLimiters) sweepLoop() {
	ticker := time.NewTicker(clientSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cl.sweep()
		case <-cl.done:
			return
		}
	}
}

func (cl *clientLimiters) stop() {
	cl.stopOnce.Do(func() { close(cl.done) })
}

// rateLimit rejects clients over their budget with 429 and a Retry-After
// header in whole seconds.
func (s *server) rateLimit(limiters *clientLimiters) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := extractIP(r)

			ok, wait := limiters.allow(ip)
			if !ok {
				s.metrics.rateLimited.Inc()
				s.log.WithField("client", ip).Debug("Request rate limited")

				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeJSON(w, http.StatusTooManyRequests, errorResponse{"rate limit exceeded"})

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractIP returns the client's IP address, preferring the first
// X-Forwarded-For entry.
func extractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")

		return strings.TrimSpace(first)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return ip
}
