// Package ratelimit throttles clients by IP with a token bucket per client.
package ratelimit

import (
	"math"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration
type Config struct {
	// RequestsPerMinute is both the refill rate and the burst.
	RequestsPerMinute int
	CleanupInterval   time.Duration
	// IdleAfter drops a client's bucket when unused this long.
	IdleAfter time.Duration
	// Methods limits which HTTP methods count against the budget; all when empty.
	Methods []string
}

// DefaultConfig limits writes only; dashboard reads are served from cache.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 10,
		CleanupInterval:   5 * time.Minute,
		IdleAfter:         10 * time.Minute,
		Methods:           []string{http.MethodPost},
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per client IP.
type Limiter struct {
	cfg   Config
	every rate.Limit

	mu      sync.Mutex
	clients map[string]*bucket

	stop     chan struct{}
	stopOnce sync.Once
}

func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.IdleAfter <= 0 {
		cfg.IdleAfter = def.IdleAfter
	}
	l := &Limiter{
		cfg:     cfg,
		every:   rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute)),
		clients: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

func (l *Limiter) bucketFor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.clients[ip]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.every, l.cfg.RequestsPerMinute)}
		l.clients[ip] = b
	}
	b.lastSeen = time.Now()
	return b.limiter
}

// Allow spends one token of the client's budget.
func (l *Limiter) Allow(ip string) bool {
	return l.bucketFor(ip).Allow()
}

// retryAfter is the whole number of seconds until one token refills.
func (l *Limiter) retryAfter() int {
	return int(math.Ceil(60 / float64(l.cfg.RequestsPerMinute)))
}

func (l *Limiter) applies(method string) bool {
	return len(l.cfg.Methods) == 0 || slices.Contains(l.cfg.Methods, method)
}

func (l *Limiter) sweep() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.dropIdle(time.Now().Add(-l.cfg.IdleAfter))
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) dropIdle(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	dropped := 0
	for ip, b := range l.clients {
		if b.lastSeen.Before(cutoff) {
			delete(l.clients, ip)
			dropped++
		}
	}
	return dropped
}

// ActiveClients returns the number of tracked clients
func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Stop ends the idle sweep. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Middleware rejects requests over budget with 429. onLimit, when set, is
// called before the response is written.
func (l *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(*http.Request, string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.applies(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			ip := extractIP(r)
			if !l.Allow(ip) {
				if onLimit != nil {
					onLimit(r, ip)
				}
				w.Header().Set("Retry-After", strconv.Itoa(l.retryAfter()))
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
