package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	clientSweepInterval = 5 * time.Minute
	clientIdleExpiry    = 10 * time.Minute
)

// clientBuckets holds one token bucket per client IP. Buckets idle past
// clientIdleExpiry are swept so the map stays bounded.
type clientBuckets struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	limit   rate.Limit
	burst   int
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientBuckets(limit rate.Limit, burst int) *clientBuckets {
	cb := &clientBuckets{
		buckets: make(map[string]*clientBucket),
		limit:   limit,
		burst:   burst,
	}
	go cb.sweep()
	return cb
}

func (cb *clientBuckets) bucket(ip string) *rate.Limiter {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	b, ok := cb.buckets[ip]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(cb.limit, cb.burst)}
		cb.buckets[ip] = b
	}
	b.lastSeen = time.Now()
	return b.limiter
}

func (cb *clientBuckets) sweep() {
	ticker := time.NewTicker(clientSweepInterval)
	defer ticker.Stop()

	for range ticker.C {
		cb.mu.Lock()
		for ip, b := range cb.buckets {
			if time.Since(b.lastSeen) > clientIdleExpiry {
				delete(cb.buckets, ip)
			}
		}
		cb.mu.Unlock()
	}
}

// RateLimit caps requests per client IP. limit is the sustained rate,
// burst the number of requests allowed before throttling kicks in. Used on
// the credential endpoints, e.g. RateLimit(rate.Every(time.Second), 5).
func RateLimit(limit rate.Limit, burst int) func(http.Handler) http.Handler {
	cb := newClientBuckets(limit, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cb.bucket(clientIP(r)).Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "Too many requests. Please try again later.",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop, the original client when
// the service sits behind a proxy.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	return r.RemoteAddr
}
