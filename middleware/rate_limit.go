package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	clientIdleTTL = 3 * time.Minute
	sweepInterval = time.Minute
)

// clientLimiter is one client's token bucket plus its last activity time
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out per-client token buckets and evicts buckets that
// have been idle longer than the TTL so the map cannot grow unbounded.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	rate      rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		rate:    rate.Limit(perSecond),
		burst:   burst,
		idleTTL: clientIdleTTL,
	}
}

// Allow reports whether the client may proceed, creating its bucket on
// first sight
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastSweep) >= sweepInterval {
		rl.sweep(now)
	}

	cl, ok := rl.clients[client]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[client] = cl
	}
	cl.lastSeen = now

	return cl.limiter.Allow()
}

// sweep drops idle buckets. Caller holds the lock.
func (rl *RateLimiter) sweep(now time.Time) {
	for client, cl := range rl.clients {
		if now.Sub(cl.lastSeen) > rl.idleTTL {
			delete(rl.clients, client)
		}
	}
	rl.lastSweep = now
}

// RateLimit limits each client IP to perSecond requests with a burst
// allowance
func RateLimit(perSecond float64, burst int) gin.HandlerFunc {
	limiter := NewRateLimiter(perSecond, burst)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !limiter.Allow(clientIP) {
			slog.Warn("rate limit exceeded",
				"client_ip", clientIP,
				"request_id", GetRequestID(c),
			)

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"kind":    "transient",
					"message": "rate limit exceeded, retry later",
				},
			})
			return
		}

		c.Next()
	}
}
