package statusapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter returns a Gin middleware that enforces per-IP token-bucket
// rate limiting. Entries idle for more than ten minutes are evicted lazily
// on the next request.
func RateLimiter(rps, burst int) gin.HandlerFunc {
	var (
		mu        sync.Mutex
		limiters  = make(map[string]*ipLimiter)
		lastSweep = time.Now()
	)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		if now.Sub(lastSweep) > 5*time.Minute {
			for k, l := range limiters {
				if now.Sub(l.lastSeen) > 10*time.Minute {
					delete(limiters, k)
				}
			}
			lastSweep = now
		}
		l, ok := limiters[ip]
		if !ok {
			l = &ipLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
			limiters[ip] = l
		}
		l.lastSeen = now
		mu.Unlock()

		if !l.limiter.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
