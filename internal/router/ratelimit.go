package router

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mliell/crowdmint/internal/config"
	"github.com/mliell/crowdmint/internal/handler"
	"golang.org/x/time/rate"
)

const visitorIdleTTL = 5 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 按客户端 IP 的令牌桶限流
type RateLimiter struct {
	limit     rate.Limit
	burst     int
	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
	clockNow  func() time.Time
}

// NewRateLimiter 创建限流器；RequestsPerMinute 不大于 0 时返回 nil
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerMinute <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:    rate.Limit(cfg.RequestsPerMinute / 60.0),
		burst:    burst,
		visitors: make(map[string]*visitor),
		clockNow: time.Now,
	}
}

// Middleware gin 中间件，超限返回 429
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if r == nil {
			c.Next()
			return
		}
		if !r.obtainLimiter(c.ClientIP()).Allow() {
			handler.ErrorResponse(c, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
			return
		}
		c.Next()
	}
}

func (r *RateLimiter) obtainLimiter(id string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clockNow()
	if now.Sub(r.lastSweep) > visitorIdleTTL {
		for key, v := range r.visitors {
			if now.Sub(v.lastSeen) > visitorIdleTTL {
				delete(r.visitors, key)
			}
		}
		r.lastSweep = now
	}

	v, ok := r.visitors[id]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.visitors[id] = v
	}
	v.lastSeen = now
	return v.limiter
}
