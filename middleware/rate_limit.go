package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chaos-io/rmbg/util"
)

// 超过 limiterIdle 没有请求的 IP 在下一次清扫时移除
const (
	limiterIdle = 10 * time.Minute
	sweepEvery  = time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	bucket    map[string]*visitor
	rate      rate.Limit
	burstSize int
	lastSweep time.Time
	now       func() time.Time
	mutex     sync.Mutex
}

func newRateLimiter(reqRate rate.Limit, burstSize int) *rateLimiter {
	return &rateLimiter{
		bucket:    make(map[string]*visitor),
		rate:      reqRate,
		burstSize: burstSize,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (r *rateLimiter) limiterFor(ip string) *rate.Limiter {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := r.now()
	if now.Sub(r.lastSweep) >= sweepEvery {
		r.sweep(now)
	}

	v, ok := r.bucket[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(r.rate, r.burstSize)}
		r.bucket[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// sweep 调用方持有锁
func (r *rateLimiter) sweep(now time.Time) int {
	removed := 0
	for ip, v := range r.bucket {
		if now.Sub(v.lastSeen) > limiterIdle {
			delete(r.bucket, ip)
			removed++
		}
	}
	r.lastSweep = now
	if removed > 0 {
		util.Logger.Debug("evict idle rate limiters", zap.Int("removed", removed), zap.Int("remaining", len(r.bucket)))
	}
	return removed
}

// RateLimit 每个 IP 一个令牌桶，perSecond <= 0 时不限流
func RateLimit(perSecond float64, burst int) gin.HandlerFunc {
	if perSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = 1
	}

	limiter := newRateLimiter(rate.Limit(perSecond), burst)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiter.limiterFor(ip).Allow() {
			util.Logger.Warn("too many requests", zap.String("ip", ip))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
