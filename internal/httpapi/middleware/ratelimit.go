package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/suPer8Hu/ai-chat-backend/internal/common"
)

// RateLimit allows each client IP perSecond requests with the given burst.
// perSecond <= 0 disables limiting.
func RateLimit(perSecond float64, burst int) gin.HandlerFunc {
	if perSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst <= 0 {
		burst = 1
	}
	l := &clientLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clients: map[string]*visitor{},
		now:     time.Now,
	}
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			common.Fail(c, http.StatusTooManyRequests, 42900, "too many requests")
			return
		}
		c.Next()
	}
}

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

type clientLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*visitor
	now     func() time.Time
	swept   time.Time
}

const idleTTL = 10 * time.Minute

func (l *clientLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.swept) > idleTTL {
		for k, v := range l.clients {
			if now.Sub(v.seen) > idleTTL {
				delete(l.clients, k)
			}
		}
		l.swept = now
	}

	v, ok := l.clients[key]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = v
	}
	v.seen = now
	return v.lim.AllowN(now, 1)
}
