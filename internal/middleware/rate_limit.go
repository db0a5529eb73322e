package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/advisr/advisr-backend/internal/app/models/dto"
)

const limiterIdleTTL = 10 * time.Minute

type studentLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// StudentRateLimiter keeps a token bucket per authenticated student
type StudentRateLimiter struct {
	mu        sync.Mutex
	limiters  map[int64]*studentLimiter
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// NewStudentRateLimiter allows requestsPerMinute on average with the given burst.
// A non-positive requestsPerMinute disables limiting.
func NewStudentRateLimiter(requestsPerMinute, burst int) *StudentRateLimiter {
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(requestsPerMinute))
	}
	if burst < 1 {
		burst = 1
	}
	return &StudentRateLimiter{
		limiters: make(map[int64]*studentLimiter),
		limit:    limit,
		burst:    burst,
		now:      time.Now,
	}
}

// Allow reports whether the student may make another request now
func (l *StudentRateLimiter) Allow(studentID int64) bool {
	if l.limit == rate.Inf {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	entry, ok := l.limiters[studentID]
	if !ok {
		entry = &studentLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[studentID] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// sweep drops limiters of students idle for a while; caller holds mu
func (l *StudentRateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < limiterIdleTTL {
		return
	}
	for id, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.limiters, id)
		}
	}
	l.lastSweep = now
}

// retryAfterSeconds is the time one token takes to refill, rounded up
func (l *StudentRateLimiter) retryAfterSeconds() int {
	if l.limit == rate.Inf || l.limit <= 0 {
		return 1
	}
	return int(math.Ceil(1/float64(l.limit) - 1e-9))
}

// Middleware rejects requests over the limit with 429. It must run after JWTAuth.
func (l *StudentRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		value, ok := c.Get(ContextKeyStudentID)
		studentID, isID := value.(int64)
		if !ok || !isID {
			c.Next()
			return
		}

		if !l.Allow(studentID) {
			c.Header("Retry-After", strconv.Itoa(l.retryAfterSeconds()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.APIResponse{
				Error: dto.NewErrorDetail(dto.ErrorCodeTooManyRequests, "Too many chat requests, slow down").
					WithSeverity(dto.ErrorSeverityWarning),
			})
			return
		}

		c.Next()
	}
}
