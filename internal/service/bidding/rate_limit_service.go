package bidding

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// submissionLimiter keeps one token bucket per printer
type submissionLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[uuid.UUID]*rate.Limiter
}

// NewSubmissionLimiter allows perMinute submissions per printer with the
// given burst. A non-positive rate returns nil, which disables limiting.
func NewSubmissionLimiter(perMinute float64, burst int) RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &submissionLimiter{
		limit:    rate.Limit(perMinute / time.Minute.Seconds()),
		burst:    burst,
		limiters: make(map[uuid.UUID]*rate.Limiter),
	}
}

func (l *submissionLimiter) Allow(printerID uuid.UUID) bool {
	l.mu.Lock()
	lim, ok := l.limiters[printerID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[printerID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
