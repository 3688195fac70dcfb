package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Local is an in-process token bucket per subject, refilled evenly over the hour.
type Local struct {
	mu       sync.Mutex
	perHour  int
	limiters map[string]*rate.Limiter
}

func NewLocal(perHour int) *Local {
	return &Local{perHour: perHour, limiters: map[string]*rate.Limiter{}}
}

func (l *Local) Allow(_ context.Context, subject string, now time.Time) (Decision, error) {
	lim := l.limiter(subject)
	if lim.AllowN(now, 1) {
		return Decision{Allowed: true}, nil
	}
	interval := time.Hour / time.Duration(l.perHour)
	return Decision{Allowed: false, ResetAt: now.Add(interval)}, nil
}

func (l *Local) limiter(subject string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[subject]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Hour/time.Duration(l.perHour)), l.perHour)
		l.limiters[subject] = lim
	}
	return lim
}
