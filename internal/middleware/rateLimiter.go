package middleware

import (
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket refilled evenly over a minute.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRatelimiter allows perMinute events per minute with bursts of up to
// perMinute.
func NewRatelimiter(perMinute int) *RateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}
}

func (l *RateLimiter) Allow() bool {
	return l.limiter.Allow()
}

func (l *RateLimiter) AllowAt(t time.Time) bool {
	return l.limiter.AllowN(t, 1)
}
