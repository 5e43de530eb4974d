package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Config sets the token bucket shared by every host
type Config struct {
	RPS   float64 `yaml:"rps" json:"rps" default:"1" validate:"gt=0"`
	Burst int     `yaml:"burst" json:"burst" default:"2" validate:"gte=1"`
}

// Limiter provides per-host rate limiting using token bucket algorithm
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	config   Config
}

// NewLimiter creates a new rate limiter with the specified RPS and burst capacity
func NewLimiter(config Config) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		config:   config,
	}
}

// getLimiter returns or creates a rate limiter for the specified host
func (l *Limiter) getLimiter(host string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[host]
	l.mu.RUnlock()
	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[host]; exists {
		return limiter
	}
	limiter = rate.NewLimiter(rate.Limit(l.config.RPS), l.config.Burst)
	l.limiters[host] = limiter
	return limiter
}

// Allow returns true if a request for the specified host is allowed now
func (l *Limiter) Allow(host string) bool {
	return l.getLimiter(host).Allow()
}

// Wait blocks until a request for the specified host is allowed or context is cancelled
func (l *Limiter) Wait(ctx context.Context, host string) error {
	return l.getLimiter(host).Wait(ctx)
}
