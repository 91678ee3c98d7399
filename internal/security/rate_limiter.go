// Package security provides request protection for the HTTP surface.
package security

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mailsift/mailsift/internal/config"
)

// RateLimiter enforces a per-client token bucket. Clients are keyed by IP;
// idle buckets are reaped in the background.
type RateLimiter struct {
	cfg     config.RateLimitConfig
	logger  *zap.Logger
	mu      sync.Mutex
	clients map[string]*clientLimiter
	stop    chan struct{}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter and starts the cleanup loop.
func NewRateLimiter(cfg config.RateLimitConfig, logger *zap.Logger) *RateLimiter {
	rl := &RateLimiter{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[string]*clientLimiter),
		stop:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow reports whether the client may proceed. When limiting is disabled
// every request passes.
func (rl *RateLimiter) Allow(clientIP string) bool {
	if !rl.cfg.Enabled {
		return true
	}

	rl.mu.Lock()
	cl, ok := rl.clients[clientIP]
	if !ok {
		cl = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(rl.cfg.RPS), rl.cfg.Burst),
		}
		rl.clients[clientIP] = cl
	}
	cl.lastSeen = time.Now()
	rl.mu.Unlock()

	allowed := cl.limiter.Allow()
	if !allowed {
		rl.logger.Warn("Rate limit exceeded", zap.String("client_ip", clientIP))
	}
	return allowed
}

// cleanupLoop drops buckets idle for more than three minutes.
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-3 * time.Minute)
			rl.mu.Lock()
			for ip, cl := range rl.clients {
				if cl.lastSeen.Before(cutoff) {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// ActiveClients returns the number of tracked client buckets.
func (rl *RateLimiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Stop terminates the cleanup loop.
func (rl *RateLimiter) Stop() {
	close(rl.stop)
}
