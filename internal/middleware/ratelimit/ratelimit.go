package ratelimit

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kb-advisor/backend/pkg/logger"
)

type Config struct {
	RequestsPerMinute int
	BucketIdleExpiry  time.Duration
}

type clientBucket struct {
	mu       sync.Mutex
	tokens   float64
	lastSeen time.Time
}

// Limiter throttles per client IP with a refilling token bucket.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	limit   float64
	expiry  time.Duration
	stop    chan struct{}
}

func New(cfg Config) *Limiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 120
	}
	if cfg.BucketIdleExpiry <= 0 {
		cfg.BucketIdleExpiry = 10 * time.Minute
	}

	l := &Limiter{
		buckets: make(map[string]*clientBucket),
		limit:   float64(cfg.RequestsPerMinute),
		expiry:  cfg.BucketIdleExpiry,
		stop:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

func (l *Limiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !l.allow(c.IP()) {
			logger.Warn("Rate limit exceeded",
				zap.String("ip", c.IP()),
				zap.String("path", c.Path()),
			)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded. Please try again later.",
			})
		}
		return c.Next()
	}
}

func (l *Limiter) allow(ip string) bool {
	l.mu.Lock()
	b, ok := l.buckets[ip]
	if !ok {
		b = &clientBucket{tokens: l.limit, lastSeen: time.Now()}
		l.buckets[ip] = b
	}
	l.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	refill := now.Sub(b.lastSeen).Minutes() * l.limit
	b.tokens = minFloat(l.limit, b.tokens+refill)
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *Limiter) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			now := time.Now()
			l.mu.Lock()
			for ip, b := range l.buckets {
				b.mu.Lock()
				idle := now.Sub(b.lastSeen) > l.expiry
				b.mu.Unlock()
				if idle {
					delete(l.buckets, ip)
				}
			}
			l.mu.Unlock()
		}
	}
}

func (l *Limiter) Stop() {
	close(l.stop)
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
