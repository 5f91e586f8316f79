package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdle = 10 * time.Minute

// limiter allows n requests per window to every client address.
type limiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

type client struct {
	lim  *rate.Limiter
	seen time.Time
}

func newLimiter(n int, window time.Duration) *limiter {
	if n <= 0 {
		n = 1
	}

	return &limiter{
		clients: make(map[string]*client),
		limit:   rate.Every(window / time.Duration(n)),
		burst:   n,
		now:     time.Now,
	}
}

func (l *limiter) Allow(addr string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[addr]
	if !ok {
		l.evict(now)
		c = &client{lim: rate.NewLimiter(l.limit, l.burst)}
		l.clients[addr] = c
	}
	c.seen = now

	return c.lim.AllowN(now, 1)
}

func (l *limiter) evict(now time.Time) {
	for addr, c := range l.clients {
		if now.Sub(c.seen) > limiterIdle {
			delete(l.clients, addr)
		}
	}
}
