package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter is a fixed-window request counter per client IP.
type RateLimiter struct {
	rate   int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*window
}

type window struct {
	remaining int
	start     time.Time
}

// NewRateLimiter allows rate requests per window and client.
func NewRateLimiter(rate int, per time.Duration) *RateLimiter {
	return &RateLimiter{
		rate:    rate,
		window:  per,
		now:     time.Now,
		clients: make(map[string]*window),
	}
}

// Allow consumes one request for ip.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.clients[ip]
	if !ok || now.Sub(w.start) >= rl.window {
		rl.clients[ip] = &window{remaining: rl.rate - 1, start: now}
		return true
	}
	if w.remaining <= 0 {
		return false
	}
	w.remaining--
	return true
}

// Cleanup drops idle clients every window until ctx ends.
func (rl *RateLimiter) Cleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for ip, w := range rl.clients {
		if now.Sub(w.start) > 2*rl.window {
			delete(rl.clients, ip)
		}
	}
}

// Middleware answers 429 with Retry-After once a client is over its budget.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		if !rl.Allow(ip) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded","message":"rate limit exceeded","code":"RATE001"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
