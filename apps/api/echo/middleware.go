package echoapi

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/trezcool/mahudhurio/core"
)

// peerAddr returns the socket peer's host, stripped of its port. Forwarded-for
// headers are deliberately ignored: device dedup and the host-only guard key
// on the address the transport actually saw.
func peerAddr(ctx echo.Context) string {
	addr := ctx.Request().RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// hostOnlyMiddleware only lets requests from the machine running the dashboard
// through; students on the LAN get 403. Attempts are logged with the peer.
func hostOnlyMiddleware(logger core.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			host := peerAddr(ctx)
			if isLoopback(host) {
				return next(ctx)
			}
			logger.Warn(fmt.Sprintf("forbidden access attempt to host-only route %s from %s",
				ctx.Request().RequestURI, host))
			return errHttpForbidden
		}
	}
}

// rateLimiterSweepWindow is how long a peer may be idle before its limiter is
// dropped; sweeps piggyback on requests so the map stays bounded without a
// janitor goroutine.
const rateLimiterSweepWindow = time.Minute

// rateLimiter throttles requests per peer address.
type rateLimiter struct {
	limit rate.Limit
	burst int

	mu        sync.Mutex
	peers     map[string]*peerLimiter
	lastSweep time.Time
}

type peerLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiter(conf core.RateLimitConfig) *rateLimiter {
	burst := conf.Burst
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{
		limit: rate.Limit(float64(conf.RequestsPerMinute) / 60),
		burst: burst,
		peers: make(map[string]*peerLimiter),
	}
}

func (rl *rateLimiter) allow(host string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) > rateLimiterSweepWindow {
		for peer, pl := range rl.peers {
			if now.Sub(pl.lastSeen) > rateLimiterSweepWindow {
				delete(rl.peers, peer)
			}
		}
		rl.lastSweep = now
	}

	pl, ok := rl.peers[host]
	if !ok {
		pl = &peerLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.peers[host] = pl
	}
	pl.lastSeen = now
	return pl.limiter.Allow()
}

func (rl *rateLimiter) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if !rl.allow(peerAddr(ctx), time.Now()) {
				return errHttpTooManyRequests
			}
			return next(ctx)
		}
	}
}
