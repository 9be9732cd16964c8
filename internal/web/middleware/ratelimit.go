package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/JonMunkholm/ledgerimport/internal/logging"
)

// RateLimitConfig configures a per-client limiter.
type RateLimitConfig struct {
	RequestsPerPeriod int64
	Period            time.Duration // Defaults to one minute
	Store             limiter.Store // Defaults to an in-memory store
	Prefix            string        // Separates counters of different limiters sharing a store
}

// NewMemoryStore returns a process-local limiter store.
func NewMemoryStore() limiter.Store {
	return memory.NewStore()
}

// RateLimit limits requests per client IP. Responses carry X-RateLimit-*
// headers; a client over its budget gets 429 with Retry-After.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.Period <= 0 {
		cfg.Period = time.Minute
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}

	lim := limiter.New(cfg.Store, limiter.Rate{
		Period: cfg.Period,
		Limit:  cfg.RequestsPerPeriod,
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.Prefix + clientIP(r)

			lctx, err := lim.Get(r.Context(), key)
			if err != nil {
				// Fail open.
				logging.FromContext(r.Context()).Error("rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

			if lctx.Reached {
				retry := time.Until(time.Unix(lctx.Reset, 0)).Round(time.Second)
				if retry < time.Second {
					retry = time.Second
				}
				h.Set("Retry-After", strconv.Itoa(int(retry.Seconds())))
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded", "RATE001")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the host part of RemoteAddr, which TrustedRealIP has
// already rewritten for proxied requests.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
