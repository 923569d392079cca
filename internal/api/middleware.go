package api

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/org/feedbackvault/internal/auth"
	"github.com/org/feedbackvault/internal/policy"
	"github.com/org/feedbackvault/pkg/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// requestIDMiddleware attaches a UUID request ID to each request.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		ctx := withRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authMiddleware runs the authorizer against "METHOD/path" and enforces the returned
// policy. Preflight requests pass through unauthenticated.
func authMiddleware(authz auth.Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			resource := policy.Resource(r.Method, r.URL.Path)
			ident, err := authz.Authorize(r.Context(), r.Header.Get("Authorization"), resource)
			if err != nil {
				if !errors.Is(err, auth.ErrMissingCredential) && !errors.Is(err, auth.ErrUnauthorized) {
					log.Error().Err(err).Str("resource", resource).Msg("authorizer failed")
				}
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if !policy.IsAllowed(ident.Policy, models.ActionInvoke, resource) {
				log.Debug().Str("principal", ident.PrincipalID).Str("resource", resource).Msg("policy denied call")
				writeError(w, http.StatusForbidden, "Forbidden")
				return
			}
			ctx := withIdentity(r.Context(), ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rr *responseRecorder) WriteHeader(code int) {
	rr.statusCode = code
	rr.ResponseWriter.WriteHeader(code)
}

// auditMiddleware records every request and its response code. The identity is
// read back after the handler chain has run, since auth sits further in.
func auditMiddleware(auditor AuditLogger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rr := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			holder := &identityHolder{}
			next.ServeHTTP(rr, r.WithContext(withIdentityHolder(r.Context(), holder)))

			principal := ""
			if holder.ident != nil {
				principal = holder.ident.PrincipalID
			}
			auditor.LogRequest(r.Context(), &models.AuditEntry{
				RequestID:      requestIDFromCtx(r.Context()),
				PrincipalID:    principal,
				Operation:      r.Method,
				Path:           r.URL.Path,
				FeedbackID:     r.URL.Query().Get("id"),
				Status:         http.StatusText(rr.statusCode),
				ResponseCode:   rr.statusCode,
				ResponseTimeMs: time.Since(start).Milliseconds(),
				ClientIP:       clientIP(r, trustProxy),
				UserAgent:      r.UserAgent(),
			})
		})
	}
}

// limiterIdleTTL is how long a client's bucket survives without requests.
const limiterIdleTTL = 3 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client IP. Idle buckets are swept at most
// once per limiterIdleTTL, so the map tracks only recently active clients.
type rateLimiter struct {
	mu         sync.Mutex
	visitors   map[string]*visitor
	rps        rate.Limit
	burst      int
	trustProxy bool
	lastSweep  time.Time
	now        func() time.Time
}

func newRateLimiter(rps float64, burst int, trustProxy bool) *rateLimiter {
	return &rateLimiter{
		visitors:   make(map[string]*visitor),
		rps:        rate.Limit(rps),
		burst:      burst,
		trustProxy: trustProxy,
		lastSweep:  time.Now(),
		now:        time.Now,
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	now := rl.now()
	if now.Sub(rl.lastSweep) >= limiterIdleTTL {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= limiterIdleTTL {
				delete(rl.visitors, k)
			}
		}
		rl.lastSweep = now
	}
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	rl.mu.Unlock()
	return v.limiter.AllowN(now, 1)
}

func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r, rl.trustProxy)
		if !rl.allow(ip) {
			log.Warn().Str("ip", ip).Msg("rate limit exceeded")
			writeError(w, http.StatusTooManyRequests, "Too Many Requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the caller address. X-Forwarded-For is client-controlled, so it
// is only honoured when a trusted proxy sets it.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			return strings.TrimSpace(first)
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
