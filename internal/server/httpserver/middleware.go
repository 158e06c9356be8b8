package httpserver

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/ncabridge-go/internal/core/domain"
	"github.com/yndnr/ncabridge-go/internal/telemetry/logger"
)

// HeaderRequestID carries the request ID in both directions.
const HeaderRequestID = "X-Request-ID"

// maxRequestIDLength bounds client supplied request IDs.
const maxRequestIDLength = 64

// limiterIdleTTL is how long a client's bucket survives without requests.
const limiterIdleTTL = 10 * time.Minute

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares so that the first one listed runs first.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// HTTPMetrics receives per-request observations.
type HTTPMetrics interface {
	ObserveHTTP(method, route string, status int, elapsed time.Duration)
}

// RequestID tags each request with an ID, taken from X-Request-ID when
// the caller sent a usable one, and stores it with log in the context.
func RequestID(log logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if id == "" || len(id) > maxRequestIDLength {
				id = newRequestID()
			}
			w.Header().Set(HeaderRequestID, id)

			ctx := logger.WithRequestID(logger.WithLogger(r.Context(), log), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newRequestID() string {
	id, err := ulid.New(ulid.Now(), rand.Reader)
	if err != nil {
		return "req-unknown"
	}
	return "req-" + strings.ToLower(id.String())
}

// BearerAuth requires "Authorization: Bearer <token>". The presented token
// is checked against hash when set, otherwise compared with token. With
// neither the check is disabled.
func BearerAuth(token string, hash *domain.TokenHash) Middleware {
	return func(next http.Handler) http.Handler {
		var check func(string) bool
		switch {
		case hash != nil:
			check = (&hashChecker{hash: hash}).check
		case token != "":
			want := []byte(token)
			check = func(got string) bool {
				return subtle.ConstantTimeCompare([]byte(got), want) == 1
			}
		default:
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || got == "" || !check(got) {
				writeMiddlewareError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// hashChecker verifies tokens against an argon2id hash. The SHA-256 of the
// last accepted token is kept so repeat callers skip the argon2 work.
type hashChecker struct {
	hash     *domain.TokenHash
	accepted atomic.Pointer[[sha256.Size]byte]
}

func (c *hashChecker) check(token string) bool {
	sum := sha256.Sum256([]byte(token))
	if last := c.accepted.Load(); last != nil && subtle.ConstantTimeCompare(sum[:], last[:]) == 1 {
		return true
	}
	if !c.hash.Verify(token) {
		return false
	}
	c.accepted.Store(&sum)
	return true
}

type visitor struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// limiterRegistry hands out one token bucket per client IP and forgets
// clients idle for longer than ttl.
type limiterRegistry struct {
	limit rate.Limit
	burst int
	ttl   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

func newLimiterRegistry(limit rate.Limit, burst int) *limiterRegistry {
	return &limiterRegistry{
		limit:    limit,
		burst:    burst,
		ttl:      limiterIdleTTL,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

func (r *limiterRegistry) allow(ip string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Sub(r.lastSweep) >= r.ttl {
		for k, v := range r.visitors {
			if now.Sub(v.lastSeen) >= r.ttl {
				delete(r.visitors, k)
			}
		}
		r.lastSweep = now
	}

	v, ok := r.visitors[ip]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(r.limit, r.burst)}
		r.visitors[ip] = v
	}
	v.lastSeen = now
	return v.lim.AllowN(now, 1)
}

func (r *limiterRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visitors)
}

// RateLimit applies a per-IP token bucket. A non-positive
// requestsPerSecond disables it.
func RateLimit(requestsPerSecond float64, burst int) Middleware {
	return func(next http.Handler) http.Handler {
		if requestsPerSecond <= 0 {
			return next
		}
		return rateLimitWith(newLimiterRegistry(rate.Limit(requestsPerSecond), max(burst, 1)), next)
	}
}

func rateLimitWith(reg *limiterRegistry, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !reg.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			writeMiddlewareError(w, http.StatusTooManyRequests, domain.ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MaxBody caps the request body at n bytes.
func MaxBody(n int64) Middleware {
	return func(next http.Handler) http.Handler {
		if n <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Audit logs one line per request and reports it to m, if set. The
// route label is the matched ServeMux pattern.
func Audit(m HTTPMetrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			elapsed := time.Since(start)
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			if m != nil {
				m.ObserveHTTP(r.Method, route, rec.status, elapsed)
			}

			log := logger.L(r.Context()).With(
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", elapsed.Milliseconds(),
				"client_ip", clientIP(r),
			)
			switch {
			case rec.status >= 500:
				log.Error("request completed with error")
			case rec.status >= 400:
				log.Warn("request completed with client error")
			default:
				log.Info("request completed")
			}
		})
	}
}

// Recover turns a handler panic into a 500 response. http.ErrAbortHandler
// is re-raised so net/http can abort the connection quietly.
func Recover(log logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				log.Error("panic recovered", "panic", v, "method", r.Method, "path", r.URL.Path)
				writeMiddlewareError(w, http.StatusInternalServerError, domain.ErrInternal)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CORS lets browser pages on the listed origins call the bridge. "*"
// allows any origin; the request origin is echoed rather than "*" so that
// the Authorization header stays usable.
func CORS(allowedOrigins []string) Middleware {
	allowAny := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAny = true
		}
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAny || allowed[origin]) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
				h.Set("Access-Control-Expose-Headers", "X-Request-ID, X-Error-Code")
				h.Set("Access-Control-Max-Age", "86400")
				h.Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder remembers the status code sent to the client.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusRecorder) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// writeMiddlewareError answers before the request reaches a handler.
func writeMiddlewareError(w http.ResponseWriter, status int, e *domain.DomainError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", e.Code)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    e.Code,
		"message": e.Message,
	})
}

// clientIP returns the peer address. X-Forwarded-For and X-Real-IP are
// trusted only from loopback peers, where a local reverse proxy sits.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return xri
		}
	}
	return host
}
