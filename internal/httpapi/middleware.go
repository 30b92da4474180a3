package httpapi

import (
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"sentra.org/internal/audit"
	"sentra.org/internal/obs"
	"sentra.org/internal/ratelimit"
)

// Middleware wraps an http.Handler with additional behavior. Every
// middleware either calls next exactly once or short-circuits with its own
// response, never both.
type Middleware func(http.Handler) http.Handler

// Chain composes middleware. The first in the list is the outermost: it runs
// first on the way in and last on the way out.
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Recover converts panics below it into logged 500s with no internal detail
// in the body.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				obs.LogJSON(map[string]any{
					"ts":         time.Now().UTC().Format(time.RFC3339Nano),
					"level":      "error",
					"msg":        "panic recovered",
					"request_id": requestIDFrom(r),
					"method":     r.Method,
					"path":       r.URL.Path,
					"panic":      toString(rec),
					"stack":      string(debug.Stack()),
				})
				writeError(w, r, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// SecurityHeaders applies response hardening headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "0")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// RequestID assigns each request an identifier, echoed in the X-Request-ID
// header and carried in the context for logs and error bodies.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", rid)
		r = r.WithContext(audit.WithRequestID(r.Context(), rid))
		// Mirror onto the request so layers below can echo it without
		// threading the context through every helper.
		r.Header.Set("X-Request-ID", rid)
		next.ServeHTTP(w, r)
	})
}

// Timing records wall-clock duration, sets X-Process-Time (seconds) and
// emits one structured log line per request.
func Timing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: 200}
		start := time.Now()

		// The header must be written before the handler commits the
		// response, so the measured value excludes only the final copy.
		tw := &timingWriter{statusWriter: sw, start: start}
		next.ServeHTTP(tw, r)
		if !tw.wroteHeader {
			tw.setProcessTime()
		}

		duration := time.Since(start)
		obs.LogJSON(map[string]any{
			"ts":          time.Now().UTC().Format(time.RFC3339Nano),
			"level":       "info",
			"msg":         "request_complete",
			"request_id":  requestIDFrom(r),
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      sw.code,
			"duration_ms": float64(duration.Microseconds()) / 1000.0,
			"client_ip":   clientIP(r),
		})
	})
}

type timingWriter struct {
	*statusWriter
	start       time.Time
	wroteHeader bool
}

func (w *timingWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.setProcessTime()
		w.wroteHeader = true
	}
	w.statusWriter.WriteHeader(code)
}

func (w *timingWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.statusWriter.Write(b)
}

func (w *timingWriter) setProcessTime() {
	w.Header().Set("X-Process-Time", strconv.FormatFloat(time.Since(w.start).Seconds(), 'f', 6, 64))
}

// RateLimit enforces the per-client sliding window. The X-RateLimit-*
// headers are set on every response; rejections add Retry-After and a 429
// body without consuming budget.
func RateLimit(limiter *ratelimit.Limiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := limiter.Check(clientIP(r))

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

			if !decision.Allowed {
				retry := int(decision.RetryAfter.Seconds()) + 1
				h.Set("Retry-After", strconv.Itoa(retry))
				obs.ObserveRateLimitReject()
				writeReason(w, r, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestIDFrom(r *http.Request) string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.Header.Get("X-Request-ID"))
}

func clientIP(r *http.Request) string {
	// X-Forwarded-For support (first hop).
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if r.RemoteAddr == "" {
			return "unknown"
		}
		return r.RemoteAddr
	}
	return host
}

func toString(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return "unknown panic"
}
