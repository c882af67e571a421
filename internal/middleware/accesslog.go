// internal/middleware/accesslog.go
//
// Structured access log.
//
// Context
// -------
// One INFO line per request with method, path, status, bytes, duration, and
// the left-most client IP from X-Forwarded-For or X-Real-IP (falling back to
// RemoteAddr).  The ops API sits behind the same reverse proxy as the rest
// of the stack, so the proxy headers are the useful source.
//
// Notes
// -----
//   • /metrics scrapes are logged at DEBUG so a 15 s scrape interval does
//     not drown the file log.
//   • Oxford commas, two spaces after periods.

package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// AccessLog logs every request through log.
func AccessLog(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			kv := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"dur", time.Since(start),
				"ip", ClientIP(r),
			}
			if r.URL.Path == "/metrics" {
				log.Debugw("http", kv...)
				return
			}
			log.Infow("http", kv...)
		})
	}
}

// ClientIP extracts the left-most address from X-Forwarded-For or
// X-Real-IP, falling back to r.RemoteAddr ("ip:port").  Returns "" when
// nothing parses.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
				return ip.String()
			}
		}
	}
	if xrip := r.Header.Get("X-Real-Ip"); xrip != "" {
		if ip := net.ParseIP(strings.TrimSpace(xrip)); ip != nil {
			return ip.String()
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip.String()
		}
	}
	return ""
}
