// internal/middleware/security.go
//
// Security-header middleware for the ops API.
//
// Injects headers on every response:
//
//   • X-Content-Type-Options  –  MIME-sniffing defence
//   • X-Frame-Options         –  click-jacking defence
//   • Cache-Control           –  verdicts and run lists are never cached by
//                                intermediaries
//   • Referrer-Policy         –  drops path/query from Referer
//
// Notes
// -----
// • Headers are set *before* next.ServeHTTP; once a handler writes, the
//   header map is frozen.  Handlers may still overwrite any of them.
// • Oxford commas, two spaces after periods.

package middleware

import "net/http"

// Security sets security headers for every response.
func Security(next http.Handler) http.Handler {
	const (
		nosn  = "nosniff"
		xfo   = "DENY"
		cache = "no-store"
		refer = "no-referrer"
	)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", nosn)
		h.Set("X-Frame-Options", xfo)
		h.Set("Cache-Control", cache)
		h.Set("Referrer-Policy", refer)
		next.ServeHTTP(w, r)
	})
}
