package shield

import "net/http"

// MaxBody returns middleware that caps the request body size. Every
// control API body is a small JSON object, so the cap applies to all
// requests; an oversized body fails the handler's read.
func MaxBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
