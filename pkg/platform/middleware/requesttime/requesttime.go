// Package requesttime stamps each request with a single UTC instant. Access
// events emitted while serving the request use it as their timestamp.
package requesttime

import (
	"net/http"
	"time"

	"badgegate/pkg/requestcontext"
)

// Middleware stamps requests using the wall clock.
func Middleware(next http.Handler) http.Handler {
	return WithClock(time.Now)(next)
}

// WithClock returns a middleware that stamps requests using now.
func WithClock(now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), now().UTC())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
