// Package metadata copies per-request client details into the context so
// logs and services can read them without touching *http.Request.
package metadata

import (
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"badgegate/pkg/requestcontext"
)

// ClientMetadata records the chi request ID, client IP and User-Agent and
// echoes the request ID back in the response. Mount after chi's RequestID.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := middleware.GetReqID(ctx); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
			ctx = requestcontext.WithRequestID(ctx, id)
		}
		ctx = requestcontext.WithClientMetadata(ctx, ClientIPFromRequest(r), r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest returns the reader's address. The first X-Forwarded-For
// hop wins, then X-Real-IP, then the connection's remote address.
func ClientIPFromRequest(r *http.Request) string {
	if hop, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); strings.TrimSpace(hop) != "" {
		return strings.TrimSpace(hop)
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
