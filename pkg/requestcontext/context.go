// Package requestcontext carries request-scoped values without net/http.
// Middleware fills them in; services and loggers read them.
//
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
package requestcontext

import (
	"context"
	"time"
)

type metadataKey struct{}

// metadata is stored by value; every With* call stores an updated copy.
type metadata struct {
	requestID string
	clientIP  string
	userAgent string
	at        time.Time
}

func from(ctx context.Context) metadata {
	md, _ := ctx.Value(metadataKey{}).(metadata)
	return md
}

func with(ctx context.Context, update func(*metadata)) context.Context {
	md := from(ctx)
	update(&md)
	return context.WithValue(ctx, metadataKey{}, md)
}

// ClientIP returns the originating client address, or "".
func ClientIP(ctx context.Context) string {
	return from(ctx).clientIP
}

// UserAgent returns the caller's User-Agent, or "".
func UserAgent(ctx context.Context) string {
	return from(ctx).userAgent
}

// WithClientMetadata records the client address and User-Agent.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	return with(ctx, func(md *metadata) {
		md.clientIP = clientIP
		md.userAgent = userAgent
	})
}

// RequestID returns the correlation id, or "".
func RequestID(ctx context.Context) string {
	return from(ctx).requestID
}

// WithRequestID records the correlation id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return with(ctx, func(md *metadata) {
		md.requestID = requestID
	})
}

// Now returns the request time, falling back to time.Now outside a request.
func Now(ctx context.Context) time.Time {
	if at := from(ctx).at; !at.IsZero() {
		return at
	}
	return time.Now()
}

// WithTime pins the request time.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return with(ctx, func(md *metadata) {
		md.at = t
	})
}
