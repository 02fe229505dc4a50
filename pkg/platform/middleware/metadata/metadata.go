// Package metadata captures client request metadata (IP, user agent) into
// the context so services can attach it to consent records.
package metadata

import (
	"context"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

type contextKeyClientIP struct{}
type contextKeyUserAgent struct{}

// ClientMetadata extracts the client IP and User-Agent from the request and
// stores them in the context. Apply early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = context.WithValue(ctx, contextKeyClientIP{}, ClientIPFromRequest(r))
		ctx = context.WithValue(ctx, contextKeyUserAgent{}, r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClientIP retrieves the client IP from the context.
func GetClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(contextKeyClientIP{}).(string)
	return ip
}

// GetUserAgent retrieves the raw User-Agent from the context.
func GetUserAgent(ctx context.Context) string {
	ua, _ := ctx.Value(contextKeyUserAgent{}).(string)
	return ua
}

// WithClientMetadata injects IP and User-Agent into a context. For service
// tests that skip the HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, contextKeyClientIP{}, clientIP)
	ctx = context.WithValue(ctx, contextKeyUserAgent{}, userAgent)
	return ctx
}

// Describe builds the metadata map recorded with a consent. The user agent
// is parsed into stable fields so records stay comparable across browser
// releases.
func Describe(ctx context.Context) map[string]string {
	rawUA := GetUserAgent(ctx)
	md := map[string]string{}
	if ip := GetClientIP(ctx); ip != "" {
		md["client_ip"] = ip
	}
	if rawUA == "" {
		return md
	}

	ua := useragent.New(rawUA)
	name, version := ua.Browser()
	if name != "" {
		md["browser"] = name
	}
	if version != "" {
		md["browser_version"] = version
	}
	if os := ua.OS(); os != "" {
		md["os"] = os
	}
	switch {
	case ua.Bot():
		md["device"] = "bot"
	case ua.Mobile():
		md["device"] = "mobile"
	default:
		md["device"] = "desktop"
	}
	return md
}

// ClientIPFromRequest resolves the original client IP, honoring proxy
// headers before falling back to the socket address.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}
	return ""
}
