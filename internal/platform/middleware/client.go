package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// CountryHeader carries the client-supplied country used by rule predicates.
const CountryHeader = "X-Country"

// UnknownCountry is used when the country header is absent.
const UnknownCountry = "Unknown"

// ClientInfo is the network context of a request.
type ClientInfo struct {
	IP        string
	UserAgent string
	Country   string
}

type clientContextKey struct{}

// ClientContext captures the client IP, user agent and country header into
// the request context. With trustProxy set, the first X-Forwarded-For hop is
// used as the client IP.
func ClientContext(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := ClientInfo{
				IP:        clientIP(r, trustProxy),
				UserAgent: r.UserAgent(),
				Country:   strings.TrimSpace(r.Header.Get(CountryHeader)),
			}
			if info.Country == "" {
				info.Country = UnknownCountry
			}
			next.ServeHTTP(w, r.WithContext(WithClientInfo(r.Context(), info)))
		})
	}
}

// WithClientInfo returns a copy of ctx carrying info.
func WithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientContextKey{}, info)
}

// GetClientInfo retrieves the client info from the request context.
func GetClientInfo(ctx context.Context) ClientInfo {
	if info, ok := ctx.Value(clientContextKey{}).(ClientInfo); ok {
		return info
	}
	return ClientInfo{Country: UnknownCountry}
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
