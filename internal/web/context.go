package web

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/colisage/internal/core"
)

// SessionHeader carries the numeric ID of the user session performing an import.
const SessionHeader = "X-Session-ID"

// requestMetadata adds IP, User-Agent and session to the request context
// for audit logging.
func requestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.ContextWithIPAddress(r.Context(), clientIP(r))
		ctx = core.ContextWithUserAgent(ctx, r.UserAgent())

		if raw := strings.TrimSpace(r.Header.Get(SessionHeader)); raw != "" {
			if session, err := strconv.ParseInt(raw, 10, 64); err == nil && session > 0 {
				ctx = core.ContextWithSession(ctx, session)
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP returns the request's remote IP without its port. RemoteAddr has
// already been rewritten by TrustedRealIP for proxied requests.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
