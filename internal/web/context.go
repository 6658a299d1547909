package web

import (
	"context"
	"net"
	"net/http"

	"github.com/monoidalcat-ux/Impulse-overlay/internal/core"
)

// WithRequestMetadata adds the client IP to ctx for service logging.
// RemoteAddr has already been rewritten by TrustedRealIP.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return core.ContextWithClientIP(ctx, ip)
}
