package auth

import (
	"context"
	"net/http"

	"github.com/boilerswap/backend/internal/metrics"
)

// Logout revokes the session named by the session cookie, if any, and
// returns the cookie set that clears every flow and session cookie. It
// cannot fail from the caller's point of view: a missing cookie, an unknown
// session id and a store hiccup all end the same way, with everything
// cleared. The sorted-set membership of a revoked session is left for
// eviction and the janitor to reconcile.
func (e *Engine) Logout(ctx context.Context, cookies []*http.Cookie) []*http.Cookie {
	for _, c := range cookies {
		if c == nil || c.Name != cookieSession || c.Value == "" {
			continue
		}
		if err := e.sessions.Delete(ctx, c.Value); err != nil {
			e.logger.Warn("logout: session delete failed", "error", err)
		}
		break
	}

	e.metrics.Inc(metrics.Logouts)
	return clearedCookies()
}
