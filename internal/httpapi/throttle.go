package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/boilerswap/backend/internal/keyspace"
)

// throttleKind selects the per-endpoint lock namespace so a burst against
// one endpoint does not consume another endpoint's window.
type throttleKind int

const (
	throttleAuth throttleKind = iota
	throttleVerify
	throttleForgot
)

func (k throttleKind) keyspaceKind() keyspace.Kind {
	switch k {
	case throttleVerify:
		return keyspace.ThrottleVerify
	case throttleForgot:
		return keyspace.ThrottleForgot
	default:
		return keyspace.ThrottleAuth
	}
}

// throttled admits one request per source per ThrottleTTL on the wrapped
// endpoint. The source identifier is hashed before it becomes a key so raw
// client addresses never land in the store.
func (s *Server) throttled(kind throttleKind) gin.HandlerFunc {
	if s.config.ThrottleTTL <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		source := sourceHash(c.Request)
		acquired, err := s.throttle.Acquire(c.Request.Context(), kind.keyspaceKind(), source, s.config.ThrottleTTL)
		if err != nil {
			s.writeError(c, err)
			c.Abort()
			return
		}
		if !acquired {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}

// sourceHash identifies the request origin. Proxy headers win over the
// socket address since the service runs behind a reverse proxy; the
// leftmost forwarded entry is the original client.
func sourceHash(r *http.Request) string {
	source := r.Header.Get("Cf-Connecting-Ip")
	if source == "" {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			source = strings.TrimSpace(strings.Split(fwd, ",")[0])
		}
	}
	if source == "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		source = host
	}

	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}
