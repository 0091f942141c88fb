package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// apiTokenCookie gates the credential endpoints. A client must first fetch
// a short-lived signed token and present it on every subsequent call; the
// token carries no identity, it only proves the caller went through the
// front door.
const apiTokenCookie = "api_token"

func (s *Server) handleAPIToken(c *gin.Context) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(s.config.TokenTTL).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.TokenSecret)
	if err != nil {
		s.writeError(c, fmt.Errorf("signing api token: %w", err))
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     apiTokenCookie,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(s.config.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	c.Status(http.StatusOK)
}

func (s *Server) requireAPIToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(apiTokenCookie)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
			}
			return s.config.TokenSecret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}

		c.Next()
	}
}
