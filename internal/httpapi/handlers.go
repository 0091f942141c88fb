package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/boilerswap/backend/internal/auth"
)

type authenticateRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Flow     string `json:"flow"`
}

type forgotRequest struct {
	Email string `json:"email"`
}

// verifyRequest carries either a one-time code or, for the second recovery
// step, the replacement password. Exactly one is expected.
type verifyRequest struct {
	Code     string `json:"code"`
	Password string `json:"password"`
}

func (s *Server) handleAuthenticate(c *gin.Context) {
	var req authenticateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed request body"})
		return
	}
	flow, ok := auth.ParseFlow(req.Flow)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown flow"})
		return
	}

	cookies, err := s.engine.Authenticate(c.Request.Context(), req.Email, req.Password, flow)
	if err != nil {
		s.writeError(c, err)
		return
	}
	setCookies(c, cookies)
	c.Status(http.StatusOK)
}

func (s *Server) handleForgot(c *gin.Context) {
	var req forgotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed request body"})
		return
	}

	cookies, err := s.engine.Forgot(c.Request.Context(), req.Email)
	if err != nil {
		s.writeError(c, err)
		return
	}
	setCookies(c, cookies)
	c.Status(http.StatusOK)
}

func (s *Server) handleVerify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed request body"})
		return
	}
	value := req.Code
	if value == "" {
		value = req.Password
	}

	cookies, err := s.engine.Verify(c.Request.Context(), value, c.Request.Cookies())
	if err != nil {
		s.writeError(c, err)
		return
	}
	setCookies(c, cookies)
	c.Status(http.StatusOK)
}

// handleLogout always answers 200; there is nothing a client could do with
// a logout failure except retry, and the cleared cookies make the retry
// pointless.
func (s *Server) handleLogout(c *gin.Context) {
	cookies := s.engine.Logout(c.Request.Context(), c.Request.Cookies())
	setCookies(c, cookies)
	c.Status(http.StatusOK)
}
