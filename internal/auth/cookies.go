package auth

import (
	"net/http"
	"time"
)

// flowCookieNames is the full set a response must clear before setting
// anything new, so a client can never hold two live flow cookies at once.
var flowCookieNames = []string{cookieSession, cookieForgot, cookieUpdate, cookieAuth}

func baseCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}

// clearedCookies expires every known flow cookie.
func clearedCookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(flowCookieNames))
	for _, name := range flowCookieNames {
		out = append(out, baseCookie(name, "", -1))
	}
	return out
}

// issueCookie clears the full flow-cookie set and then sets name to value
// for ttl. The cleared entry for name is replaced, not duplicated.
func issueCookie(name, value string, ttl time.Duration) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(flowCookieNames))
	for _, n := range flowCookieNames {
		if n == name {
			continue
		}
		out = append(out, baseCookie(n, "", -1))
	}
	return append(out, baseCookie(name, value, int(ttl.Seconds())))
}
