package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/prabhakardwivedi/corpsite/internal/httpmw"
)

// CookieName is the admin session cookie
const CookieName = "corpsite_admin"

// TokenFromRequest reads the session token from the cookie, falling back
// to an Authorization bearer header for API clients
func TokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if c, err := r.Cookie(CookieName); err == nil {
		if v := strings.TrimSpace(c.Value); v != "" {
			return v
		}
	}
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// WriteCookie stores s in the session cookie. secure forces the Secure flag;
// otherwise it follows the request scheme as seen through trusted proxies.
func WriteCookie(w http.ResponseWriter, r *http.Request, s *Session, secure bool) {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    s.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure || httpmw.IsHTTPS(r),
		SameSite: http.SameSiteLaxMode,
	}
	if !s.ExpiresAt.IsZero() {
		c.Expires = s.ExpiresAt
		c.MaxAge = int(time.Until(s.ExpiresAt).Seconds())
		if c.MaxAge <= 0 {
			c.MaxAge = -1
		}
	}
	http.SetCookie(w, c)
}

// ClearCookie expires the session cookie
func ClearCookie(w http.ResponseWriter, r *http.Request, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure || httpmw.IsHTTPS(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
