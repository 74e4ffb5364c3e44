package adminhttp

import (
	"net/http"
	"strings"
	"time"

	"github.com/prabhakardwivedi/corpsite/internal/jsonapi"
	"github.com/prabhakardwivedi/corpsite/internal/session"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionView struct {
	State     string       `json:"state"`
	User      session.User `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
	// CheckInterval is how often an open admin view re-validates, in seconds
	CheckInterval int `json:"check_interval"`
}

func (rt *Routes) viewOf(s *session.Session) sessionView {
	return sessionView{
		State:         session.Authorized.String(),
		User:          s.User,
		ExpiresAt:     s.ExpiresAt,
		CheckInterval: int(rt.guard.Interval().Seconds()),
	}
}

func (rt *Routes) login(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := jsonapi.Decode(r, &c); err != nil {
		rt.writeError(w, r, err, "decode login")
		return
	}
	s, err := rt.guard.Login(r.Context(), c.Email, c.Password)
	if err != nil {
		rt.writeError(w, r, err, "admin login failed")
		return
	}
	session.WriteCookie(w, r, s, rt.secureCookie)
	jsonapi.Write(w, http.StatusOK, rt.viewOf(s))
}

// logout always clears the cookie. The token is revoked locally even when
// it no longer names a live provider session.
func (rt *Routes) logout(w http.ResponseWriter, r *http.Request) {
	token := session.TokenFromRequest(r)
	if token != "" {
		s := rt.guard.CheckSession(r.Context(), token)
		if s == nil {
			s = &session.Session{Token: token}
		}
		rt.guard.Logout(r.Context(), s)
	}
	session.ClearCookie(w, r, rt.secureCookie)
	jsonapi.NoContent(w)
}

type resetRequest struct {
	Email string `json:"email"`
}

func (rt *Routes) passwordReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := jsonapi.Decode(r, &req); err != nil {
		rt.writeError(w, r, err, "decode password reset")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		jsonapi.Error(w, http.StatusBadRequest, "email is required")
		return
	}
	if err := rt.guard.RequestPasswordReset(r.Context(), req.Email, rt.resetTo); err != nil {
		rt.writeError(w, r, err, "password reset request failed")
		return
	}
	// same answer whether or not the address has an account
	jsonapi.Write(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

type passwordChange struct {
	Password string `json:"password"`
}

func (rt *Routes) setPassword(w http.ResponseWriter, r *http.Request) {
	var req passwordChange
	if err := jsonapi.Decode(r, &req); err != nil {
		rt.writeError(w, r, err, "decode password change")
		return
	}
	err := rt.guard.SetPassword(r.Context(), SessionFromContext(r.Context()), req.Password)
	if ae, ok := asAuthError(err); ok && ae.Reason == session.ReasonInvalidCredentials {
		// a weak password is a bad request, the session itself is fine
		jsonapi.Error(w, http.StatusBadRequest, ae.Msg)
		return
	}
	if err != nil {
		rt.writeError(w, r, err, "password change failed")
		return
	}
	jsonapi.NoContent(w)
}

func (rt *Routes) getSession(w http.ResponseWriter, r *http.Request) {
	jsonapi.Write(w, http.StatusOK, rt.viewOf(SessionFromContext(r.Context())))
}
