package adminhttp

import (
	"context"
	"net/http"

	"github.com/prabhakardwivedi/corpsite/internal/httpmw"
	"github.com/prabhakardwivedi/corpsite/internal/jsonapi"
	"github.com/prabhakardwivedi/corpsite/internal/session"
)

type ctxKey struct{}

func withSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// SessionFromContext is the session admitted by the guard middleware
func SessionFromContext(ctx context.Context) *session.Session {
	s, _ := ctx.Value(ctxKey{}).(*session.Session)
	return s
}

// admit checks the request's token. On success the returned request
// carries the session and the user id for logs and traces.
func (rt *Routes) admit(r *http.Request) (*http.Request, bool) {
	s := rt.guard.CheckSession(r.Context(), session.TokenFromRequest(r))
	if s == nil {
		return r, false
	}
	r = httpmw.AnnotateUser(r, s.User.ID)
	return r.WithContext(withSession(r.Context(), s)), true
}

// requirePage sends browsers without a session to the login screen
func (rt *Routes) requirePage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, ok := rt.admit(r)
		if !ok {
			http.Redirect(w, r, rt.guard.LoginPath(), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type unauthorizedBody struct {
	Error    string `json:"error"`
	Redirect string `json:"redirect"`
}

// requireAPI answers 401 with the login location so the client performs
// the single redirect itself
func (rt *Routes) requireAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, ok := rt.admit(r)
		if !ok {
			rt.unauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rt *Routes) unauthorized(w http.ResponseWriter, r *http.Request) {
	if session.TokenFromRequest(r) != "" {
		session.ClearCookie(w, r, rt.secureCookie)
	}
	jsonapi.Write(w, http.StatusUnauthorized, unauthorizedBody{
		Error:    "session required",
		Redirect: rt.guard.LoginPath(),
	})
}
