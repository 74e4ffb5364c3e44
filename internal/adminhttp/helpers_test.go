package adminhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prabhakardwivedi/corpsite/internal/content"
	"github.com/prabhakardwivedi/corpsite/internal/session"
	"github.com/prabhakardwivedi/corpsite/internal/store"
	"github.com/prabhakardwivedi/corpsite/internal/store/storetest"
)

const (
	adminEmail    = "boss@example.com"
	adminPassword = "correct horse"
)

// stubProvider keeps sessions in memory and accepts one admin account
type stubProvider struct {
	mu        sync.Mutex
	sessions  map[string]*session.Session
	next      int
	down      bool
	resets    []string
	passwords map[string]string
}

func newStubProvider() *stubProvider {
	return &stubProvider{sessions: map[string]*session.Session{}, passwords: map[string]string{}}
}

func (p *stubProvider) SignIn(_ context.Context, email, password string) (*session.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.down {
		return nil, &session.AuthError{Reason: session.ReasonUnavailable, Msg: "auth service unavailable"}
	}
	if email != adminEmail || password != adminPassword {
		return nil, &session.AuthError{Reason: session.ReasonInvalidCredentials, Msg: "invalid login credentials"}
	}
	p.next++
	s := &session.Session{
		Token:     "tok-" + strconv.Itoa(p.next),
		User:      session.User{ID: "user-1", Email: email, Name: "Boss", Role: "ADMIN"},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	p.sessions[s.Token] = s
	return s, nil
}

func (p *stubProvider) SignOut(_ context.Context, token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, token)
	return nil
}

func (p *stubProvider) GetSession(_ context.Context, token string) (*session.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[token]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (p *stubProvider) RequestPasswordReset(_ context.Context, email, redirectTo string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets = append(p.resets, email+" "+redirectTo)
	return nil
}

func (p *stubProvider) SetPassword(_ context.Context, token, pw string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.passwords[token] = pw
	return nil
}

func (p *stubProvider) expire(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, token)
}

type stubScreens struct{}

func (stubScreens) ServeIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(`<div id="root"></div>`))
}

type wsCounter struct {
	mu          sync.Mutex
	open, total int
}

func (c *wsCounter) WSConnected() {
	c.mu.Lock()
	c.open++
	c.total++
	c.mu.Unlock()
}

func (c *wsCounter) WSDisconnected() {
	c.mu.Lock()
	c.open--
	c.mu.Unlock()
}

func (c *wsCounter) snapshot() (open, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open, c.total
}

type env struct {
	provider *stubProvider
	guard    *session.Guard
	svc      *content.Service
	ws       *wsCounter
	router   chi.Router
}

type envOption func(*Options)

func newEnv(t *testing.T, wrap func(store.Backend) store.Backend, opts ...envOption) *env {
	t.Helper()
	var b store.Backend = storetest.SQLite(t)
	if wrap != nil {
		b = wrap(b)
	}
	p := newStubProvider()
	e := &env{
		provider: p,
		guard:    session.New(session.Options{Provider: p}),
		svc:      content.NewService(b, content.Options{}),
		ws:       &wsCounter{},
	}
	o := Options{
		Guard:   e.guard,
		Content: e.svc,
		Screens: stubScreens{},
		Metrics: e.ws,
	}
	for _, fn := range opts {
		fn(&o)
	}
	r := chi.NewRouter()
	New(o).Register(r)
	e.router = r
	return e
}

type call struct {
	method string
	target string
	body   string
	token  string
	header map[string]string
}

func (e *env) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if c.body != "" {
		req = httptest.NewRequest(c.method, c.target, strings.NewReader(c.body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(c.method, c.target, nil)
	}
	if c.token != "" {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: c.token})
	}
	for k, v := range c.header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// login signs the admin in through the API and returns the cookie token
func (e *env) login(t *testing.T) string {
	t.Helper()
	rec := e.do(t, call{
		method: http.MethodPost,
		target: "/admin/api/login",
		body:   `{"email":"` + adminEmail + `","password":"` + adminPassword + `"}`,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login code = %d body=%s", rec.Code, rec.Body)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName && c.Value != "" {
			return c.Value
		}
	}
	t.Fatalf("login set no session cookie")
	return ""
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return v
}
