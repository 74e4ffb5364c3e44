package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/prabhakardwivedi/corpsite/internal/cryptoutil"
	"github.com/prabhakardwivedi/corpsite/internal/log"
)

const (
	// DefaultInterval is the periodic re-validation interval for an AUTHORIZED view
	DefaultInterval = 60 * time.Second

	// DefaultLoginPath is where UNAUTHORIZED views are sent
	DefaultLoginPath = "/admin/login"

	// revokedTTL bounds how long a logged-out token without a known expiry is remembered
	revokedTTL = 24 * time.Hour

	// DefaultRelayRetry is the first wait before resubscribing a failed relay.
	// It doubles per consecutive failure up to maxRelayRetry.
	DefaultRelayRetry = time.Second
	maxRelayRetry     = 30 * time.Second
)

// TickerFunc returns a tick channel firing every d and its stop func
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

type Options struct {
	Provider  Provider
	Logger    log.Logger
	Metrics   Metrics
	Interval  time.Duration
	LoginPath string

	// AllowedEmails restricts admin access; empty allows any provider user
	AllowedEmails []string

	// Relay carries session signals to other instances; nil keeps them local
	Relay      Relay
	RelayRetry time.Duration

	NewTicker TickerFunc
	Now       func() time.Time
}

// Guard is the single owner of session belief for the admin panel
type Guard struct {
	provider  Provider
	logger    log.Logger
	metrics   Metrics
	interval  time.Duration
	loginPath string
	allowed   map[string]bool
	relay     Relay
	retry     time.Duration
	newTicker TickerFunc
	now       func() time.Time
	origin    string

	hub *Hub

	mu      sync.Mutex
	revoked map[string]time.Time
}

func New(opts Options) *Guard {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.LoginPath == "" {
		opts.LoginPath = DefaultLoginPath
	}
	if opts.RelayRetry <= 0 {
		opts.RelayRetry = DefaultRelayRetry
	}
	if opts.NewTicker == nil {
		opts.NewTicker = realTicker
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	var allowed map[string]bool
	if len(opts.AllowedEmails) > 0 {
		allowed = make(map[string]bool, len(opts.AllowedEmails))
		for _, e := range opts.AllowedEmails {
			allowed[strings.ToLower(strings.TrimSpace(e))] = true
		}
	}
	return &Guard{
		provider:  opts.Provider,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		interval:  opts.Interval,
		loginPath: opts.LoginPath,
		allowed:   allowed,
		relay:     opts.Relay,
		retry:     opts.RelayRetry,
		newTicker: opts.NewTicker,
		now:       opts.Now,
		origin:    newOrigin(),
		hub:       NewHub(),
		revoked:   make(map[string]time.Time),
	}
}

// Interval is the periodic re-validation interval
func (g *Guard) Interval() time.Duration { return g.interval }

// LoginPath is the redirect target for UNAUTHORIZED views
func (g *Guard) LoginPath() string { return g.loginPath }

// Hub exposes the per-user cross-tab signal fan-out
func (g *Guard) Hub() *Hub { return g.hub }

func hashToken(token string) string { return cryptoutil.Fingerprint(token) }

func (g *Guard) countCheck(result string) {
	if g.metrics != nil {
		g.metrics.IncSessionCheck(result)
	}
}

// CheckSession reads the current session for token. It never fails: an
// empty, revoked, unknown or unverifiable token, a user outside the
// allowlist and a provider error all return nil.
func (g *Guard) CheckSession(ctx context.Context, token string) *Session {
	token = strings.TrimSpace(token)
	if token == "" {
		g.countCheck("absent")
		return nil
	}
	if g.isRevoked(hashToken(token)) {
		g.countCheck("revoked")
		return nil
	}
	s, err := g.provider.GetSession(ctx, token)
	if err != nil {
		g.countCheck("error")
		g.logger.Warn(ctx, "session check failed, treating as logged out", "err", err)
		return nil
	}
	if s == nil {
		g.countCheck("absent")
		return nil
	}
	if !g.permitted(s.User) {
		g.countCheck("forbidden")
		return nil
	}
	if s.Token == "" {
		s.Token = token
	}
	g.countCheck("valid")
	return s
}

func (g *Guard) permitted(u User) bool {
	if g.allowed == nil {
		return true
	}
	return g.allowed[strings.ToLower(u.Email)]
}

// Login signs in with the provider and announces the new session to the
// user's other tabs
func (g *Guard) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, &AuthError{Reason: ReasonInvalidCredentials, Msg: "email and password are required"}
	}
	s, err := g.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if s == nil || s.Token == "" {
		return nil, &AuthError{Reason: ReasonUnavailable, Msg: "provider returned no session"}
	}
	if !g.permitted(s.User) {
		// the provider accepted the credentials, do not leave a session behind
		if err := g.provider.SignOut(ctx, s.Token); err != nil {
			g.logger.Warn(ctx, "sign out of non-admin session failed", "err", err)
		}
		return nil, &AuthError{Reason: ReasonForbidden, Msg: "account is not an administrator"}
	}
	g.logger.Info(ctx, "admin login", "user_id", s.User.ID)
	g.publish(ctx, Event{Kind: EventLogin, UserID: s.User.ID})
	return s, nil
}

// Logout forgets the session locally first, then asks the provider to
// invalidate it. The remote call is best-effort.
func (g *Guard) Logout(ctx context.Context, s *Session) {
	if s == nil || s.Token == "" {
		return
	}
	ev := Event{
		Kind:      EventLogout,
		UserID:    s.User.ID,
		TokenHash: hashToken(s.Token),
		ExpiresAt: s.ExpiresAt,
	}
	g.revoke(ev.TokenHash, ev.ExpiresAt)
	if err := g.provider.SignOut(ctx, s.Token); err != nil {
		g.logger.Warn(ctx, "remote sign out failed, session cleared locally", "user_id", s.User.ID, "err", err)
	}
	g.logger.Info(ctx, "admin logout", "user_id", s.User.ID)
	g.publish(ctx, ev)
}

func (g *Guard) RequestPasswordReset(ctx context.Context, email, redirectTo string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return &AuthError{Reason: ReasonInvalidCredentials, Msg: "email is required"}
	}
	return g.provider.RequestPasswordReset(ctx, email, redirectTo)
}

// SetPassword changes the password of the session's user
func (g *Guard) SetPassword(ctx context.Context, s *Session, newPassword string) error {
	if s == nil {
		return &AuthError{Reason: ReasonNoSession, Msg: "no session"}
	}
	if len(newPassword) < 6 {
		return &AuthError{Reason: ReasonInvalidCredentials, Msg: "password must be at least 6 characters"}
	}
	if err := g.provider.SetPassword(ctx, s.Token, newPassword); err != nil {
		return err
	}
	g.publish(ctx, Event{Kind: EventChanged, UserID: s.User.ID})
	return nil
}

func (g *Guard) revoke(tokenHash string, expiresAt time.Time) {
	now := g.now()
	if expiresAt.IsZero() || expiresAt.Before(now) || expiresAt.After(now.Add(revokedTTL)) {
		expiresAt = now.Add(revokedTTL)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.revoked[tokenHash] = expiresAt
	for h, exp := range g.revoked {
		if exp.Before(now) {
			delete(g.revoked, h)
		}
	}
}

func (g *Guard) isRevoked(tokenHash string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	exp, ok := g.revoked[tokenHash]
	if !ok {
		return false
	}
	if exp.Before(g.now()) {
		delete(g.revoked, tokenHash)
		return false
	}
	return true
}

// publish applies ev locally and forwards it to other instances
func (g *Guard) publish(ctx context.Context, ev Event) {
	ev.Origin = g.origin
	g.apply(ev)
	if g.relay == nil {
		return
	}
	if err := g.relay.Publish(ctx, ev); err != nil {
		g.logger.Warn(ctx, "relay session signal failed", "kind", ev.Kind, "err", err)
	}
}

// apply records revocations and wakes the user's mounted views
func (g *Guard) apply(ev Event) {
	if ev.Kind == EventLogout && ev.TokenHash != "" {
		g.revoke(ev.TokenHash, ev.ExpiresAt)
	}
	if ev.UserID != "" {
		g.hub.Notify(ev.UserID)
	}
}

// RunRelay receives signals published by other instances until ctx ends.
// A relay that fails (redis down at boot, dropped connection) is restarted
// with exponential backoff; it only returns once ctx is done.
func (g *Guard) RunRelay(ctx context.Context) error {
	if g.relay == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	deliver := func(ev Event) {
		if ev.Origin == g.origin {
			return
		}
		g.apply(ev)
	}
	wait := g.retry
	for {
		started := g.now()
		err := g.relay.Run(ctx, deliver)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// a run that stayed up for a while starts the backoff over
		if g.now().Sub(started) > maxRelayRetry {
			wait = g.retry
		}
		g.logger.Warn(ctx, "session relay failed, retrying", "err", err, "retry_in", wait)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		wait = min(wait*2, maxRelayRetry)
	}
}
