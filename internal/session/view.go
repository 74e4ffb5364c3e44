package session

import (
	"context"
	"sync"
)

// RedirectFunc navigates a view to location. The guard calls it at most
// once per view.
type RedirectFunc func(location string)

// View is the session state of one mounted admin view
type View struct {
	g        *Guard
	token    string
	redirect RedirectFunc

	mu         sync.Mutex
	state      State
	session    *Session
	redirected bool
	closed     bool

	visible  chan struct{}
	done     chan struct{}
	doneOnce sync.Once
}

// Mount performs the initial check for token. The returned view is either
// AUTHORIZED or UNAUTHORIZED; in the latter case redirect has been called.
func (g *Guard) Mount(ctx context.Context, token string, redirect RedirectFunc) *View {
	v := &View{
		g:        g,
		token:    token,
		redirect: redirect,
		state:    Checking,
		visible:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	g.countTransition(Checking)
	if s := g.CheckSession(ctx, token); s != nil {
		v.authorize(s)
	} else {
		v.deny(ctx, "no_session")
	}
	return v
}

func (g *Guard) countTransition(s State) {
	if g.metrics != nil {
		g.metrics.IncGuardTransition(s.String())
	}
}

func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Session is the last session seen while AUTHORIZED, nil otherwise
func (v *View) Session() *Session {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != Authorized {
		return nil
	}
	return v.session
}

func (v *View) authorize(s *Session) {
	v.mu.Lock()
	if v.closed || v.state == Unauthorized {
		v.mu.Unlock()
		return
	}
	changed := v.state != Authorized
	v.state = Authorized
	v.session = s
	v.mu.Unlock()
	if changed {
		v.g.countTransition(Authorized)
	}
}

// deny moves the view to UNAUTHORIZED and redirects, once
func (v *View) deny(ctx context.Context, reason string) {
	v.mu.Lock()
	if v.closed || v.redirected {
		v.mu.Unlock()
		return
	}
	v.state = Unauthorized
	v.session = nil
	v.redirected = true
	v.mu.Unlock()

	v.g.countTransition(Unauthorized)
	if v.g.metrics != nil {
		v.g.metrics.IncGuardRedirect()
	}
	v.g.logger.Debug(ctx, "admin view unauthorized", "reason", reason)
	if v.redirect != nil {
		v.redirect(v.g.loginPath)
	}
	v.stop()
}

func (v *View) stop() {
	v.doneOnce.Do(func() { close(v.done) })
}

// Visible reports that the host regained visibility or focus
func (v *View) Visible() {
	select {
	case v.visible <- struct{}{}:
	default:
	}
}

// Logout clears the session without a re-validation round-trip, redirects,
// then asks the provider to invalidate the token
func (v *View) Logout(ctx context.Context) {
	v.mu.Lock()
	s := v.session
	v.mu.Unlock()

	v.deny(ctx, "logout")
	v.g.Logout(ctx, s)
}

// Close tears the view down. Responses that arrive later are discarded and
// never redirect.
func (v *View) Close() {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	v.stop()
}

// Done is closed once the view is UNAUTHORIZED or closed
func (v *View) Done() <-chan struct{} { return v.done }

// Run re-validates an AUTHORIZED view until it becomes UNAUTHORIZED, is
// closed, or ctx ends. Triggers are the periodic timer, Visible, and
// session signals for the same user from any tab or instance.
func (v *View) Run(ctx context.Context) {
	s := v.Session()
	if s == nil {
		return
	}
	changed, unsubscribe := v.g.hub.Subscribe(s.User.ID)
	defer unsubscribe()

	tick, stopTick := v.g.newTicker(v.g.interval)
	defer stopTick()

	for {
		var trigger string
		select {
		case <-ctx.Done():
			return
		case <-v.done:
			return
		case <-tick:
			trigger = "periodic"
		case <-v.visible:
			trigger = "visibility"
		case <-changed:
			trigger = "session_changed"
		}
		v.revalidate(ctx, trigger)
		if v.State() == Unauthorized {
			return
		}
	}
}

func (v *View) revalidate(ctx context.Context, trigger string) {
	if s := v.g.CheckSession(ctx, v.token); s != nil {
		v.authorize(s)
		return
	}
	v.deny(ctx, trigger)
}
