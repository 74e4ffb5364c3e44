package adminhttp

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/prabhakardwivedi/corpsite/internal/log"
	"github.com/prabhakardwivedi/corpsite/internal/session"
)

const (
	defaultPingInterval = 30 * time.Second
	writeWait           = 10 * time.Second
	maxClientFrame      = 4 << 10
)

// Frame types on the session socket
const (
	FrameVisible  = "visible"
	FrameLogout   = "logout"
	FrameState    = "state"
	FrameRedirect = "redirect"
)

type clientFrame struct {
	Type string `json:"type"`
}

type serverFrame struct {
	Type     string        `json:"type"`
	State    string        `json:"state,omitempty"`
	User     *session.User `json:"user,omitempty"`
	Location string        `json:"location,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     sameHostOrigin,
}

// sameHostOrigin admits browsers on this host and non-browser clients that
// send no Origin at all
func sameHostOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// socket serializes writes; gorilla connections allow one concurrent writer
type socket struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *socket) send(f serverFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(f)
}

func (s *socket) control(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(messageType, data, time.Now().Add(writeWait))
}

// sessionSocket mounts one admin view per connection. The guard drives it:
// the server pushes the state once AUTHORIZED and a single redirect frame
// when the view becomes UNAUTHORIZED, then closes.
func (rt *Routes) sessionSocket(w http.ResponseWriter, r *http.Request) {
	token := session.TokenFromRequest(r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already wrote the error response
		log.FromContext(r.Context()).Debug(r.Context(), "session socket upgrade failed", "err", err)
		return
	}
	sock := &socket{conn: conn}
	defer conn.Close()

	if rt.metrics != nil {
		rt.metrics.WSConnected()
		defer rt.metrics.WSDisconnected()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// the guard may redirect from Run or from a logout frame
	var redirected atomic.Bool
	view := rt.guard.Mount(ctx, token, func(location string) {
		redirected.Store(true)
		_ = sock.send(serverFrame{Type: FrameRedirect, Location: location})
	})
	defer view.Close()

	if s := view.Session(); s != nil {
		u := s.User
		if err := sock.send(serverFrame{Type: FrameState, State: view.State().String(), User: &u}); err != nil {
			return
		}
		go rt.readFrames(ctx, cancel, conn, view)
		go rt.ping(ctx, cancel, sock)
		view.Run(ctx)
	}

	if redirected.Load() {
		_ = sock.control(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "unauthorized"))
	}
}

// readFrames applies client frames to the view until the socket fails
func (rt *Routes) readFrames(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, view *session.View) {
	defer cancel()
	conn.SetReadLimit(maxClientFrame)
	readWait := 2 * rt.pingEvery
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})
	for {
		var f clientFrame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.FromContext(ctx).Debug(ctx, "session socket closed", "err", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		switch f.Type {
		case FrameVisible:
			view.Visible()
		case FrameLogout:
			view.Logout(ctx)
		}
	}
}

func (rt *Routes) ping(ctx context.Context, cancel context.CancelFunc, sock *socket) {
	t := time.NewTicker(rt.pingEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := sock.control(websocket.PingMessage, nil); err != nil {
				cancel()
				return
			}
		}
	}
}
