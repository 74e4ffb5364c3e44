package adminhttp

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/prabhakardwivedi/corpsite/internal/session"
)

func dialSession(t *testing.T, srv *httptest.Server, token string, hdr http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	if hdr == nil {
		hdr = http.Header{}
	}
	if token != "" {
		hdr.Set("Cookie", session.CookieName+"="+token)
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/admin/api/session/ws"
	return websocket.DefaultDialer.Dial(url, hdr)
}

func readFrame(t *testing.T, conn *websocket.Conn) serverFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f serverFrame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

// expectClosed reads until the server's close frame arrives
func expectClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			t.Fatalf("unexpected frame after redirect")
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			return
		}
		t.Fatalf("read: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSessionSocket_NoSessionRedirectsOnce(t *testing.T) {
	e := newEnv(t, nil)
	srv := httptest.NewServer(e.router)
	t.Cleanup(srv.Close)

	conn, _, err := dialSession(t, srv, "", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	f := readFrame(t, conn)
	if f.Type != FrameRedirect || f.Location != "/admin/login" {
		t.Fatalf("frame = %+v", f)
	}
	expectClosed(t, conn)
}

func TestSessionSocket_AuthorizedThenLogoutFrame(t *testing.T) {
	e := newEnv(t, nil)
	token := e.login(t)
	srv := httptest.NewServer(e.router)
	t.Cleanup(srv.Close)

	conn, _, err := dialSession(t, srv, token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	f := readFrame(t, conn)
	if f.Type != FrameState || f.State != "AUTHORIZED" || f.User == nil || f.User.Email != adminEmail {
		t.Fatalf("frame = %+v", f)
	}
	waitFor(t, "socket counted", func() bool { open, _ := e.ws.snapshot(); return open == 1 })

	if err := conn.WriteJSON(clientFrame{Type: FrameLogout}); err != nil {
		t.Fatalf("write: %v", err)
	}
	f = readFrame(t, conn)
	if f.Type != FrameRedirect || f.Location != "/admin/login" {
		t.Fatalf("frame = %+v", f)
	}
	expectClosed(t, conn)

	waitFor(t, "token revoked", func() bool { return e.guard.CheckSession(t.Context(), token) == nil })
	waitFor(t, "socket released", func() bool { open, _ := e.ws.snapshot(); return open == 0 })
}

func TestSessionSocket_VisibleRechecksExpiredSession(t *testing.T) {
	e := newEnv(t, nil)
	token := e.login(t)
	srv := httptest.NewServer(e.router)
	t.Cleanup(srv.Close)

	conn, _, err := dialSession(t, srv, token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if f := readFrame(t, conn); f.Type != FrameState {
		t.Fatalf("frame = %+v", f)
	}

	e.provider.expire(token)
	if err := conn.WriteJSON(clientFrame{Type: FrameVisible}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if f := readFrame(t, conn); f.Type != FrameRedirect {
		t.Fatalf("frame = %+v", f)
	}
	expectClosed(t, conn)
}

func TestSessionSocket_LogoutInOtherTabRedirects(t *testing.T) {
	e := newEnv(t, nil)
	token := e.login(t)
	srv := httptest.NewServer(e.router)
	t.Cleanup(srv.Close)

	conn, _, err := dialSession(t, srv, token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if f := readFrame(t, conn); f.Type != FrameState {
		t.Fatalf("frame = %+v", f)
	}
	waitFor(t, "tab subscribed", func() bool { return e.guard.Hub().Subscribers("user-1") == 1 })

	// another tab logs out through the API
	if rec := e.do(t, call{method: http.MethodPost, target: "/admin/api/logout", token: token}); rec.Code != http.StatusNoContent {
		t.Fatalf("logout code = %d", rec.Code)
	}
	if f := readFrame(t, conn); f.Type != FrameRedirect {
		t.Fatalf("frame = %+v", f)
	}
	expectClosed(t, conn)
}

func TestSessionSocket_ForeignOriginRejected(t *testing.T) {
	e := newEnv(t, nil)
	token := e.login(t)
	srv := httptest.NewServer(e.router)
	t.Cleanup(srv.Close)

	_, resp, err := dialSession(t, srv, token, http.Header{"Origin": {"https://evil.example"}})
	if err == nil {
		t.Fatalf("dial from foreign origin succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("resp = %+v", resp)
	}
}
