package gateway

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Infinite-Chess/infinitechess.org-sub008/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func startServer(t *testing.T, g *Gateway) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", g.HandleWS)
	srv := httptest.NewTLSServer(r)
	t.Cleanup(srv.Close)
	return "wss" + strings.TrimPrefix(srv.URL, "https") + "/ws"
}

func dial(t *testing.T, url, browserID string) (*websocket.Conn, *http.Response) {
	t.Helper()
	d := websocket.Dialer{
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: true},
		HandshakeTimeout: 2 * time.Second,
	}
	h := http.Header{}
	h.Set("Origin", "https://www.infinitechess.org")
	if browserID != "" {
		h.Set("Cookie", "browser-id="+browserID)
	}
	ws, resp, err := d.Dial(url, h)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws, resp
}

func expectClose(t *testing.T, ws *websocket.Conn, code int, reason string) {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := ws.ReadMessage()
		if err == nil {
			continue
		}
		ce, ok := err.(*websocket.CloseError)
		if !ok {
			t.Fatalf("expected close frame, got %v", err)
		}
		if ce.Code != code || ce.Text != reason {
			t.Fatalf("close = %d %q, want %d %q", ce.Code, ce.Text, code, reason)
		}
		return
	}
}

func TestWebsocketThirdConnectionRejected(t *testing.T) {
	cfg := testConfig()
	cfg.DevMode = false
	cfg.Limits.MaxSocketsPerIP = 2
	g := newTestGateway(t, cfg, Options{})
	url := startServer(t, g)

	dial(t, url, "b1")
	dial(t, url, "b2")
	waitFor(t, func() bool { return g.registry.CountByIP("127.0.0.1") == 2 })

	third, _ := dial(t, url, "b3")
	expectClose(t, third, 1009, "Too Many Sockets")
}

func TestWebsocketAnonymousWithoutCookieRejected(t *testing.T) {
	g := newTestGateway(t, testConfig(), Options{})
	ws, _ := dial(t, startServer(t, g), "")
	expectClose(t, ws, 1008, "Authentication needed")
}

func TestWebsocketEchoAndRouting(t *testing.T) {
	g := newTestGateway(t, testConfig(), Options{})
	g.Register(&recordingRoute{})
	ws, _ := dial(t, startServer(t, g), "b1")

	if err := ws.WriteMessage(websocket.TextMessage, frame("test", "hello", nil, 12)); err != nil {
		t.Fatal(err)
	}
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got []Outbound
	for len(got) < 2 {
		_, data, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var m Outbound
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatal(err)
		}
		got = append(got, m)
	}
	if got[0].Action != ActionEcho || got[0].Value != float64(12) {
		t.Fatalf("first = %+v", got[0])
	}
	if got[1].Action != "done" || got[1].ReplyTo != 12 {
		t.Fatalf("second = %+v", got[1])
	}
}

func TestWebsocketClientCloseIsVoluntary(t *testing.T) {
	inv := &fakeInvites{}
	g := newTestGateway(t, testConfig(), Options{Invites: inv})
	ws, _ := dial(t, startServer(t, g), "b1")
	waitFor(t, func() bool { return g.registry.Len() == 1 })
	c := g.registry.All()[0]
	g.subs.SubscribeInvites(c)

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Connection closed by client")
	if err := ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	cl := waitClosed(t, c, 2*time.Second)
	if !cl.ByClient || !cl.Voluntary() {
		t.Fatalf("closure = %+v", cl)
	}
	if _, unsubs := inv.calls(); len(unsubs) != 1 || !unsubs[0].voluntary {
		t.Fatalf("unsubs = %+v", unsubs)
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRejectAuditsSocketFlood(t *testing.T) {
	audit := &lockedBuffer{}
	logger.SetAuditSink(audit)
	t.Cleanup(func() { logger.SetAuditSink(nil) })
	hs := Handshake{Secure: true, IP: "10.7.7.7"}

	tr := &fakeTransport{}
	reject(tr, ErrServerRestart.WrapMsg(""), hs)
	if tr.closeCode != CodeGoingAway || !tr.closed {
		t.Fatalf("restart reject: code=%d closed=%v", tr.closeCode, tr.closed)
	}
	if strings.Contains(audit.String(), "10.7.7.7") {
		t.Fatalf("restart reject audited: %s", audit.String())
	}

	tr = &fakeTransport{}
	reject(tr, ErrTooManySockets.WrapMsg("ip over limit", "ip", hs.IP), hs)
	if tr.closeCode != CodeTooBig || tr.closeReason != "Too Many Sockets" {
		t.Fatalf("flood reject: code=%d reason=%q", tr.closeCode, tr.closeReason)
	}
	if out := audit.String(); !strings.Contains(out, "socket limit exceeded") || !strings.Contains(out, "10.7.7.7") {
		t.Fatalf("audit log = %s", out)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
