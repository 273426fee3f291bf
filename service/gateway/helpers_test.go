package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/Infinite-Chess/infinitechess.org-sub008/global/config"
)

type fakeTransport struct {
	mu          sync.Mutex
	frames      [][]byte
	closeCode   int
	closeReason string
	closed      bool
}

func (f *fakeTransport) WriteText(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrConnClosed
	}
	f.frames = append(f.frames, append([]byte(nil), data...))
	return nil
}

func (f *fakeTransport) WriteClose(code int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCode, f.closeReason = code, reason
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) messages(t *testing.T) []Outbound {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Outbound, 0, len(f.frames))
	for _, raw := range f.frames {
		var m Outbound
		if err := json.Unmarshal(raw, &m); err != nil {
			t.Fatalf("bad outbound frame %s: %v", raw, err)
		}
		out = append(out, m)
	}
	return out
}

func (f *fakeTransport) withAction(t *testing.T, action string) []Outbound {
	var out []Outbound
	for _, m := range f.messages(t) {
		if m.Action == action {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeTransport) closeFrame() (int, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCode, f.closeReason
}

type unsubCall struct {
	conn      string
	game      GameSubscription
	voluntary bool
}

type fakeInvites struct {
	mu         sync.Mutex
	subscribed []string
	unsubs     []unsubCall
	actions    []string
	openInvite bool
}

func (f *fakeInvites) Subscribe(c ConnRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, c.ID())
}

func (f *fakeInvites) Unsubscribe(c ConnRef, voluntary bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubs = append(f.unsubs, unsubCall{conn: c.ID(), voluntary: voluntary})
}

func (f *fakeInvites) HasOpenInvite(ConnRef) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.openInvite
}

func (f *fakeInvites) HandleAction(_ context.Context, _ ConnRef, action string, _ any, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
	return nil
}

func (f *fakeInvites) calls() ([]string, []unsubCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subscribed...), append([]unsubCall(nil), f.unsubs...)
}

type fakeGame struct {
	mu     sync.Mutex
	unsubs []unsubCall
}

func (f *fakeGame) UnsubscribeFromGame(c ConnRef, g GameSubscription, voluntary bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubs = append(f.unsubs, unsubCall{conn: c.ID(), game: g, voluntary: voluntary})
}

func (f *fakeGame) HandleAction(context.Context, ConnRef, string, any, int64) error { return nil }

func (f *fakeGame) calls() []unsubCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]unsubCall(nil), f.unsubs...)
}

// testConfig 开发模式 + 较长的计时，个别用例再调小
func testConfig() config.Gateway {
	cfg := config.Default()
	cfg.DevMode = true
	cfg.Limits.EchoTimeout = 10 * time.Second
	cfg.Limits.InactivityProbe = 10 * time.Second
	cfg.Limits.MaxSocketAge = time.Hour
	return cfg
}

func newTestGateway(t *testing.T, cfg config.Gateway, opts Options) *Gateway {
	t.Helper()
	opts.Config = cfg
	g := New(opts)
	t.Cleanup(func() {
		for _, c := range g.registry.All() {
			c.Terminate(ReasonServerRestart)
		}
	})
	return g
}

func openAnon(t *testing.T, g *Gateway, ip, browserID string) (*Connection, *fakeTransport) {
	t.Helper()
	return openWith(t, g, ip, resolution{identity: AnonymousIdentity(browserID)})
}

func openWith(t *testing.T, g *Gateway, ip string, res resolution) (*Connection, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{}
	c, err := g.Open(tr, &Admission{hs: Handshake{Secure: true, IP: ip}, res: res})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return c, tr
}

func waitClosed(t *testing.T, c *Connection, within time.Duration) Closure {
	t.Helper()
	select {
	case <-c.Done():
		return c.Closure()
	case <-time.After(within):
		t.Fatalf("connection %s still open after %v", c.ID(), within)
	}
	return Closure{}
}

func frame(route, action string, value any, id int64) []byte {
	m := map[string]any{"route": route, "action": action, "value": value}
	if id != 0 {
		m["id"] = id
	}
	b, _ := json.Marshal(m)
	return b
}

func echoFrame(id int64) []byte {
	return frame(RouteGeneral, ActionEcho, id, 0)
}
