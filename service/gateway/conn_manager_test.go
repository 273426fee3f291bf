package gateway

import (
	"testing"

	"github.com/Infinite-Chess/infinitechess.org-sub008/service/session"
	"github.com/Infinite-Chess/infinitechess.org-sub008/tools/errs"
)

func TestRegistryIndexes(t *testing.T) {
	g := newTestGateway(t, testConfig(), Options{})
	m := session.Member{UserID: "42", Username: "naviary"}
	a, _ := openWith(t, g, "10.0.0.1", resolution{identity: MemberIdentity(m), sessionID: "tok-a"})
	b, _ := openWith(t, g, "10.0.0.1", resolution{identity: MemberIdentity(m), sessionID: "tok-b"})
	anon, _ := openAnon(t, g, "10.0.0.2", "b1")

	r := g.registry
	if r.Len() != 3 || r.CountByIP("10.0.0.1") != 2 || r.CountByIP("10.0.0.2") != 1 {
		t.Fatalf("ip counts wrong: %+v", r.Stats())
	}
	if r.CountBySession("tok-a") != 1 || r.CountByMember("42") != 2 {
		t.Fatalf("session/member counts wrong: %+v", r.Stats())
	}
	if got, ok := r.Get(anon.ID()); !ok || got != anon {
		t.Fatal("lookup by id failed")
	}

	r.Deregister(a)
	r.Deregister(a)
	if r.Len() != 2 || r.CountByMember("42") != 1 || r.CountBySession("tok-a") != 0 {
		t.Fatalf("after deregister: %+v", r.Stats())
	}
	if st := r.Stats(); st.IPs != 2 || st.Sessions != 1 || st.Members != 1 {
		t.Fatalf("stats = %+v", st)
	}
	_ = b
}

func TestRegistryIPCeiling(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.MaxSocketsPerIP = 2
	g := newTestGateway(t, cfg, Options{})
	openAnon(t, g, "10.0.0.1", "b1")
	openAnon(t, g, "10.0.0.1", "b2")

	_, err := g.Open(&fakeTransport{}, &Admission{hs: Handshake{Secure: true, IP: "10.0.0.1"}, res: resolution{identity: AnonymousIdentity("b3")}})
	ce, ok := errs.AsCode(err)
	if !ok || ce.Code != 1009 || ce.Msg != "Too Many Sockets" {
		t.Fatalf("third open err = %v", err)
	}
	if g.registry.CountByIP("10.0.0.1") != 2 {
		t.Fatal("rejected connection was registered")
	}
}

func TestRegistrySessionCeiling(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.MaxSocketsPerSession = 1
	g := newTestGateway(t, cfg, Options{})
	res := resolution{identity: MemberIdentity(session.Member{UserID: "7"}), sessionID: "tok"}
	openWith(t, g, "10.0.0.1", res)

	_, err := g.Open(&fakeTransport{}, &Admission{hs: Handshake{Secure: true, IP: "10.0.0.2"}, res: res})
	if !ErrTooManySockets.Is(err) {
		t.Fatalf("second session socket err = %v", err)
	}
}
