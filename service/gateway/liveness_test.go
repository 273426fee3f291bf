package gateway

import (
	"testing"
	"time"
)

func TestLivenessTransitions(t *testing.T) {
	l := newLiveness()
	if l.state != LiveOpen {
		t.Fatalf("initial state = %v", l.state)
	}
	deadline := time.Now().Add(time.Second)

	l.sent(1, deadline)
	l.sent(2, deadline)
	if l.state != LiveAwaitingEcho || l.outstanding() != 2 {
		t.Fatalf("after two sends: state=%v pending=%d", l.state, l.outstanding())
	}
	if !l.echoed(1) {
		t.Fatal("echo for id 1 should be known")
	}
	if l.state != LiveAwaitingEcho {
		t.Fatalf("one echo still pending, state=%v", l.state)
	}
	if l.echoed(1) {
		t.Fatal("duplicate echo should be unknown")
	}
	if !l.echoed(2) {
		t.Fatal("echo for id 2 should be known")
	}
	if l.state != LiveOpen {
		t.Fatalf("all echoes cleared, state=%v", l.state)
	}
	// 已经 echo 过的 id 到期不算失败
	if l.deadlinePassed(2) {
		t.Fatal("deadline for an answered id must not close")
	}
}

func TestLivenessDeadlineCloses(t *testing.T) {
	l := newLiveness()
	l.sent(7, time.Now())
	if !l.deadlinePassed(7) {
		t.Fatal("missed echo should close")
	}
	if l.state != LiveClosed {
		t.Fatalf("state = %v, want closed", l.state)
	}
	if l.sent(8, time.Now()) {
		t.Fatal("closed state must not accept sends")
	}
	if l.echoed(7) {
		t.Fatal("closed state must not accept echoes")
	}
}

func TestClosureVoluntary(t *testing.T) {
	cases := []struct {
		name string
		cl   Closure
		want bool
	}{
		{"plain client close", ClientClosure(CodeNormal, "Connection closed by client"), true},
		{"client close without reason", ClientClosure(1005, ""), true},
		{"client renew", ClientClosure(CodeNormal, "Connection closed by client. Renew."), false},
		{"network lost", ClientClosure(CodeAbnormal, ""), false},
		{"client says expired", ClientClosure(CodeNormal, "Connection expired"), false},
		{"server expired", serverClosure(ReasonConnectionExpired), false},
		{"server logged out", serverClosure(ReasonLoggedOut), false},
		{"server too big", serverClosure(ReasonMessageTooBig), false},
		{"server no echo", serverClosure(ReasonNoEchoHeard), false},
		{"server restart", serverClosure(ReasonServerRestart), false},
	}
	for _, tc := range cases {
		if got := tc.cl.Voluntary(); got != tc.want {
			t.Errorf("%s: Voluntary() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestServerClosureCodes(t *testing.T) {
	cases := map[Reason]int{
		ReasonConnectionExpired: CodeNormal,
		ReasonLoggedOut:         CodeNormal,
		ReasonMessageTooBig:     CodeTooBig,
		ReasonTooManySockets:    CodeTooBig,
		ReasonNoEchoHeard:       CodeNoEchoHeard,
		ReasonServerRestart:     CodeGoingAway,
	}
	for r, code := range cases {
		cl := serverClosure(r)
		if cl.Code != code || cl.ByClient {
			t.Errorf("%v: got code=%d byClient=%v, want %d", r, cl.Code, cl.ByClient, code)
		}
	}
	if got := serverClosure(ReasonNoEchoHeard).ReasonText(); got != "No echo heard" {
		t.Errorf("reason text = %q", got)
	}
}
