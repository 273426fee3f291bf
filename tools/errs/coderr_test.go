package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeErrorIsMatchesByCode(t *testing.T) {
	base := NewCodeError(1009, "Too Many Sockets")
	wrapped := base.WrapMsg("ip over limit", "ip", "1.2.3.4", "count", 10)

	if !base.Is(wrapped) {
		t.Fatalf("expected wrapped error to match by code: %v", wrapped)
	}
	other := NewCodeError(1008, "Authentication needed")
	if other.Is(wrapped) {
		t.Fatalf("1008 must not match a 1009 error")
	}

	ce, ok := AsCode(fmt.Errorf("outer: %w", wrapped))
	if !ok {
		t.Fatalf("AsCode failed on wrapped chain")
	}
	if ce.Detail != "ip over limit, ip=1.2.3.4, count=10" {
		t.Errorf("unexpected detail %q", ce.Detail)
	}
	target := NewCodeError(1009, "")
	if !errors.Is(fmt.Errorf("outer: %w", wrapped), &target) {
		t.Errorf("errors.Is should match by code through the chain")
	}
	if errors.Is(wrapped, &other) {
		t.Errorf("errors.Is matched a different code")
	}
}

func TestWrapMsg(t *testing.T) {
	if WrapMsg(nil, "ignored") != nil {
		t.Fatalf("nil error must stay nil")
	}
	base := errors.New("dial tcp")
	err := WrapMsg(base, "publish conn event", "biz", "game.action", "conn", 7)
	if !errors.Is(err, base) {
		t.Fatalf("cause lost: %v", err)
	}
	if err.Error() != "publish conn event, biz=game.action, conn=7: dial tcp" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestErrPanic(t *testing.T) {
	if ErrPanic(nil) != nil {
		t.Fatalf("nil recover value must produce nil error")
	}
	err := ErrPanic("boom")
	ce, ok := AsCode(err)
	if !ok || ce.Code != ServerInternalError || ce.Detail != "boom" {
		t.Fatalf("unexpected panic error %+v", ce)
	}
}
