package security

import (
	"testing"
	"time"
)

var testSecret = []byte("test-secret-test-secret-test-sec")

func TestGenerateVerifyRoundTrip(t *testing.T) {
	opts := DefaultOptions(testSecret)
	issued := time.Now().Add(-time.Minute).Truncate(time.Second)

	tok, hash, exp, err := Generate(opts, "u1", "alice", []string{"patron"}, "jti-1", "sid-1", issued)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if hash != HashToken(tok) {
		t.Fatalf("hash mismatch")
	}
	if !exp.Equal(issued.Add(opts.TTL)) {
		t.Fatalf("unexpected expiry %v", exp)
	}

	claims, err := Verify(opts, tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID() != "u1" || claims.Username != "alice" {
		t.Errorf("unexpected claims %+v", claims)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "patron" {
		t.Errorf("roles not preserved: %v", claims.Roles)
	}
	if !claims.IssuedTime().Equal(issued) {
		t.Errorf("issued at %v, want %v", claims.IssuedTime(), issued)
	}
	if claims.SessionID() != "sid-1" {
		t.Errorf("session id %q, want sid-1", claims.SessionID())
	}
}

func TestVerifyRejects(t *testing.T) {
	opts := DefaultOptions(testSecret)
	tok, _, _, err := Generate(opts, "u1", "alice", nil, "jti-2", "", time.Now())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if claims, err := Verify(opts, tok); err != nil || claims.SessionID() != "jti-2" {
		t.Errorf("missing sid should fall back to jti, got %+v %v", claims, err)
	}

	other := DefaultOptions([]byte("another-secret-another-secret-12"))
	if _, err := Verify(other, tok); err == nil {
		t.Errorf("token signed with a different secret must not verify")
	}

	expired := opts
	expired.TTL = time.Second
	old, _, _, err := Generate(expired, "u1", "alice", nil, "jti-3", "", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := Verify(opts, old); err == nil {
		t.Errorf("expired token must not verify")
	}

	if _, err := Verify(opts, "not-a-jwt"); err == nil {
		t.Errorf("garbage must not verify")
	}
	if _, _, _, err := Generate(Options{}, "u1", "a", nil, "x", "", time.Now()); err == nil {
		t.Errorf("empty secret must fail")
	}
}
