package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	l := cfg.Limits
	if l.MaxSocketsPerIP != 10 || l.MaxSocketsPerSession != 5 {
		t.Errorf("unexpected socket ceilings %+v", l)
	}
	if l.MaxSocketAge != 15*time.Minute || l.EchoTimeout != 5*time.Second || l.InactivityProbe != 10*time.Second {
		t.Errorf("unexpected timers %+v", l)
	}
	if cfg.RenewAfter != 24*time.Hour {
		t.Errorf("renew after = %v", cfg.RenewAfter)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gw.yaml")
	body := "host_origin: https://example.test\nlimits:\n  max_sockets_per_ip: 3\n  echo_timeout: 2s\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GATEWAY_MAX_SOCKETS_PER_SESSION", "2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HostOrigin != "https://example.test" {
		t.Errorf("host origin = %q", cfg.HostOrigin)
	}
	if cfg.Limits.MaxSocketsPerIP != 3 || cfg.Limits.EchoTimeout != 2*time.Second {
		t.Errorf("file limits not applied: %+v", cfg.Limits)
	}
	if cfg.Limits.MaxSocketsPerSession != 2 {
		t.Errorf("env override not applied: %d", cfg.Limits.MaxSocketsPerSession)
	}
	if cfg.Limits.InactivityProbe != 10*time.Second {
		t.Errorf("missing limit should keep default, got %v", cfg.Limits.InactivityProbe)
	}
}

func TestParseLimitsRejectsInvalid(t *testing.T) {
	base := DefaultLimits()
	if _, err := ParseLimits("limits:\n  max_sockets_per_ip: -1\n", base); err == nil {
		t.Fatalf("negative ceiling must be rejected")
	}
	l, err := ParseLimits("limits:\n  max_sockets_per_ip: 4\n", base)
	if err != nil {
		t.Fatalf("ParseLimits: %v", err)
	}
	if l.MaxSocketsPerIP != 4 || l.MaxSocketsPerSession != base.MaxSocketsPerSession {
		t.Errorf("unexpected limits %+v", l)
	}
}
