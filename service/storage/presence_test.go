package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// recordHook 记下发出的命令，不连 redis
type recordHook struct {
	mu   sync.Mutex
	cmds []string
	err  error
}

func (h *recordHook) record(cmds ...redis.Cmder) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range cmds {
		parts := make([]string, 0, len(c.Args()))
		for _, a := range c.Args() {
			parts = append(parts, fmt.Sprint(a))
		}
		h.cmds = append(h.cmds, strings.Join(parts, " "))
	}
	return h.err
}

func (h *recordHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *recordHook) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error { return h.record(cmd) }
}

func (h *recordHook) ProcessPipelineHook(redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(_ context.Context, cmds []redis.Cmder) error { return h.record(cmds...) }
}

func newRecordedPresence(t *testing.T, ttl time.Duration) (*Presence, *recordHook) {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = rdb.Close() })
	h := &recordHook{}
	rdb.AddHook(h)
	return NewPresence(rdb, "node-a", ttl), h
}

func TestPresenceOnlineRefreshesKey(t *testing.T) {
	p, h := newRecordedPresence(t, 16*time.Minute)
	if err := p.Online(context.Background(), "42", "c-1"); err != nil {
		t.Fatalf("Online: %v", err)
	}
	want := []string{"multi", "hset gw:presence:42 c-1 node-a", "expire gw:presence:42 960", "exec"}
	if strings.Join(h.cmds, "|") != strings.Join(want, "|") {
		t.Fatalf("commands = %q, want %q", h.cmds, want)
	}
}

func TestPresenceOfflineDropsField(t *testing.T) {
	p, h := newRecordedPresence(t, time.Minute)
	if err := p.Offline(context.Background(), "42", "c-1"); err != nil {
		t.Fatalf("Offline: %v", err)
	}
	if len(h.cmds) != 1 || h.cmds[0] != "hdel gw:presence:42 c-1" {
		t.Fatalf("commands = %q", h.cmds)
	}
}

func TestPresenceErrorsWrapped(t *testing.T) {
	p, h := newRecordedPresence(t, time.Minute)
	boom := errors.New("conn refused")
	h.err = boom

	err := p.Online(context.Background(), "7", "c-9")
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "presence online 7") {
		t.Fatalf("online err = %v", err)
	}
	err = p.Offline(context.Background(), "7", "c-9")
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "presence offline 7") {
		t.Fatalf("offline err = %v", err)
	}
}
