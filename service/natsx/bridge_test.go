package natsx

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Infinite-Chess/infinitechess.org-sub008/service/gateway"
)

type sent struct {
	biz  string
	data []byte
	hdr  map[string]string
}

type fakePublisher struct {
	mu    sync.Mutex
	sent  []sent
	reply []byte
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, biz string, data []byte, hdr map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{biz, data, hdr})
	return f.err
}

func (f *fakePublisher) Request(_ context.Context, biz string, data []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{biz: biz, data: data})
	return f.reply, f.err
}

func (f *fakePublisher) event(t *testing.T, i int) (string, ConnEvent) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var ev ConnEvent
	if err := json.Unmarshal(f.sent[i].data, &ev); err != nil {
		t.Fatal(err)
	}
	return f.sent[i].biz, ev
}

type ref struct{ id gateway.Identity }

func (r ref) ID() string                 { return "c-1" }
func (r ref) Identity() gateway.Identity { return r.id }
func (r ref) IP() string                 { return "10.0.0.1" }
func (r ref) Verified() bool             { return true }
func (r ref) Locale() string             { return "en-US" }

func TestBridgeInvitesEvents(t *testing.T) {
	pub := &fakePublisher{}
	inv := NewBridge(pub, "node-1").Invites()
	c := ref{id: gateway.Identity{Kind: gateway.Member, UserID: "42", Username: "naviary"}}

	inv.Subscribe(c)
	inv.Unsubscribe(c, false)
	if err := inv.HandleAction(context.Background(), c, "cancelinvite", "inv-1", 9); err != nil {
		t.Fatal(err)
	}

	biz, ev := pub.event(t, 0)
	if biz != BizInvitesSubscribe || ev.ConnID != "c-1" || ev.Kind != "member" || ev.UserID != "42" || !ev.Verified {
		t.Fatalf("subscribe event %s %+v", biz, ev)
	}
	if pub.sent[0].hdr["Nats-Msg-Id"] == "" {
		t.Fatal("events must carry a message id")
	}
	biz, ev = pub.event(t, 1)
	if biz != BizInvitesUnsubscribe || ev.Voluntary == nil || *ev.Voluntary {
		t.Fatalf("unsubscribe event %s %+v", biz, ev)
	}
	biz, ev = pub.event(t, 2)
	if biz != BizInvitesAction || ev.Action != "cancelinvite" || ev.Value != "inv-1" || ev.ReplyTo != 9 {
		t.Fatalf("action event %s %+v", biz, ev)
	}
}

func TestBridgeHasOpenInvite(t *testing.T) {
	pub := &fakePublisher{reply: []byte(`{"open":true}`)}
	inv := NewBridge(pub, "n").Invites()
	c := ref{id: gateway.AnonymousIdentity("b-1")}
	if !inv.HasOpenInvite(c) {
		t.Fatal("expected open invite")
	}
	pub.err = errors.New("timeout")
	if inv.HasOpenInvite(c) {
		t.Fatal("request failure must read as no invite")
	}
}

func TestBridgeGameUnsubscribe(t *testing.T) {
	pub := &fakePublisher{}
	g := NewBridge(pub, "n").Game()
	g.UnsubscribeFromGame(ref{id: gateway.AnonymousIdentity("b-1")}, gateway.GameSubscription{GameID: 77, Color: "black"}, true)
	biz, ev := pub.event(t, 0)
	if biz != BizGameUnsubscribe || ev.Game == nil || ev.Game.GameID != 77 || ev.Voluntary == nil || !*ev.Voluntary {
		t.Fatalf("game unsubscribe %s %+v", biz, ev)
	}
	pub.err = errors.New("down")
	if err := g.HandleAction(context.Background(), ref{}, "resign", nil, 1); err == nil {
		t.Fatal("publish failure should surface from HandleAction")
	}
}

type fakeDeliverer struct {
	sends  []string
	member string
	game   *gateway.GameSubscription
	unsub  string
}

func (f *fakeDeliverer) SendToConnection(connID, route, action string, value any, replyTo int64) error {
	f.sends = append(f.sends, connID+"/"+route+"/"+action)
	if replyTo != 4 {
		return errors.New("replyTo lost")
	}
	return nil
}

func (f *fakeDeliverer) SendToMember(userID, route, action string, value any) int {
	f.member = userID
	return 1
}

func (f *fakeDeliverer) SubscribeGame(connID string, gs gateway.GameSubscription) error {
	f.game = &gs
	return nil
}

func (f *fakeDeliverer) UnsubscribeGame(connID string) error {
	f.unsub = connID
	return nil
}

func TestApplyDelivery(t *testing.T) {
	d := &fakeDeliverer{}
	if err := ApplyDelivery(d, []byte(`{"kind":"send","connId":"c-1","route":"game","action":"move","value":{"m":"e4"},"replyTo":"4"}`)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(d.sends) != 1 || d.sends[0] != "c-1/game/move" {
		t.Fatalf("sends = %v", d.sends)
	}
	if err := ApplyDelivery(d, []byte(`{"kind":"member","userId":"42","route":"invites","action":"inviteslist"}`)); err != nil || d.member != "42" {
		t.Fatalf("member: %v %q", err, d.member)
	}
	if err := ApplyDelivery(d, []byte(`{"kind":"subgame","connId":"c-1","game":{"id":5,"color":"white"}}`)); err != nil {
		t.Fatalf("subgame: %v", err)
	}
	if d.game == nil || d.game.GameID != 5 || d.game.Color != "white" {
		t.Fatalf("game = %+v", d.game)
	}
	if err := ApplyDelivery(d, []byte(`{"kind":"unsubgame","connId":"c-1"}`)); err != nil || d.unsub != "c-1" {
		t.Fatalf("unsubgame: %v", err)
	}
	if err := ApplyDelivery(d, []byte(`{"kind":"teleport"}`)); err == nil {
		t.Fatal("unknown kind accepted")
	}
	if err := ApplyDelivery(d, []byte(`not json`)); err == nil {
		t.Fatal("garbage accepted")
	}
}

func TestIdemMiddlewareSkipsDuplicates(t *testing.T) {
	calls := 0
	h := NatsxChain(func(context.Context, NatsxMessage) error {
		calls++
		return nil
	}, NatsxIdemMiddleware(NewMemIdem(time.Minute), 0))

	msg := NatsxMessage{Subject: "chess.gateway.deliver", Data: []byte("{}"), Header: map[string]string{"Nats-Msg-Id": "m-1"}}
	_ = h(context.Background(), msg)
	_ = h(context.Background(), msg)
	msg.Header = map[string]string{"Nats-Msg-Id": "m-2"}
	_ = h(context.Background(), msg)
	if calls != 2 {
		t.Fatalf("handler ran %d times", calls)
	}
}

func TestRoutesUsePrefix(t *testing.T) {
	for _, r := range Routes("chess") {
		if r.Subject != "chess."+r.Biz {
			t.Fatalf("route %+v", r)
		}
	}
}
