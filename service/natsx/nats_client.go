package natsx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NatsxRoute 路由配置（按 Biz 维度注册）
type NatsxRoute struct {
	Biz     string
	Subject string
	Queue   string // 队列组，空表示每个订阅者都收到
}

// NatsxConfig 客户端配置
type NatsxConfig struct {
	Servers        []string
	Name           string
	ReconnectWait  time.Duration
	Timeout        time.Duration
	RequestTimeout time.Duration // request/reply 的超时
}

// NatsxClient 统一客户端
type NatsxClient struct {
	cfg NatsxConfig
	nc  *nats.Conn

	mu     sync.RWMutex
	routes map[string]NatsxRoute         // biz -> route
	subs   map[string]*nats.Subscription // biz -> sub
}

// NewNatsxClient 连接 NATS
func NewNatsxClient(cfg NatsxConfig) (*NatsxClient, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("nats servers missing")
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 500 * time.Millisecond
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, err
	}
	return &NatsxClient{
		cfg:    cfg,
		nc:     nc,
		routes: make(map[string]NatsxRoute),
		subs:   make(map[string]*nats.Subscription),
	}, nil
}

// Close 优雅关闭
func (c *NatsxClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for biz, sub := range c.subs {
		_ = sub.Drain()
		delete(c.subs, biz)
	}
	if c.nc != nil {
		return c.nc.Drain()
	}
	return nil
}

// RegisterRoute 注册 Biz 路由
func (c *NatsxClient) RegisterRoute(r NatsxRoute) error {
	if r.Biz == "" || r.Subject == "" {
		return errors.New("invalid route")
	}
	c.mu.Lock()
	c.routes[r.Biz] = r
	c.mu.Unlock()
	return nil
}

// route 查询已注册路由
func (c *NatsxClient) route(biz string) (NatsxRoute, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.routes[biz]
	return r, ok
}

func toMsg(subject string, data []byte, hdr map[string]string) *nats.Msg {
	m := nats.NewMsg(subject)
	m.Data = data
	for k, v := range hdr {
		m.Header.Set(k, v)
	}
	return m
}

// Publish 按 Biz 路由发送
func (c *NatsxClient) Publish(_ context.Context, biz string, data []byte, hdr map[string]string) error {
	r, ok := c.route(biz)
	if !ok {
		return fmt.Errorf("route not found: %s", biz)
	}
	return c.nc.PublishMsg(toMsg(r.Subject, data, hdr))
}

// Request request/reply，超时取 ctx 和 RequestTimeout 中较早的
func (c *NatsxClient) Request(ctx context.Context, biz string, data []byte) ([]byte, error) {
	r, ok := c.route(biz)
	if !ok {
		return nil, fmt.Errorf("route not found: %s", biz)
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	resp, err := c.nc.RequestMsgWithContext(ctx, toMsg(r.Subject, data, nil))
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Subscribe 订阅某个 Biz；同一 Biz 只订阅一次
func (c *NatsxClient) Subscribe(biz string, h NatsxHandler, mws ...NatsxMiddleware) error {
	r, ok := c.route(biz)
	if !ok {
		return fmt.Errorf("route not found: %s", biz)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.subs[biz]; exists {
		return nil
	}
	h = NatsxChain(h, mws...)
	cb := func(m *nats.Msg) {
		_ = h(context.Background(), NatsxMessage{
			Subject: m.Subject,
			Data:    append([]byte(nil), m.Data...),
			Header:  headerToMap(m.Header),
		})
	}
	var (
		sub *nats.Subscription
		err error
	)
	if r.Queue == "" {
		sub, err = c.nc.Subscribe(r.Subject, cb)
	} else {
		sub, err = c.nc.QueueSubscribe(r.Subject, r.Queue, cb)
	}
	if err != nil {
		return err
	}
	c.subs[biz] = sub
	return nil
}

func headerToMap(h nats.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
