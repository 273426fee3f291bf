package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Infinite-Chess/infinitechess.org-sub008/tools"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Limits 可热更新的部分（nacos 推送后直接替换）
type Limits struct {
	MaxSocketsPerIP      int           `yaml:"max_sockets_per_ip"`      // 单 IP 最大连接数
	MaxSocketsPerSession int           `yaml:"max_sockets_per_session"` // 单会话最大连接数
	MaxSocketAge         time.Duration `yaml:"max_socket_age"`          // 连接最长存活时间，到点强制断开重新鉴权
	EchoTimeout          time.Duration `yaml:"echo_timeout"`            // 等待客户端 echo 的时间
	InactivityProbe      time.Duration `yaml:"inactivity_probe"`        // 有订阅且静默多久后发 renewconnection
	MaxMessageBytes      int           `yaml:"max_message_bytes"`       // 单帧上限
	MessagesPerSecond    float64       `yaml:"messages_per_second"`     // 单 IP 消息速率
	MessageBurst         int           `yaml:"message_burst"`
	BytesPerSecond       int           `yaml:"bytes_per_second"` // 单 IP 字节速率
	ByteBurst            int           `yaml:"byte_burst"`
	EchoesPerSecond      float64       `yaml:"echoes_per_second"` // 单连接 echo 额度，不占 IP 额度
	EchoBurst            int           `yaml:"echo_burst"`
}

// Gateway 网关配置
type Gateway struct {
	NodeID          int64         `yaml:"node_id"`          // 雪花节点号
	HTTPAddr        string        `yaml:"http_addr"`        // HTTP / WebSocket 监听
	GrpcAddr        string        `yaml:"grpc_addr"`        // gRPC 健康检查
	TLSCertFile     string        `yaml:"tls_cert_file"`    // 为空则明文监听（前面有 TLS 终止代理）
	TLSKeyFile      string        `yaml:"tls_key_file"`     //
	HostOrigin      string        `yaml:"host_origin"`      // 允许的 Origin
	DevMode         bool          `yaml:"dev_mode"`         // 开发模式：跳过 Origin 校验
	TrustProxy      bool          `yaml:"trust_proxy"`      // 信任 X-Forwarded-Proto
	LogLevel        string        `yaml:"log_level"`        //
	IdentityTimeout time.Duration `yaml:"identity_timeout"` // 会话校验的超时，超时按匿名处理
	RenewAfter      time.Duration `yaml:"renew_after"`      // 会话令牌签发多久后续期
	LimiterIdleTTL  time.Duration `yaml:"limiter_idle_ttl"` // IP 限流桶空闲多久回收
	Limits          Limits        `yaml:"limits"`

	JWTSecret   string        `yaml:"jwt_secret"`
	SessionTTL  time.Duration `yaml:"session_ttl"`
	CookieName  CookieNames   `yaml:"cookies"`
	Redis       RedisConfig   `yaml:"redis"`
	DatabaseURL string        `yaml:"database_url"`
	Nats        NatsConfig    `yaml:"nats"`
	Kafka       KafkaConfig   `yaml:"kafka"`
	Nacos       NacosConfig   `yaml:"nacos"`
}

type CookieNames struct {
	BrowserID string `yaml:"browser_id"`
	Session   string `yaml:"session"`
	Locale    string `yaml:"locale"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type NatsConfig struct {
	Servers       []string `yaml:"servers"`
	Name          string   `yaml:"name"`
	SubjectPrefix string   `yaml:"subject_prefix"`
}

type KafkaConfig struct {
	Brokers    []string `yaml:"brokers"`
	AuditTopic string   `yaml:"audit_topic"`
}

type NacosConfig struct {
	Addr        string `yaml:"addr"`
	NamespaceID string `yaml:"namespace_id"`
	DataID      string `yaml:"data_id"`
	Group       string `yaml:"group"`
	ServiceName string `yaml:"service_name"` // 为空则不注册实例
	AdvertiseIP string `yaml:"advertise_ip"` // 注册到 naming 的地址
}

func DefaultLimits() Limits {
	return Limits{
		MaxSocketsPerIP:      10,
		MaxSocketsPerSession: 5,
		MaxSocketAge:         15 * time.Minute,
		EchoTimeout:          5 * time.Second,
		InactivityProbe:      10 * time.Second,
		MaxMessageBytes:      500_000,
		MessagesPerSecond:    10,
		MessageBurst:         20,
		BytesPerSecond:       256 << 10,
		ByteBurst:            1 << 20,
		EchoesPerSecond:      50,
		EchoBurst:            100,
	}
}

func Default() Gateway {
	return Gateway{
		NodeID:          1,
		HTTPAddr:        ":3000",
		GrpcAddr:        ":50052",
		HostOrigin:      "https://www.infinitechess.org",
		LogLevel:        "info",
		IdentityTimeout: 2 * time.Second,
		RenewAfter:      24 * time.Hour,
		LimiterIdleTTL:  10 * time.Minute,
		Limits:          DefaultLimits(),
		SessionTTL:      5 * 24 * time.Hour,
		CookieName: CookieNames{
			BrowserID: "browser-id",
			Session:   "jwt",
			Locale:    "i18next",
		},
		Redis: RedisConfig{Addr: "127.0.0.1:6379", PoolSize: 20},
		Nats: NatsConfig{
			Name:          "session-gateway",
			SubjectPrefix: "chess",
		},
		Kafka: KafkaConfig{AuditTopic: "gateway_audit"},
		Nacos: NacosConfig{
			DataID:      "session-gateway.yaml",
			Group:       "DEFAULT_GROUP",
			ServiceName: "session-gateway",
		},
	}
}

// Load 读取 YAML（path 为空则只用默认值），再用环境变量覆盖
func Load(path string) (Gateway, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse config %s", path)
		}
	}
	cfg.applyEnv()
	cfg.fillZeroLimits()
	return cfg, cfg.Validate()
}

// ParseLimits 解析 nacos 推送的 YAML，只关心 limits 段
func ParseLimits(data string, base Limits) (Limits, error) {
	wrapper := struct {
		Limits Limits `yaml:"limits"`
	}{Limits: base}
	if err := yaml.Unmarshal([]byte(data), &wrapper); err != nil {
		return base, errors.Wrap(err, "parse limits")
	}
	if err := wrapper.Limits.Validate(); err != nil {
		return base, err
	}
	return wrapper.Limits, nil
}

func (c *Gateway) applyEnv() {
	c.HostOrigin = tools.GetEnv("GATEWAY_HOST_ORIGIN", c.HostOrigin)
	c.DevMode = tools.GetEnvBool("GATEWAY_DEV_MODE", c.DevMode)
	c.TrustProxy = tools.GetEnvBool("GATEWAY_TRUST_PROXY", c.TrustProxy)
	c.HTTPAddr = tools.GetEnv("GATEWAY_HTTP_ADDR", c.HTTPAddr)
	c.GrpcAddr = tools.GetEnv("GATEWAY_GRPC_ADDR", c.GrpcAddr)
	c.LogLevel = tools.GetEnv("GATEWAY_LOG_LEVEL", c.LogLevel)
	c.JWTSecret = tools.GetEnv("GATEWAY_JWT_SECRET", c.JWTSecret)
	c.Limits.MaxSocketsPerIP = tools.GetEnvInt("GATEWAY_MAX_SOCKETS_PER_IP", c.Limits.MaxSocketsPerIP)
	c.Limits.MaxSocketsPerSession = tools.GetEnvInt("GATEWAY_MAX_SOCKETS_PER_SESSION", c.Limits.MaxSocketsPerSession)
	c.Limits.MaxSocketAge = tools.GetEnvDuration("GATEWAY_MAX_SOCKET_AGE", c.Limits.MaxSocketAge)
	c.Redis.Addr = tools.GetEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = tools.GetEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = tools.GetEnvInt("REDIS_DB", c.Redis.DB)
	c.DatabaseURL = tools.GetEnv("DATABASE_URL", c.DatabaseURL)
	if v := tools.SplitList(os.Getenv("NATS_SERVERS")); len(v) > 0 {
		c.Nats.Servers = v
	}
	if v := tools.SplitList(os.Getenv("KAFKA_BROKERS")); len(v) > 0 {
		c.Kafka.Brokers = v
	}
	c.Nacos.Addr = tools.GetEnv("NACOS_ADDR", c.Nacos.Addr)
	c.Nacos.AdvertiseIP = tools.GetEnv("NACOS_ADVERTISE_IP", c.Nacos.AdvertiseIP)
}

// 配置文件里只写了部分 limits 时，其余沿用默认
func (c *Gateway) fillZeroLimits() {
	d := DefaultLimits()
	l := &c.Limits
	if l.MaxSocketsPerIP == 0 {
		l.MaxSocketsPerIP = d.MaxSocketsPerIP
	}
	if l.MaxSocketsPerSession == 0 {
		l.MaxSocketsPerSession = d.MaxSocketsPerSession
	}
	if l.MaxSocketAge == 0 {
		l.MaxSocketAge = d.MaxSocketAge
	}
	if l.EchoTimeout == 0 {
		l.EchoTimeout = d.EchoTimeout
	}
	if l.InactivityProbe == 0 {
		l.InactivityProbe = d.InactivityProbe
	}
	if l.MaxMessageBytes == 0 {
		l.MaxMessageBytes = d.MaxMessageBytes
	}
	if l.MessagesPerSecond == 0 {
		l.MessagesPerSecond = d.MessagesPerSecond
	}
	if l.MessageBurst == 0 {
		l.MessageBurst = d.MessageBurst
	}
	if l.BytesPerSecond == 0 {
		l.BytesPerSecond = d.BytesPerSecond
	}
	if l.ByteBurst == 0 {
		l.ByteBurst = d.ByteBurst
	}
	if l.EchoesPerSecond == 0 {
		l.EchoesPerSecond = d.EchoesPerSecond
	}
	if l.EchoBurst == 0 {
		l.EchoBurst = d.EchoBurst
	}
}

func (c *Gateway) Validate() error {
	if !c.DevMode {
		u, err := url.Parse(c.HostOrigin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("host_origin %q must be an absolute origin", c.HostOrigin)
		}
	}
	if c.IdentityTimeout <= 0 {
		return errors.New("identity_timeout must be positive")
	}
	return c.Limits.Validate()
}

func (l Limits) Validate() error {
	var bad []string
	if l.MaxSocketsPerIP <= 0 {
		bad = append(bad, "max_sockets_per_ip")
	}
	if l.MaxSocketsPerSession <= 0 {
		bad = append(bad, "max_sockets_per_session")
	}
	if l.MaxSocketAge <= 0 {
		bad = append(bad, "max_socket_age")
	}
	if l.EchoTimeout <= 0 {
		bad = append(bad, "echo_timeout")
	}
	if l.InactivityProbe <= 0 {
		bad = append(bad, "inactivity_probe")
	}
	if l.MaxMessageBytes <= 0 {
		bad = append(bad, "max_message_bytes")
	}
	if l.MessagesPerSecond <= 0 || l.MessageBurst <= 0 {
		bad = append(bad, "messages_per_second/message_burst")
	}
	if l.BytesPerSecond <= 0 || l.ByteBurst < l.MaxMessageBytes {
		bad = append(bad, "bytes_per_second/byte_burst")
	}
	if l.EchoesPerSecond <= 0 || l.EchoBurst <= 0 {
		bad = append(bad, "echoes_per_second/echo_burst")
	}
	if len(bad) > 0 {
		return fmt.Errorf("invalid limits: %s", strings.Join(bad, ", "))
	}
	return nil
}
