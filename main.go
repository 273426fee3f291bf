package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Infinite-Chess/infinitechess.org-sub008/global/config"
	"github.com/Infinite-Chess/infinitechess.org-sub008/logger"
	mid "github.com/Infinite-Chess/infinitechess.org-sub008/middleware"
	midsec "github.com/Infinite-Chess/infinitechess.org-sub008/middleware/security"
	"github.com/Infinite-Chess/infinitechess.org-sub008/service/gateway"
	"github.com/Infinite-Chess/infinitechess.org-sub008/service/gateway/handlers"
	"github.com/Infinite-Chess/infinitechess.org-sub008/service/kafka"
	"github.com/Infinite-Chess/infinitechess.org-sub008/service/nacos"
	"github.com/Infinite-Chess/infinitechess.org-sub008/service/natsx"
	"github.com/Infinite-Chess/infinitechess.org-sub008/service/session"
	"github.com/Infinite-Chess/infinitechess.org-sub008/service/storage"
	rdb "github.com/Infinite-Chess/infinitechess.org-sub008/service/storage/redis"
	"github.com/Infinite-Chess/infinitechess.org-sub008/tools/ids"
	"github.com/Infinite-Chess/infinitechess.org-sub008/tools/safe"
	"github.com/Infinite-Chess/infinitechess.org-sub008/tools/security"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("GATEWAY_CONFIG"), "path to gateway yaml")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Log.Fatal("load config", zap.Error(err))
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		logger.Warn("bad log level, keep info", zap.String("level", cfg.LogLevel))
	}
	ids.SetNodeID(cfg.NodeID)
	defer logger.Log.Sync()

	// 1) 会话、账户
	sessions, redisClient := buildSessions(cfg)
	defer rdb.CloseRedis()
	members, closeMembers := buildMembers(cfg)
	defer closeMembers()

	// 2) 协作方（NATS），没配就只跑 general 路由
	opts := gateway.Options{
		Config:     cfg,
		Sessions:   sessions,
		Members:    members,
		BrowserIDs: session.UUIDBrowserIDs{},
	}
	node := ids.GenerateString()
	if redisClient != nil {
		opts.Presence = storage.NewPresence(redisClient, node, cfg.Limits.MaxSocketAge+time.Minute)
	}
	var nc *natsx.NatsxClient
	if len(cfg.Nats.Servers) > 0 {
		nc, err = natsx.NewNatsxClient(natsx.NatsxConfig{Servers: cfg.Nats.Servers, Name: cfg.Nats.Name})
		if err != nil {
			logger.Log.Fatal("connect nats", zap.Error(err))
		}
		defer nc.Close()
		for _, r := range natsx.Routes(cfg.Nats.SubjectPrefix) {
			_ = nc.RegisterRoute(r)
		}
		bridge := natsx.NewBridge(nc, node)
		opts.Invites, opts.Game = bridge.Invites(), bridge.Game()
	} else {
		logger.Warn("[main] nats not configured, invites and game routes unavailable")
	}

	// 3) 审计日志额外写 kafka
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := kafka.NewAuditSink(kafka.DefaultConfig(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic))
		if err != nil {
			logger.Warn("[main] kafka audit sink disabled", zap.Error(err))
		} else {
			logger.SetAuditSink(sink)
			defer sink.Close()
		}
	}

	gw := gateway.New(opts)
	handlers.RegisterAll(gw)
	if nc != nil {
		if err := nc.ServeDeliveries(gw); err != nil {
			logger.Log.Fatal("subscribe deliveries", zap.Error(err))
		}
	}

	// 4) nacos 热更新 limits
	if _, err := config.StartNacosWatcher(cfg.Nacos, cfg.Limits, gw.SetLimits); err != nil {
		logger.Warn("[main] nacos watcher disabled", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	safe.SafeGo("gateway-run", func() { gw.Run(ctx) })

	// 5) gRPC 健康检查
	gs := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(gs, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	go func() {
		lis, err := net.Listen("tcp", cfg.GrpcAddr)
		if err != nil {
			logger.Log.Fatal("grpc listen", zap.Error(err))
		}
		logger.Info("[gRPC] listening", zap.String("addr", cfg.GrpcAddr))
		if err := gs.Serve(lis); err != nil {
			logger.Warn("[gRPC] stopped", zap.Error(err))
		}
	}()

	// 6) HTTP + WebSocket
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: buildEngine(cfg, gw)}
	go func() {
		logger.Info("[HTTP] listening", zap.String("addr", cfg.HTTPAddr), zap.Bool("tls", cfg.TLSCertFile != ""))
		var err error
		if cfg.TLSCertFile != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("http server", zap.Error(err))
		}
	}()

	reg := registerNode(cfg, node)

	<-ctx.Done()
	logger.Info("[main] shutting down")
	if reg != nil {
		if err := reg.Deregister(); err != nil {
			logger.Warn("[main] nacos deregister", zap.Error(err))
		}
	}
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gw.Shutdown(sctx); err != nil {
		logger.Warn("[main] gateway shutdown", zap.Error(err))
	}
	_ = srv.Shutdown(sctx)
	gs.GracefulStop()
}

// registerNode 把 /ws 入口注册到 nacos naming，没配 advertise_ip 就跳过
func registerNode(cfg config.Gateway, node string) *nacos.Registry {
	if cfg.Nacos.Addr == "" || cfg.Nacos.ServiceName == "" || cfg.Nacos.AdvertiseIP == "" {
		return nil
	}
	_, portStr, err := net.SplitHostPort(cfg.HTTPAddr)
	if err != nil {
		logger.Warn("[main] bad http_addr, skip nacos register", zap.Error(err))
		return nil
	}
	port, err := strconv.ParseUint(portStr, 10, 64)
	if err != nil {
		logger.Warn("[main] bad http port, skip nacos register", zap.Error(err))
		return nil
	}
	client, err := nacos.NewNamingClient(cfg.Nacos)
	if err != nil {
		logger.Warn("[main] nacos naming disabled", zap.Error(err))
		return nil
	}
	reg := nacos.NewRegistry(client, cfg.Nacos.ServiceName, cfg.Nacos.AdvertiseIP, port, cfg.Nacos.Group)
	reg.Metadata["node"] = node
	reg.Metadata["grpc"] = cfg.GrpcAddr
	if err := reg.Register(); err != nil {
		logger.Warn("[main] nacos register failed", zap.Error(err))
		return nil
	}
	return reg
}

func buildEngine(cfg config.Gateway, gw *gateway.Gateway) *gin.Engine {
	if !cfg.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}
	mid.Manager().Add(mid.Recovery())

	r := gin.New()
	r.Use(mid.AccessLog(), mid.Manager().Use())

	sessOpt := &midsec.Options{
		SessionCookie: cfg.CookieName.Session,
		LocaleCookie:  cfg.CookieName.Locale,
		Required:      true,
	}
	r.GET("/ws", gw.HandleWS)
	mid.POST(r, "/logout", gw.HandleLogout, mid.RouteOpt{Session: sessOpt, Origin: mid.Origin(cfg.HostOrigin, cfg.DevMode)})
	mid.GET(r, "/healthz", gw.HandleHealth, mid.RouteOpt{})
	mid.GET(r, "/gateway/stats", gw.HandleStats, mid.RouteOpt{})
	return r
}

// buildSessions dev 模式下 redis 不可用时退回内存存储，此时 client 为 nil
func buildSessions(cfg config.Gateway) (gateway.SessionStore, *redis.Client) {
	opts := security.DefaultOptions([]byte(cfg.JWTSecret))
	opts.TTL = cfg.SessionTTL
	if cfg.JWTSecret == "" {
		if !cfg.DevMode {
			logger.Log.Fatal("jwt_secret is required outside dev mode")
		}
		opts.Secret = []byte(ids.GenerateString())
	}
	client, err := rdb.InitRedis(rdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		if !cfg.DevMode {
			logger.Log.Fatal("init redis", zap.Error(err))
		}
		logger.Warn("[main] redis unavailable, using in-memory sessions", zap.Error(err))
		return session.NewMemoryStore(opts), nil
	}
	return session.NewRedisStore(client, opts), client
}

func buildMembers(cfg config.Gateway) (gateway.MemberStore, func()) {
	if cfg.DatabaseURL == "" {
		logger.Warn("[main] database_url empty, no member is verified")
		return session.StaticMembers{}, func() {}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pg, err := session.NewPgMembers(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatal("connect postgres", zap.Error(err))
	}
	return pg, pg.Close
}
