// Package gateway is the HTTP/gRPC front of the admission core. It
// owns the wiring: shared state store, rate limiter, duplicate
// matcher, merger, and the etcd preset watcher.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
	"gorm.io/gorm"

	"github.com/provisia/warden/internal/clock"
	"github.com/provisia/warden/internal/config"
	"github.com/provisia/warden/internal/control"
	"github.com/provisia/warden/internal/identity"
	"github.com/provisia/warden/internal/limiter"
	"github.com/provisia/warden/internal/phone"
	"github.com/provisia/warden/internal/repo/postgres"
	"github.com/provisia/warden/internal/store"
)

type Server struct {
	config     *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server

	st      store.Store
	db      *gorm.DB
	etcd    *clientv3.Client
	watcher *control.PresetWatcher
	cancel  context.CancelFunc

	registry *limiter.Registry
	limiter  *limiter.Limiter
	matcher  *identity.Matcher
	merger   *identity.Merger
	cleanup  *identity.CleanupJob
}

func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	clk := clock.System{}

	var st store.Store
	switch cfg.Gateway.StoreMode {
	case "memory":
		st = store.NewMemory(clk)
		logger.Info("Using in-memory admission state (single instance only)")
	default:
		st = store.NewRedis(store.RedisOptions{
			Address:      cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			Database:     cfg.Redis.Database,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		logger.Info("Using Redis admission state", "address", cfg.Redis.Address)
	}

	db, err := postgres.Connect(ctx, cfg.Postgres.URL, cfg.Postgres.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	repo := postgres.NewAccountRepository(db)
	phones := phone.NewNormalizer(cfg.Dedup.DefaultRegion)
	merger := identity.NewMerger(repo, clk, logger)

	s := &Server{
		config:   cfg,
		logger:   logger,
		st:       st,
		db:       db,
		registry: limiter.NewRegistry(),
		limiter:  limiter.New(st, clk, logger),
		matcher:  identity.NewMatcher(repo, phones, clk, logger),
		merger:   merger,
		cleanup:  identity.NewCleanupJob(repo, merger, clk, logger),
	}

	if cfg.Etcd.Enabled {
		etcdClient, err := clientv3.New(clientv3.Config{
			Endpoints:   cfg.Etcd.Endpoints,
			DialTimeout: cfg.Etcd.DialTimeout,
			Username:    cfg.Etcd.Username,
			Password:    cfg.Etcd.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to etcd: %w", err)
		}
		s.etcd = etcdClient
		s.watcher = control.NewPresetWatcher(etcdClient, s.registry, cfg.Etcd.PresetPrefix, logger)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware())

	s.setupRoutes(router)

	s.httpServer = &http.Server{
		Addr:         cfg.Gateway.Address,
		Handler:      router,
		ReadTimeout:  cfg.Gateway.ReadTimeout,
		WriteTimeout: cfg.Gateway.WriteTimeout,
	}

	s.grpcServer = grpc.NewServer(
		grpc.UnaryInterceptor(s.unaryInterceptor),
	)
	reflection.Register(s.grpcServer)

	return s, nil
}

func (s *Server) Start(ctx context.Context) error {
	go func() {
		s.logger.Info("Starting HTTP server", "address", s.config.Gateway.Address)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	go func() {
		lis, err := net.Listen("tcp", s.config.Gateway.GRPCAddress)
		if err != nil {
			s.logger.Error("Failed to listen for gRPC", "error", err)
			return
		}
		s.logger.Info("Starting gRPC server", "address", s.config.Gateway.GRPCAddress)
		if err := s.grpcServer.Serve(lis); err != nil {
			s.logger.Error("gRPC server error", "error", err)
		}
	}()

	if s.watcher != nil {
		watchCtx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		go func() {
			if err := s.watcher.Run(watchCtx); err != nil && watchCtx.Err() == nil {
				s.logger.Error("Preset watcher stopped", "error", err)
			}
		}()
	}

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down gateway server")

	if s.cancel != nil {
		s.cancel()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.grpcServer.GracefulStop()

	if s.etcd != nil {
		if err := s.etcd.Close(); err != nil {
			s.logger.Error("Failed to close etcd client", "error", err)
		}
	}

	if err := s.st.Close(); err != nil {
		s.logger.Error("Failed to close admission store", "error", err)
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			s.logger.Error("Failed to close postgres pool", "error", err)
		}
	}

	return nil
}

func (s *Server) setupRoutes(router *gin.Engine) {
	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	api.Use(RateLimitMiddleware(s.limiter, s.registry, limiter.PresetAPI))
	{
		api.POST("/admission/check", s.handleAdmissionCheck)
		api.GET("/presets", s.handleListPresets)
		api.POST("/accounts/precheck", s.handlePrecheck)
		api.POST("/accounts/:account_id/links", s.handleLinkPlatform)
		api.POST("/accounts/merge", s.handleMerge)
		api.POST("/cleanup/run", s.handleCleanupRun)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	checks := make(map[string]string)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := s.st.Ping(ctx); err != nil {
		status = "degraded"
		checks["store"] = fmt.Sprintf("error: %v", err)
	} else {
		checks["store"] = "healthy"
	}

	if sqlDB, err := s.db.DB(); err != nil {
		status = "unhealthy"
		checks["postgres"] = fmt.Sprintf("error: %v", err)
	} else if err := sqlDB.PingContext(ctx); err != nil {
		status = "unhealthy"
		checks["postgres"] = fmt.Sprintf("error: %v", err)
	} else {
		checks["postgres"] = "healthy"
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":  status,
		"service": s.config.Observability.ServiceName,
		"version": s.config.Observability.ServiceVersion,
		"checks":  checks,
	})
}

func (s *Server) unaryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	s.logger.Info("gRPC request completed",
		"method", info.FullMethod,
		"duration", time.Since(start),
		"error", err,
	)
	return resp, err
}
