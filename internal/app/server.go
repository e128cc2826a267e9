// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"policy-service/internal/config"
	"policy-service/internal/db"
	"policy-service/internal/domain/policy"
	"policy-service/internal/events"
	policyHandler "policy-service/internal/handlers/policy"
	wsHandler "policy-service/internal/handlers/websocket"
	"policy-service/internal/metrics"
	"policy-service/internal/middleware"
	"policy-service/internal/repository/postgres"
	"policy-service/internal/repository/sqlite"
	policysvc "policy-service/internal/service/policy"
	"policy-service/internal/websocket"
	wsHandlers "policy-service/internal/websocket/handler"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

type Server struct {
	cfg        config.AppConfig
	engine     *gin.Engine
	logger     *zap.Logger
	httpServer *http.Server

	hub        *websocket.Hub
	stopEvents context.CancelFunc
	// Released in reverse order on shutdown
	closers []func()
}

func NewServer(cfg config.AppConfig, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, engine: gin.New(), logger: logger}
}

// Init connects the store, starts the change feed and builds the router.
func (s *Server) Init(ctx context.Context) error {
	// ----- Metrics -----
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry)

	// ----- Store -----
	repo, err := s.openStore(ctx)
	if err != nil {
		s.close()
		return err
	}

	// ----- WebSocket Hub -----
	eventsCtx, stopEvents := context.WithCancel(context.Background())
	s.stopEvents = stopEvents
	s.hub = websocket.NewHub(m, s.logger.Named("ws"))
	go s.hub.Run(eventsCtx)

	// ----- Change feed -----
	var publisher policysvc.EventPublisher
	if s.cfg.RedisEnabled() {
		redisClient, err := db.NewRedisClient(ctx, db.RedisConfig{
			Address:  s.cfg.RedisAddr,
			Password: s.cfg.RedisPass,
			DB:       s.cfg.RedisDB,
			PoolSize: 10,
		}, s.logger)
		if err != nil {
			s.close()
			return err
		}
		s.closers = append(s.closers, func() { redisClient.Close() })

		publisher = events.NewRedisPublisher(redisClient, s.cfg.EventsChannel, m, s.logger.Named("events"))
		relay := events.NewRelay(redisClient, s.cfg.EventsChannel, s.hub, s.logger.Named("events"))
		go func() {
			if err := relay.Run(eventsCtx); err != nil {
				s.logger.Error("event relay stopped", zap.Error(err))
			}
		}()
	} else {
		publisher = events.NewHubPublisher(s.hub)
	}

	// ----- Services -----
	policyService := policysvc.NewPolicyService(repo, publisher, m, s.logger.Named("policy"))
	s.hub.RegisterHandler(wsHandlers.NewPolicyHandler(policyService))

	if s.cfg.SeedOnStart {
		n, err := policyService.Seed(ctx)
		if err != nil {
			s.close()
			return fmt.Errorf("failed to seed policies: %w", err)
		}
		if n == 0 {
			s.logger.Info("store already populated, skipping seed")
		}
	}

	// ----- Middlewares -----
	s.engine.Use(
		middleware.RecoveryMiddleware(s.logger),
		middleware.RequestIDMiddleware(),
		middleware.LoggingMiddleware(s.logger.Named("http")),
		middleware.MetricsMiddleware(m),
		middleware.CORSMiddleware(s.cfg.CORSAllowedOrigins),
	)

	// ----- Router -----
	SetupRouter(s.engine, &Handlers{
		PolicyHandler: policyHandler.NewPolicyHandler(policyService, s.logger),
		WSHandler:     wsHandler.NewWebSocketHandler(s.hub, s.cfg.CORSAllowedOrigins, s.logger),
		Gatherer:      registry,
		APIMiddleware: []gin.HandlerFunc{
			middleware.RateLimitMiddleware(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst),
		},
	})

	s.httpServer = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return nil
}

func (s *Server) openStore(ctx context.Context) (policy.Repository, error) {
	switch s.cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := db.ConnectDB(ctx, s.cfg.DatabaseURL, s.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		s.closers = append(s.closers, pool.Close)

		if err := postgres.NewDB(pool).EnsureSchema(ctx); err != nil {
			return nil, err
		}
		s.logger.Info("using postgres policy store")
		return postgres.NewPolicyRepository(pool), nil

	default:
		gdb, err := db.OpenSQLite(s.cfg.SQLiteDSN, s.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite: %w", err)
		}
		if sqlDB, err := gdb.DB(); err == nil {
			s.closers = append(s.closers, func() { sqlDB.Close() })
		}
		s.logger.Info("using sqlite policy store", zap.String("dsn", s.cfg.SQLiteDSN))
		return sqlite.NewPolicyStore(gdb, s.logger.Named("store")), nil
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server listening", zap.String("addr", s.cfg.HTTPAddr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains HTTP, stops the change feed and releases connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	if s.stopEvents != nil {
		s.stopEvents()
		select {
		case <-s.hub.Done():
		case <-ctx.Done():
		}
	}

	s.close()
	return err
}

func (s *Server) close() {
	if s.stopEvents != nil {
		s.stopEvents()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
