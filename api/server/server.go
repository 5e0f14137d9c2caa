package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/amitpo23/medici-web03012026-sub000/api/middleware"
	"github.com/amitpo23/medici-web03012026-sub000/internal/alert"
	"github.com/amitpo23/medici-web03012026-sub000/internal/config"
	"github.com/amitpo23/medici-web03012026-sub000/internal/elasticsearch"
	"github.com/amitpo23/medici-web03012026-sub000/internal/logger"
	"github.com/amitpo23/medici-web03012026-sub000/internal/monitor"
	"github.com/amitpo23/medici-web03012026-sub000/internal/persist"
	"github.com/amitpo23/medici-web03012026-sub000/internal/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Options 服务依赖，除 Engine 外均可为空
type Options struct {
	Engine     *alert.Engine
	Scheduler  *monitor.Scheduler
	Hub        *websocket.Hub
	ES         *elasticsearch.Client
	Events     *persist.GormSink
	Config     *config.Config
	ConfigPath string
	Logger     *zap.Logger
}

type Server struct {
	router      *gin.Engine
	mu          sync.Mutex
	httpServer  *http.Server
	rateLimiter *middleware.IPRateLimiter

	engine     *alert.Engine
	scheduler  *monitor.Scheduler
	hub        *websocket.Hub
	es         *elasticsearch.Client
	events     *persist.GormSink
	config     *config.Config
	configPath string
	log        *zap.Logger
}

func NewServer(opts Options) *Server {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	// Set timeout for request processing (30 seconds)
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
	}

	s := &Server{
		router: router,
		rateLimiter: middleware.NewIPRateLimiter(middleware.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.Burst,
			CleanupInterval:   5 * time.Minute,
		}),
		engine:     opts.Engine,
		scheduler:  opts.Scheduler,
		hub:        opts.Hub,
		es:         opts.ES,
		events:     opts.Events,
		config:     cfg,
		configPath: opts.ConfigPath,
		log:        logger.OrNop(opts.Logger),
	}

	router.Use(s.requestLogger())
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	// Apply rate limiting to all API routes
	api := s.router.Group("/api/v1")
	api.Use(s.rateLimiter.Middleware())

	alerts := api.Group("/alerts")
	{
		alerts.GET("/active", s.getActiveAlerts)
		alerts.GET("/history", s.getAlertHistory)
		alerts.GET("/stats", s.getAlertStats)
		alerts.POST("/:id/acknowledge", s.acknowledgeAlert)
		alerts.POST("/resolve/:type", s.resolveAlert)
		alerts.GET("/thresholds", s.getThresholds)
		alerts.PUT("/thresholds", s.updateThresholds)
		alerts.GET("/rules", s.listRules)
		alerts.POST("/test", s.createTestAlert)
		alerts.POST("/check", s.triggerCheck)
		alerts.GET("/events", s.searchEvents)
	}

	// System Configuration
	api.GET("/config", s.getConfig)
	api.PUT("/config", s.updateConfig)

	if s.hub != nil {
		s.router.GET("/ws", websocket.Handler(s.hub))
	}
	s.router.GET("/health", s.healthCheck)
}

// requestLogger 记录每个请求的耗时
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthCheck(c *gin.Context) {
	body := gin.H{"status": "healthy"}
	if s.scheduler != nil {
		body["scheduler_running"] = s.scheduler.Running()
		body["cycles"] = s.scheduler.Cycles()
		if last, ok := s.scheduler.LastResult(); ok {
			body["last_cycle_at"] = last.StartedAt
		}
	}
	if s.hub != nil {
		body["websocket_clients"] = s.hub.ClientCount()
	}
	c.JSON(http.StatusOK, body)
}

// Run blocks serving HTTP on addr until Shutdown is called.
func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.log.Info("HTTP server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Stop()
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
