package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xcode-ai/ai-gateway/internal/api/handlers"
	"github.com/xcode-ai/ai-gateway/internal/api/middleware"
)

// ServiceName is reported by the health endpoint
const ServiceName = "AI Gateway"

// Server represents the API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	deps       Dependencies
	logger     *zap.Logger
	config     *Config
}

// Config contains server configuration
type Config struct {
	Host         string
	Port         int
	Mode         string // debug, release
	JWTSecret    string // empty disables auth on /api
	AllowOrigins []string
	MetricsPath  string
}

// Dependencies are the components behind the routes
type Dependencies struct {
	Status   handlers.StatusChecker
	Resolver handlers.BaseURLResolver
	Chat     handlers.ChatService
	Streamer handlers.Streamer
	Metrics  http.Handler // nil disables the metrics route
}

// NewServer creates a new API server
func NewServer(cfg *Config, deps Dependencies, logger *zap.Logger) *Server {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()

	server := &Server{
		router: router,
		deps:   deps,
		logger: logger,
		config: cfg,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures global middleware
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())

	// Request ID before the logger so log lines carry it
	s.router.Use(middleware.RequestID(s.logger))
	s.router.Use(middleware.Logger(s.logger))

	origins := s.config.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	}
	s.router.Use(cors.New(corsConfig))
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	systemHandler := handlers.NewSystemHandler(s.deps.Status, s.deps.Resolver, s.config.Port, ServiceName, s.logger)
	chatHandler := handlers.NewChatHandler(s.deps.Chat, s.deps.Streamer, s.logger)

	s.router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":   ServiceName,
			"health": "/health",
			"status": "/api/status",
		})
	})
	s.router.GET("/health", systemHandler.Health)

	if s.deps.Metrics != nil {
		path := s.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.router.GET(path, gin.WrapH(s.deps.Metrics))
	}

	api := s.router.Group("/api")
	if s.config.JWTSecret != "" {
		api.Use(middleware.Auth(s.config.JWTSecret))
	} else {
		s.logger.Warn("JWT secret not set, /api is unauthenticated")
	}
	{
		api.GET("/health", systemHandler.Health)
		api.GET("/status", systemHandler.Status)
		api.GET("/config", systemHandler.Config)

		ai := api.Group("/ai")
		{
			ai.POST("/chat", chatHandler.Chat)
			ai.POST("/chat-stream", chatHandler.Chat)
			ai.GET("/chat-sse", chatHandler.SSE)
			ai.GET("/chat-ws", chatHandler.WebSocket)
		}
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		// push sessions stay open for the whole generation
		WriteTimeout:   0,
		MaxHeaderBytes: 1 << 20,
	}

	s.logger.Info("Starting API server", zap.String("addr", addr))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}
