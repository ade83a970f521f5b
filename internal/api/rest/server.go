package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/KevinKickass/PackStationCore/internal/api/websocket"
	"github.com/KevinKickass/PackStationCore/internal/auth"
	"github.com/KevinKickass/PackStationCore/internal/command"
	"github.com/KevinKickass/PackStationCore/internal/config"
	"github.com/KevinKickass/PackStationCore/internal/station"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	router      *gin.Engine
	stations    *station.Manager
	logger      *zap.Logger
	server      *http.Server
	wsHub       *websocket.Hub
	authService *auth.AuthService
	validator   *command.Validator
}

func NewServer(cfg *config.Config, stations *station.Manager, logger *zap.Logger, wsHub *websocket.Hub, authService *auth.AuthService) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	validator, err := command.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to build command validator: %w", err)
	}

	s := &Server{
		router:      gin.Default(),
		stations:    stations,
		logger:      logger,
		wsHub:       wsHub,
		authService: authService,
		validator:   validator,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("REST server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.server.Shutdown(ctx)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(CORSMiddleware())

	// Public routes (no auth required)
	s.router.GET("/health", s.healthCheck)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		// ==================== AUTH (PUBLIC) ====================
		v1.POST("/auth/login", s.login)

		// ==================== STATIONS (OPERATOR) ====================
		stations := v1.Group("/stations")
		stations.Use(s.authService.AuthMiddleware())
		{
			stations.GET("", s.listStations)
			stations.GET("/:id/status", s.getStationStatus)
			stations.GET("/:id/queue", s.getStationQueue)
			stations.GET("/:id/history", s.getStationHistory)
			stations.POST("/:id/commands", s.enqueueCommand)
			stations.DELETE("/:id/commands/:cmd", s.unregisterCommand)
			stations.POST("/:id/signal", s.signalStation)
		}

		// ==================== WEBSOCKET ====================
		ws := v1.Group("/ws")
		{
			ws.GET("/live", s.wsLiveConnection)
			ws.GET("/status", s.authService.AuthMiddleware(), s.wsStatus)
		}
	}
}

// WebSocket handlers. The live feed authenticates via a token query
// parameter before the upgrade.
func (s *Server) wsLiveConnection(c *gin.Context) {
	token := c.Query("token")
	if _, err := s.authService.ValidateToken(token); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}
	websocket.ServeWs(s.wsHub, c.Writer, c.Request)
}

func (s *Server) wsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": s.wsHub.GetClientCount(),
	})
}

// Health check (public)
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}
