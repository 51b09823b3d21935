// Package api exposes the settlement engine over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/openclear/settled/internal/exchange"
)

// Server represents the API server
type Server struct {
	router    *gin.Engine
	logger    *zap.Logger
	engine    *exchange.Service
	validator *validator.Validate
}

// NewServer creates a new API server around the settlement engine
func NewServer(logger *zap.Logger, engine *exchange.Service) *Server {
	server := &Server{
		logger:    logger,
		engine:    engine,
		validator: validator.New(),
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))

	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	server.router = router
	server.registerRoutes()
	return server
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting API server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Router returns the internal Gin engine for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/deposit", s.deposit)
		v1.POST("/withdraw", s.withdraw)
		v1.POST("/orders/hash", s.orderHash)
		v1.GET("/domain-separator", s.domainSeparator)
		v1.GET("/balances/:user/:token", s.userBalance)
		v1.GET("/tokens/:token", s.supportedToken)
		v1.GET("/events", s.events)

		admin := v1.Group("/admin")
		{
			admin.POST("/tokens", s.addSupportedToken)
			admin.POST("/match", s.matchOrders)
		}
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
