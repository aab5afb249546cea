// Package api exposes the analysis pipeline, direct analysis endpoints and
// account endpoints over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/evogene-server/internal/auth"
	"github.com/evogene-server/internal/domain"
	"github.com/evogene-server/internal/health"
	"github.com/evogene-server/internal/middleware"
	"github.com/evogene-server/internal/router"
	"github.com/evogene-server/internal/task"
	"github.com/evogene-server/pkg/external"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Dependencies are the collaborators served over HTTP. Diabetes may be nil
// when no model artifact was loaded. Breakers and Health may be nil.
type Dependencies struct {
	Chat       *router.Service
	Tasks      *task.Pool
	Accounts   *auth.Service
	Issuer     *auth.Issuer
	Records    domain.PredictionRepository
	Diabetes   domain.DiabetesPredictor
	Classifier domain.TumorClassifier
	Breakers   *external.BreakerRegistry
	Backends   map[string]string
	Health     *health.Checker
}

// Server represents the HTTP server
type Server struct {
	config         domain.ServerConfig
	imaging        domain.ImagingConfig
	deps           Dependencies
	router         *gin.Engine
	server         *http.Server
	log            *logrus.Logger
	wsPollInterval time.Duration
	wsMaxWait      time.Duration
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *domain.Config, deps Dependencies, logger *logrus.Logger) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	registerJSONFieldNames()

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CorrelationID(logger))
	engine.Use(middleware.AccessLog(logger))
	engine.Use(middleware.SecurityHeaders())
	engine.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))
	engine.Use(middleware.BodyLimit(cfg.Server.MaxUploadSize))

	s := &Server{
		config:         cfg.Server,
		imaging:        cfg.Imaging,
		deps:           deps,
		router:         engine,
		log:            logger,
		wsPollInterval: 500 * time.Millisecond,
		wsMaxWait:      cfg.Worker.TaskTimeout + time.Minute,
	}
	s.setupRoutes()
	return s
}

func corsConfig(origins []string) cors.Config {
	config := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	return config
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.log.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.Static("/media", s.config.MediaDir)

	s.router.POST("/register/", s.handleRegister)
	s.router.POST("/login/", s.handleLogin)
	s.router.POST("/logout/", s.handleLogout)

	authed := s.router.Group("/")
	authed.Use(auth.OptionalBearer(s.deps.Issuer))
	{
		authed.POST("/chat/", s.handleChat)
		authed.POST("/chat/async/", s.handleChatAsync)
		authed.GET("/status/:task_id/", s.handleTaskStatus)
		authed.GET("/ws/status/:task_id/", s.handleTaskStatusStream)
		authed.POST("/diabetes/predict/", s.handleDiabetesPredict)
		authed.POST("/brain-tumor/analysis/", s.handleBrainTumorAnalysis)
	}
}

// handleHealth reports component checks, storage backends, breaker states
// and pool counters. An unhealthy component turns the response into a 503.
func (s *Server) handleHealth(c *gin.Context) {
	code := http.StatusOK
	body := gin.H{
		"status":         health.StateHealthy,
		"timestamp":      time.Now().UTC(),
		"version":        Version,
		"storage":        s.deps.Backends,
		"diabetes_model": s.deps.Diabetes != nil,
	}
	if s.deps.Health != nil {
		result := s.deps.Health.Run(c.Request.Context())
		body["status"] = result.Overall
		body["components"] = result.Components
		if result.Overall == health.StateUnhealthy {
			code = http.StatusServiceUnavailable
		}
	}
	if s.deps.Breakers != nil {
		body["breakers"] = s.deps.Breakers.States()
	}
	if s.deps.Tasks != nil {
		body["workers"] = s.deps.Tasks.Stats()
	}
	c.JSON(code, body)
}
