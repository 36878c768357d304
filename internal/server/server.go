// Package server exposes the design collaborators over HTTP for browser
// clients, plus Prometheus metrics.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/manash/olive/internal/provider"
)

const shutdownTimeout = 10 * time.Second

// Availability records which upstream credentials are configured.
type Availability struct {
	Anthropic bool `json:"anthropic"`
	OpenAI    bool `json:"openai"`
	Naver     bool `json:"naver"`
}

type Deps struct {
	// Designer serves the four design routes. Keys gates them per route.
	Designer provider.Designer
	Search   provider.ShopSearcher
	Keys     Availability
	Logger   *slog.Logger
}

type Server struct {
	engine *gin.Engine
	deps   Deps
	logger *slog.Logger
}

func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{engine: engine, deps: deps, logger: logger}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.engine.Group("/api")
	api.POST("/style-analyze", s.requireKeys(false), s.handleStyleAnalyze)
	api.POST("/design-generate", s.requireKeys(true), s.handleDesignGenerate)
	api.POST("/design-variations", s.requireKeys(true), s.handleDesignVariations)
	api.POST("/materials-extract", s.requireKeys(false), s.handleMaterialsExtract)
	api.GET("/naver-search", s.handleNaverSearch)
	api.GET("/models", s.handleModels)

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
