// Package api exposes the watcher over a small HTTP status API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Speed-Jobs/jobwatch/internal/logger"
	"github.com/Speed-Jobs/jobwatch/internal/store"
	"github.com/Speed-Jobs/jobwatch/internal/watcher"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// WatcherControl is the slice of the watcher the API needs.
type WatcherControl interface {
	State() watcher.State
	LastCheck() time.Time
	CheckNow() bool
}

// Server serves health, status, manual trigger and metrics endpoints.
type Server struct {
	logger  logger.Interface
	control WatcherControl
	store   store.Store
	version string

	srv *http.Server
}

// New creates the API server. gatherer may be nil to disable /metrics.
func New(
	log logger.Interface,
	address string,
	control WatcherControl,
	s store.Store,
	gatherer prometheus.Gatherer,
	version string,
) *Server {
	if log == nil {
		log = logger.NewNoOp()
	}

	server := &Server{
		logger:  log.WithComponent("api"),
		control: control,
		store:   s,
		version: version,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", server.handleHealth)
	router.GET("/status", server.handleStatus)
	router.POST("/check", server.handleCheck)
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(
			promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
		))
	}

	server.srv = &http.Server{
		Addr:              address,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return server
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves until Shutdown. Blocks; run it in a goroutine.
func (s *Server) Start() error {
	s.logger.Info("API server listening", "address", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "jobwatch",
		"version": s.version,
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	status := gin.H{
		"state": string(s.control.State()),
	}
	if lastCheck := s.control.LastCheck(); !lastCheck.IsZero() {
		status["last_check"] = lastCheck.UTC().Format(time.RFC3339)
	}
	if count, err := s.store.Count(c.Request.Context()); err == nil {
		status["seen_count"] = count
	} else {
		s.logger.Warn("Failed to count seen entries", "error", err)
	}

	c.JSON(http.StatusOK, status)
}

func (s *Server) handleCheck(c *gin.Context) {
	accepted := s.control.CheckNow()
	status := http.StatusAccepted
	if !accepted {
		// A cycle is already in flight; the request is dropped.
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"accepted": accepted})
}
