// Package api serves the local debug/inspection endpoint: session state,
// recent log entries and Prometheus metrics. It carries no authentication
// and is meant to stay loopback-bound.
package api

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/router-for-me/toolgate/internal/logging"
	"github.com/router-for-me/toolgate/internal/session"
	log "github.com/sirupsen/logrus"
)

// Server is the debug API server.
type Server struct {
	engine *gin.Engine
	http   *http.Server
}

// NewServer builds the server. logs may be nil, which leaves /v0/logs
// returning an empty list.
func NewServer(addr string, store *session.Store, logs *logging.RingBuffer) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(ginLogger(), ginRecovery())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	engine.GET("/v0/sessions", func(c *gin.Context) {
		infos := store.Snapshot()
		sort.Slice(infos, func(i, j int) bool { return infos[i].LastSeen.After(infos[j].LastSeen) })
		c.JSON(http.StatusOK, gin.H{
			"lastSeen": store.LastSeen(),
			"sessions": infos,
		})
	})

	engine.GET("/v0/logs", func(c *gin.Context) {
		n, _ := strconv.Atoi(c.DefaultQuery("n", "100"))
		entries := []logging.Entry{}
		if logs != nil {
			entries = logs.Tail(n)
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	})

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{
		engine: engine,
		http: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves in a background goroutine.
func (s *Server) Start() {
	go func() {
		log.WithField("addr", s.http.Addr).Info("debug api listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("debug api server stopped")
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
