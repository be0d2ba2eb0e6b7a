// Package headserver is the client-facing entry point of the grid: it
// splits uploads into chunks and places replicas across cluster servers,
// and reassembles downloads from whichever replicas answer. Candidate
// servers are tracked by polling each cluster server's /node/info endpoint.
package headserver

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/chunker"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/log"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/metastore"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/server/balancer"
)

const shutdownTimeout = 10 * time.Second

// Server is the head server: the chunker and placement engine exposed over
// HTTP.
type Server struct {
	echo              *echo.Echo
	candidates        *balancer.BackendManager
	store             metastore.MetaStore
	transport         chunker.Transport
	replicationFactor int
	version           string
}

// Config carries everything Server needs to start.
type Config struct {
	ClusterServers      []string
	ReplicationFactor   int
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
	Version             string
}

// New creates a Server that places replicas across cfg.ClusterServers.
func New(cfg Config, store metastore.MetaStore, transport chunker.Transport) *Server {
	replicationFactor := cfg.ReplicationFactor
	if replicationFactor <= 0 {
		replicationFactor = chunker.DefaultReplicationFactor
	}

	s := &Server{
		echo:              echo.New(),
		candidates:        balancer.NewBackendManager(cfg.ClusterServers, cfg.HealthCheckInterval, cfg.HealthCheckTimeout),
		store:             store,
		transport:         transport,
		replicationFactor: replicationFactor,
		version:           cfg.Version,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} ${status} ${method} ${uri} (${latency_human})\n",
	}))
	s.echo.Use(middleware.Recover())

	s.echo.POST("/files/:name", s.uploadFile)
	s.echo.GET("/files/:name", s.downloadFile)
	s.echo.DELETE("/files/:name", s.deleteFile)
	s.echo.GET("/candidates", s.listCandidates)
}

// Start runs the HTTP server and candidate poller until SIGINT/SIGTERM,
// then shuts both down gracefully.
func (s *Server) Start(addr string) error {
	s.candidates.Start()

	go func() {
		log.Info().Str("addr", addr).Str("version", s.version).Msg("head server listening")
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("head server startup failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	s.candidates.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("head server shutdown failed")
		return err
	}
	log.Info().Msg("head server stopped")
	return nil
}

func (s *Server) listCandidates(c echo.Context) error {
	return c.JSON(http.StatusOK, s.candidates.GetAllBackendStatus())
}

func newRNG() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // placement randomness, not security-sensitive
}
