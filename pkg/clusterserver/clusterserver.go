// Package clusterserver is the chunk-storage side of one grid member: an
// HTTP frontend over a local clusterstore.Store, a /node/info endpoint for
// candidate-selection polling, and a background heartbeat sender reporting
// this server's resource sample to the health-checker plane.
package clusterserver

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/clusterstore"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/heartbeat/sender"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/log"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/models"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/reactor"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/sysinfo"
)

const shutdownTimeout = 10 * time.Second

// Server is one cluster server: chunk storage plus heartbeat reporting.
type Server struct {
	echo    *echo.Echo
	store   *clusterstore.Store
	sampler *sysinfo.Sampler

	serverID uint64
	version  string
}

// Config carries everything Server needs to start.
type Config struct {
	ServerID        uint64
	StorageDir      string
	StorageIface    string // network interface sampled for bandwidth
	HeartbeatAddr   string // health-checker's heartbeat receiver address
	AdvertiseIP     string
	Version         string
	HeartbeatPeriod time.Duration
}

// New creates a Server rooted at cfg.StorageDir.
func New(cfg Config) (*Server, error) {
	store, err := clusterstore.New(cfg.StorageDir)
	if err != nil {
		return nil, err
	}

	s := &Server{
		echo:     echo.New(),
		store:    store,
		sampler:  sysinfo.NewSampler(cfg.StorageDir, cfg.StorageIface),
		serverID: cfg.ServerID,
		version:  cfg.Version,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} ${status} ${method} ${uri} (${latency_human})\n",
	}))
	s.echo.Use(middleware.Recover())

	s.echo.PUT("/chunk", s.putChunk)
	s.echo.GET("/chunk", s.getChunk)
	s.echo.DELETE("/chunk", s.deleteChunk)
	s.echo.GET("/node/info", s.nodeInfo)
}

// Start runs the HTTP server and the heartbeat sender until SIGINT/SIGTERM,
// then shuts both down gracefully.
func (s *Server) Start(addr string, cfg Config) error {
	stop := make(chan struct{})

	react, err := reactor.New()
	if err != nil {
		return err
	}

	hbSender := sender.New(react, cfg.ServerID, cfg.AdvertiseIP, cfg.HeartbeatAddr, cfg.HeartbeatPeriod, func() (float64, float64, float64, float64) {
		sample, err := s.sampler.Sample()
		if err != nil {
			log.Warn().Err(err).Msg("clusterserver: resource sample failed")
			return 0, 0, 0, 0
		}
		return sample.CPUUsage, sample.StorageUsed, sample.StorageTotal, sample.NetworkBandwidth
	})

	go func() {
		if err := hbSender.Run(stop); err != nil {
			log.Error().Err(err).Msg("clusterserver: heartbeat sender stopped")
		}
	}()
	go func() {
		if err := react.Run(); err != nil {
			log.Error().Err(err).Msg("clusterserver: reactor stopped")
		}
	}()

	go func() {
		log.Info().Str("addr", addr).Uint64("server_id", cfg.ServerID).Str("version", s.version).
			Msg("cluster server listening")
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("cluster server startup failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	close(stop)
	react.Close()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("cluster server shutdown failed")
		return err
	}
	log.Info().Msg("cluster server stopped")
	return nil
}

func (s *Server) nodeInfo(c echo.Context) error {
	sample, err := s.sampler.Sample()
	if err != nil {
		log.Error().Err(err).Msg("clusterserver: failed to sample resources")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to sample resources"})
	}

	info := models.NodeInfo{
		Storage: models.StorageInfo{
			Total:     uint64(sample.StorageTotal), //nolint:gosec // storage figures are non-negative
			Used:      uint64(sample.StorageUsed),  //nolint:gosec // storage figures are non-negative
			Available: uint64(sample.StorageTotal - sample.StorageUsed),
		},
	}
	return c.JSON(http.StatusOK, info)
}
