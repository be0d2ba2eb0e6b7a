package headserver

import (
	"errors"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/chunker"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/log"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/metastore"
)

func (s *Server) uploadFile(c echo.Context) error {
	name := c.Param("name")
	if name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}

	candidates := s.candidates.GetOnlineBackends()
	if len(candidates) == 0 {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "no cluster servers available"})
	}

	ctx := c.Request().Context()
	placement, err := chunker.SplitAndStore(ctx, c.Request().Body, name, candidates, s.replicationFactor, newRNG(), s.transport)
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("headserver: split and store failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to store file"})
	}

	if err := metastore.WritePlacement(ctx, s.store, placement); err != nil {
		log.Error().Err(err).Str("name", name).Msg("headserver: failed to persist placement")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to persist placement"})
	}

	return c.JSON(http.StatusCreated, map[string]int{
		"chunks": placement.NumChunks(),
	})
}

func (s *Server) downloadFile(c echo.Context) error {
	name := c.Param("name")
	ctx := c.Request().Context()

	placement, err := metastore.ReadPlacement(ctx, s.store, name)
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("headserver: failed to read placement")
		return c.JSON(http.StatusNotFound, map[string]string{"error": "file not found"})
	}
	if placement.NumChunks() == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "file not found"})
	}

	// Reconstruct into a temp file first, never onto the response writer
	// directly: a reconstruction gap discovered partway through would
	// otherwise be served as a truncated 200, since WriteHeader commits the
	// response and makes Echo's error handler a no-op from that point on.
	// Only a fully-materialized, already-validated file gets served.
	tmp, err := os.CreateTemp("", "download-*")
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("headserver: failed to stage download")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to stage download"})
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := chunker.Reconstruct(ctx, placement, s.transport, tmp); err != nil {
		_ = tmp.Close()
		if errors.Is(err, chunker.ErrReconstructionGap) {
			log.Error().Err(err).Str("name", name).Msg("headserver: reconstruction gap")
		} else {
			log.Error().Err(err).Str("name", name).Msg("headserver: reconstruction failed")
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to reconstruct file"})
	}
	if err := tmp.Close(); err != nil {
		log.Error().Err(err).Str("name", name).Msg("headserver: failed to flush staged download")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to stage download"})
	}

	c.Response().Header().Set(echo.HeaderContentType, "application/octet-stream")
	return c.File(tmpPath)
}

func (s *Server) deleteFile(c echo.Context) error {
	name := c.Param("name")
	ctx := c.Request().Context()

	placement, err := metastore.ReadPlacement(ctx, s.store, name)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "file not found"})
	}

	if err := chunker.DeleteReplicas(ctx, placement, s.transport); err != nil {
		log.Warn().Err(err).Str("name", name).Msg("headserver: some replica deletes failed")
	}

	if err := metastore.DeleteEntry(ctx, s.store, name); err != nil {
		log.Error().Err(err).Str("name", name).Msg("headserver: failed to delete placement entry")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to delete placement"})
	}

	return c.NoContent(http.StatusOK)
}
