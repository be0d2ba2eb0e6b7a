package clusterserver

import (
	"io"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/chunker"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/log"
)

// chunkPath pulls the path query parameter and reports whether it's shaped
// like a genuine chunk path, writing the 400 response itself on failure so
// handlers only need to check ok. The parameter comes straight off an
// unauthenticated request, so a crafted "../../../../etc/passwd" must be
// turned away here, before a handler ever passes it to the store.
func chunkPath(c echo.Context) (path string, ok bool) {
	path = c.QueryParam("path")
	if path == "" {
		_ = c.JSON(http.StatusBadRequest, map[string]string{"error": "path parameter is required"})
		return "", false
	}
	if !chunker.ValidChunkPath(path) {
		_ = c.JSON(http.StatusBadRequest, map[string]string{"error": "path parameter is not a valid chunk path"})
		return "", false
	}
	return path, true
}

func (s *Server) putChunk(c echo.Context) error {
	path, ok := chunkPath(c)
	if !ok {
		return nil
	}

	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("clusterserver: failed to read chunk body")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to read request body"})
	}

	if err := s.store.WriteChunk(path, data); err != nil {
		log.Error().Err(err).Str("path", path).Msg("clusterserver: failed to write chunk")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to write chunk"})
	}

	return c.NoContent(http.StatusCreated)
}

func (s *Server) getChunk(c echo.Context) error {
	path, ok := chunkPath(c)
	if !ok {
		return nil
	}

	if err := s.store.CopyTo(c.Response().Writer, path); err != nil {
		if os.IsNotExist(err) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "chunk not found"})
		}
		log.Error().Err(err).Str("path", path).Msg("clusterserver: failed to stream chunk")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to read chunk"})
	}
	return nil
}

func (s *Server) deleteChunk(c echo.Context) error {
	path, ok := chunkPath(c)
	if !ok {
		return nil
	}

	if err := s.store.DeleteChunk(path); err != nil {
		log.Error().Err(err).Str("path", path).Msg("clusterserver: failed to delete chunk")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to delete chunk"})
	}
	return c.NoContent(http.StatusOK)
}
