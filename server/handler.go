package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chaos-io/cutout/rembg"
	"github.com/chaos-io/cutout/segment"
	"github.com/chaos-io/cutout/storage"
)

const maxEventBytes = 1 << 20

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleSegment(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "failed to read request body", "requestId": c.GetString(requestIDKey)})
		return
	}
	if len(raw) > maxEventBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"ok":        false,
			"error":     fmt.Sprintf("request body exceeds %d bytes", maxEventBytes),
			"requestId": c.GetString(requestIDKey),
		})
		return
	}

	res, err := s.seg.Process(c.Request.Context(), raw)
	if err != nil {
		status := statusFor(err)
		body := gin.H{"ok": false, "error": err.Error(), "requestId": c.GetString(requestIDKey)}
		var stageErr *segment.StageError
		if errors.As(err, &stageErr) {
			body["stage"] = stageErr.Stage
		}
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, res)
}

func statusFor(err error) int {
	var stageErr *segment.StageError
	switch {
	case errors.As(err, &stageErr) && stageErr.Stage == segment.StageNormalize:
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, rembg.ErrRemoval):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
