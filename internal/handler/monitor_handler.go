package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/modexam-backend/internal/model"
	"github.com/stemsi/modexam-backend/internal/response"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// TestMonitor is the live progress source behind the admin monitor.
type TestMonitor interface {
	TestProgress(ctx context.Context, testUID uuid.UUID) (*model.TestProgress, error)
	Watch(ctx context.Context, testUID uuid.UUID) (<-chan string, func() error)
}

// MonitorHandler streams the progress of a test's sessions to admins.
type MonitorHandler struct {
	monitor TestMonitor
	log     zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(monitor TestMonitor, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		monitor: monitor,
		log:     log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorTestSSE godoc
// GET /api/v1/admin/tests/:id/monitor
// Sends a full snapshot, then forwards session events as they happen and
// re-sends the snapshot periodically while there is activity.
func (h *MonitorHandler) MonitorTestSSE(c *gin.Context) {
	uid, ok := testID(c)
	if !ok {
		return
	}

	reqCtx := c.Request.Context()
	progress, err := h.monitor.TestProgress(reqCtx, uid)
	if err != nil {
		fail(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Status(http.StatusOK)

	c.SSEvent("snapshot", progress)
	c.Writer.Flush()

	events, closeWatch := h.monitor.Watch(reqCtx, uid)
	defer closeWatch()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()
	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	// Skip refresh queries until something has changed.
	dirty := false

	h.log.Info().Str("test_id", uid.String()).Msg("Admin attached to live monitor")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("test_id", uid.String()).Msg("Admin detached from live monitor")
			return

		case payload, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent("session", json.RawMessage(payload))
			c.Writer.Flush()
			dirty = true

		case <-refreshTicker.C:
			if !dirty {
				continue
			}
			h.sendRefresh(c, reqCtx, uid)
			dirty = false

		case <-keepAliveTicker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().Unix()})
			c.Writer.Flush()
		}
	}
}

func (h *MonitorHandler) sendRefresh(c *gin.Context, parentCtx context.Context, uid uuid.UUID) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	progress, err := h.monitor.TestProgress(ctx, uid)
	if err != nil {
		h.log.Warn().Err(err).Str("test_id", uid.String()).Msg("Monitor refresh failed")
		_, code := errorStatus(err)
		c.SSEvent("error", gin.H{"code": code, "error": response.GetMessage(code)})
		c.Writer.Flush()
		return
	}
	c.SSEvent("snapshot", progress)
	c.Writer.Flush()
}
