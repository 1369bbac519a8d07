package handler

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/vehicle-status-backend/internal/metrics"
	"github.com/jengzang/vehicle-status-backend/internal/notify"
)

const defaultHeartbeat = 30 * time.Second

// EventsHandler streams vehicle snapshots to live listeners over SSE
type EventsHandler struct {
	hub       *notify.Hub
	heartbeat time.Duration
	now       func() time.Time
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(hub *notify.Hub, heartbeat time.Duration, now func() time.Time) *EventsHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	if now == nil {
		now = time.Now
	}
	return &EventsHandler{hub: hub, heartbeat: heartbeat, now: now}
}

// Stream handles GET /api/v1/events
func (h *EventsHandler) Stream(c *gin.Context) {
	sub := h.hub.Subscribe()
	metrics.EventSubscribers.Set(float64(h.hub.Len()))
	defer func() {
		h.hub.Unsubscribe(sub.ID)
		metrics.EventSubscribers.Set(float64(h.hub.Len()))
	}()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("connected", gin.H{"subscriber_id": sub.ID})
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case vehicle, ok := <-sub.Events:
			if !ok {
				return false
			}
			c.SSEvent("vehicle", vehicle)
			return true
		case <-ticker.C:
			c.SSEvent("heartbeat", gin.H{"timestamp": h.now().Unix()})
			return true
		}
	})
}
