package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roomi-app/roomi-backend/internal/visualizer"
)

// stream pushes controller snapshots using Server-Sent Events.
func (h *Handler) stream(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if h.events == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "streaming disabled"})
		return
	}

	ctx := c.Request.Context()
	updates, err := h.events.Subscribe(ctx, s.Topic)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to subscribe"})
		return
	}

	detach := h.registry.Attach(s)
	defer detach()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // nginx: disable buffering

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "streaming unsupported"})
		return
	}

	last := s.Controller.Snapshot()
	writeEvent(c, "initial", last)
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			fmt.Fprint(c.Writer, ": keep-alive\n\n")
			flusher.Flush()

		case snap, open := <-updates:
			if !open {
				return
			}
			if snap.Version <= last.Version {
				continue
			}
			last = snap
			writeEvent(c, "update", snap)
			flusher.Flush()

			if snap.State == visualizer.StateUninitialized {
				writeEvent(c, "closed", gin.H{"project_id": snap.ProjectID})
				flusher.Flush()
				return
			}
		}
	}
}

func writeEvent(c *gin.Context, event string, payload any) {
	data, _ := json.Marshal(payload)
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, string(data))
}
