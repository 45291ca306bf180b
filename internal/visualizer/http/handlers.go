package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roomi-app/roomi-backend/internal/auth"
	"github.com/roomi-app/roomi-backend/internal/visualizer"
)

func (h *Handler) activate(c *gin.Context) {
	var req activateReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
			return
		}
	}

	id := c.Param("id")
	s := h.registry.Open(auth.UserFirebaseUID(c), id)
	snap := s.Controller.Activate(c.Request.Context(), id, req.Seed)

	c.JSON(http.StatusOK, gin.H{"ok": true, "snapshot": snap, "slider": s.Slider.Layout()})
}

func (h *Handler) snapshot(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "snapshot": s.Controller.Snapshot(), "slider": s.Slider.Layout()})
}

func (h *Handler) deactivate(c *gin.Context) {
	if !h.registry.Close(auth.UserFirebaseUID(c), c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "visualizer not active"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) regenerate(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if !s.Controller.Regenerate(c.Request.Context()) {
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": "generation not possible right now", "snapshot": s.Controller.Snapshot()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"ok": true, "snapshot": s.Controller.Snapshot()})
}

func (h *Handler) share(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req shareReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
			return
		}
	}

	var settled bool
	if req.Public != nil {
		settled = s.Controller.SetVisibility(c.Request.Context(), *req.Public)
	} else {
		settled = s.Controller.ToggleShare(c.Request.Context())
	}

	snap := s.Controller.Snapshot()
	switch {
	case settled:
		c.JSON(http.StatusOK, gin.H{"ok": true, "snapshot": snap})
	case snap.Share == visualizer.ShareFailed:
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": "failed to update sharing", "snapshot": snap})
	default:
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": "sharing not available", "snapshot": snap})
	}
}

func (h *Handler) export(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	art, err := s.Controller.Export()
	if err != nil {
		if errors.Is(err, visualizer.ErrNothingToExport) {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "no render to export"})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Filename))
	c.Data(http.StatusOK, art.MimeType, art.Data)
}

func (h *Handler) slide(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req sliderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	switch req.Event {
	case "begin":
		s.Slider.BeginDrag()
	case "move":
		if req.Touch {
			s.Slider.Touch(req.ClientX, req.Rect)
		} else {
			s.Slider.Move(req.ClientX, req.Rect)
		}
	case "end":
		s.Slider.EndDrag()
	case "release":
		s.Document.Release()
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "slider": s.Slider.Layout()})
}

func (h *Handler) session(c *gin.Context) (*visualizer.Session, bool) {
	s, ok := h.registry.Lookup(auth.UserFirebaseUID(c), c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "visualizer not active"})
		return nil, false
	}
	return s, true
}
