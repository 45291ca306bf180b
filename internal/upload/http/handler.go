package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roomi-app/roomi-backend/internal/auth"
	"github.com/roomi-app/roomi-backend/internal/render"
	"github.com/roomi-app/roomi-backend/internal/upload"
)

type Handler struct {
	flow          *upload.Flow
	step          int
	interval      time.Duration
	redirectDelay time.Duration
}

func New(flow *upload.Flow, step int, interval, redirectDelay time.Duration) *Handler {
	return &Handler{flow: flow, step: step, interval: interval, redirectDelay: redirectDelay}
}

// Register attaches the upload route.
func (h *Handler) Register(rg *gin.RouterGroup, mw ...gin.HandlerFunc) {
	rg.POST("", append(mw, h.upload)...)
}

// upload stores the floor plan, then streams simulated analysis progress
// and finally a complete event carrying the visualizer seed.
func (h *Handler) upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "file is required"})
		return
	}
	if fh.Size > h.flow.MaxBytes() {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"ok": false, "error": upload.ErrTooLarge.Error()})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "cannot read file"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.flow.MaxBytes()+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "cannot read file"})
		return
	}

	res, err := h.flow.Complete(c.Request.Context(), auth.UserFirebaseUID(c), data, c.PostForm("name"))
	switch {
	case errors.Is(err, upload.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"ok": false, "error": err.Error()})
		return
	case errors.Is(err, upload.ErrEmptyFile), errors.Is(err, render.ErrNotImage):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"ok": false, "error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to save upload"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusCreated, gin.H{"ok": true, "project_id": res.Project.ID, "seed": res.Seed})
		return
	}

	done := make(chan struct{})
	progress := upload.NewProgress(h.step, h.interval, h.redirectDelay)
	values, err := progress.Start(c.Request.Context(), func() { close(done) })
	if err != nil {
		return
	}

	for v := range values {
		fmt.Fprintf(c.Writer, "event: progress\ndata: {\"progress\":%d}\n\n", v)
		flusher.Flush()
	}

	select {
	case <-c.Request.Context().Done():
		return
	case <-done:
	}

	c.SSEvent("complete", gin.H{"ok": true, "project_id": res.Project.ID, "seed": res.Seed})
	flusher.Flush()
}
