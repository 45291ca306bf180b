package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/roomi-app/roomi-backend/internal/auth"
	"github.com/roomi-app/roomi-backend/internal/logging"
	"github.com/roomi-app/roomi-backend/internal/projects/domain"
	"github.com/roomi-app/roomi-backend/internal/projects/service"
)

func (h *Handler) save(c *gin.Context) {
	var req saveReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.SourceImage) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	p, err := h.svc.Create(c.Request.Context(), auth.UserFirebaseUID(c), service.CreateInput{
		ID:            req.ID,
		Name:          req.Name,
		SourceImage:   req.SourceImage,
		RenderedImage: req.RenderedImage,
		Timestamp:     req.Timestamp,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ok": true, "project": p})
}

func (h *Handler) list(c *gin.Context) {
	var (
		items []domain.Project
		err   error
	)
	switch c.DefaultQuery("scope", "mine") {
	case "mine":
		items, err = h.svc.List(c.Request.Context(), auth.UserFirebaseUID(c))
	case "community":
		items, err = h.svc.Community(c.Request.Context())
	default:
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "scope must be mine or community"})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	if items == nil {
		items = []domain.Project{}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "projects": items})
}

func (h *Handler) get(c *gin.Context) {
	p, err := h.svc.Get(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

func (h *Handler) patch(c *gin.Context) {
	var req patchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "name cannot be blank"})
			return
		}
		req.Name = &name
	}

	p, err := h.svc.Update(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("id"), domain.Update{
		Name:          req.Name,
		RenderedImage: req.RenderedImage,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

// delete removes the project and answers with the caller's remaining
// projects in their original order.
func (h *Handler) delete(c *gin.Context) {
	ctx := c.Request.Context()
	listing, err := h.svc.Listing(ctx, auth.UserFirebaseUID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if err := listing.Remove(ctx, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "projects": listing.Items()})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "project not found"})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": "access denied"})
	case errors.Is(err, domain.ErrInvalidProject), errors.Is(err, domain.ErrEmptyUpdate):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
	default:
		log := logging.Component("projects")
		log.Error().Err(err).Str("path", c.FullPath()).Msg("project request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "internal error"})
	}
}
