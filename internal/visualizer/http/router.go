package http

import "github.com/gin-gonic/gin"

// Register attaches visualizer routes. generate middleware runs only on the
// routes that can start a render: activate and regenerate.
func (h *Handler) Register(rg *gin.RouterGroup, generate ...gin.HandlerFunc) {
	rg.POST("/:id", chain(generate, h.activate)...)
	rg.GET("/:id", h.snapshot)
	rg.DELETE("/:id", h.deactivate)
	rg.POST("/:id/regenerate", chain(generate, h.regenerate)...)
	rg.POST("/:id/share", h.share)
	rg.GET("/:id/export", h.export)
	rg.GET("/:id/events", h.stream)
	rg.POST("/:id/slider", h.slide)
}

func chain(mw []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(mw)+1)
	out = append(out, mw...)
	return append(out, h)
}
