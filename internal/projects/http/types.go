package http

import "github.com/roomi-app/roomi-backend/internal/projects/service"

// Handler bundles the dependencies for projects HTTP endpoints.
type Handler struct {
	svc *service.ProjectService
}

func New(svc *service.ProjectService) *Handler {
	return &Handler{svc: svc}
}

type saveReq struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	SourceImage   string `json:"source_image"`
	RenderedImage string `json:"rendered_image"`
	Timestamp     int64  `json:"timestamp"`
}

// patchReq has no visibility field; sharing goes through the visualizer.
type patchReq struct {
	Name          *string `json:"name"`
	RenderedImage *string `json:"rendered_image"`
}
