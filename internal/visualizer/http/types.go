package http

import (
	"time"

	"github.com/roomi-app/roomi-backend/internal/projects/domain"
	"github.com/roomi-app/roomi-backend/internal/slider"
	"github.com/roomi-app/roomi-backend/internal/visualizer"
)

// Handler serves visualizer sessions over HTTP.
type Handler struct {
	registry  *visualizer.Registry
	events    *visualizer.Events
	keepAlive time.Duration
}

func New(registry *visualizer.Registry, events *visualizer.Events) *Handler {
	return &Handler{registry: registry, events: events, keepAlive: 15 * time.Second}
}

type activateReq struct {
	Seed *domain.Seed `json:"seed"`
}

type shareReq struct {
	// Public sets an absolute value; nil toggles.
	Public *bool `json:"public"`
}

type sliderReq struct {
	Event   string      `json:"event" binding:"required,oneof=begin move end release"`
	ClientX float64     `json:"client_x"`
	Rect    slider.Rect `json:"rect"`
	Touch   bool        `json:"touch"`
}
