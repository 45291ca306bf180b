package slider

import (
	"fmt"
	"strconv"
)

// Layout describes how the two images are stacked for the current
// position. The after image is the full-size base layer; the before image
// sits on top, clipped from the right.
type Layout struct {
	Position   float64 `json:"position"`
	Dragging   bool    `json:"dragging"`
	BeforeClip string  `json:"before_clip"`
	HandleLeft string  `json:"handle_left"`
	Labels     Labels  `json:"labels"`
}

func (s *Slider) Layout() Layout {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Layout{
		Position:   s.position,
		Dragging:   s.dragging,
		BeforeClip: fmt.Sprintf("inset(0 %s%% 0 0)", percent(100-s.position)),
		HandleLeft: percent(s.position) + "%",
		Labels:     s.labels,
	}
}

func percent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
