package slider

import "sync"

const (
	DefaultPosition = 50.0

	DefaultBeforeLabel = "2D Plan"
	DefaultAfterLabel  = "AI Render"
)

// Rect is the horizontal extent of the comparison container in client
// coordinates.
type Rect struct {
	Left  float64 `json:"left"`
	Width float64 `json:"width"`
}

// Slider maps a horizontal pointer offset to a reveal percentage between
// a "before" and an "after" image.
type Slider struct {
	mu       sync.Mutex
	position float64
	dragging bool
	labels   Labels
}

type Labels struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

type Option func(*Slider)

func WithLabels(before, after string) Option {
	return func(s *Slider) {
		if before != "" {
			s.labels.Before = before
		}
		if after != "" {
			s.labels.After = after
		}
	}
}

func New(opts ...Option) *Slider {
	s := &Slider{
		position: DefaultPosition,
		labels:   Labels{Before: DefaultBeforeLabel, After: DefaultAfterLabel},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Slider) BeginDrag() {
	s.mu.Lock()
	s.dragging = true
	s.mu.Unlock()
}

func (s *Slider) EndDrag() {
	s.mu.Lock()
	s.dragging = false
	s.mu.Unlock()
}

// Move recomputes the position from clientX while a drag is active.
// Coordinates outside the container pin the divider at 0 or 100. A
// zero-width container leaves the position unchanged.
func (s *Slider) Move(clientX float64, rect Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dragging || rect.Width <= 0 {
		return
	}
	s.position = positionFor(clientX, rect)
}

// Touch handles a touch move; it shares the pointer path.
func (s *Slider) Touch(clientX float64, rect Rect) {
	s.Move(clientX, rect)
}

func (s *Slider) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

func (s *Slider) Dragging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dragging
}

func positionFor(clientX float64, rect Rect) float64 {
	x := clientX - rect.Left
	if x < 0 {
		x = 0
	}
	if x > rect.Width {
		x = rect.Width
	}
	return x / rect.Width * 100
}
