package visualizer

import "github.com/roomi-app/roomi-backend/internal/projects/domain"

type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateReady         State = "ready"
	StateGenerating    State = "generating"
	StateFailed        State = "failed"
	// StateEmpty means there is nothing to display: the project does not
	// exist and no seed was supplied.
	StateEmpty State = "empty"
)

type ShareStatus string

const (
	ShareIdle    ShareStatus = "idle"
	SharePending ShareStatus = "pending"
	ShareSettled ShareStatus = "settled"
	ShareFailed  ShareStatus = "failed"
)

const (
	noticeLoadFailed     = "Could not load this project. Try again later."
	noticeRenderFailed   = "Render generation failed. Showing the original plan."
	noticeInvalidSource  = "This floor plan cannot be rendered."
	noticeShareFailed    = "Could not update sharing."
	warningPersistFailed = "Render created but could not be saved."
)

// Comparison is the before/after pair shown by the slider.
type Comparison struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

// Snapshot is what the view displays at one instant. Version increases
// with every change so stream consumers can drop stale frames.
type Snapshot struct {
	Version      uint64          `json:"version"`
	ProjectID    string          `json:"project_id"`
	State        State           `json:"state"`
	HasRender    bool            `json:"has_render"`
	Project      *domain.Project `json:"project,omitempty"`
	DisplayImage string          `json:"display_image,omitempty"`
	Comparison   *Comparison     `json:"comparison,omitempty"`
	Generating   bool            `json:"generating"`
	Saved        bool            `json:"saved"`
	ReadOnly     bool            `json:"read_only"`
	Notice       string          `json:"notice,omitempty"`
	Warning      string          `json:"warning,omitempty"`
	Share        ShareStatus     `json:"share"`
}
