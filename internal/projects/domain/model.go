package domain

import (
	"fmt"
	"strings"
	"time"
)

// Project pairs an uploaded floor plan with its AI render.
// ID and SourceImage never change after creation.
type Project struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Name          string    `json:"name"`
	SourceImage   string    `json:"source_image"`
	RenderedImage string    `json:"rendered_image,omitempty"`
	Timestamp     int64     `json:"timestamp"`
	IsPublic      bool      `json:"is_public"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (p *Project) HasRender() bool {
	return p != nil && p.RenderedImage != ""
}

// VisibleTo reports whether viewerID may read the project.
func (p *Project) VisibleTo(viewerID string) bool {
	if p == nil {
		return false
	}
	return p.IsPublic || (viewerID != "" && p.OwnerID == viewerID)
}

// Validate checks the invariants every persisted project must hold.
func (p *Project) Validate() error {
	if p == nil {
		return ErrInvalidProject
	}
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: id required", ErrInvalidProject)
	}
	if strings.TrimSpace(p.SourceImage) == "" {
		return fmt.Errorf("%w: source image required", ErrInvalidProject)
	}
	return nil
}

// Update is a partial write. It has no ID or SourceImage field so those
// can never be changed through it.
type Update struct {
	Name          *string `json:"name,omitempty"`
	RenderedImage *string `json:"rendered_image,omitempty"`
	IsPublic      *bool   `json:"is_public,omitempty"`
}

func (u Update) IsEmpty() bool {
	return u.Name == nil && u.RenderedImage == nil && u.IsPublic == nil
}

// Apply merges u into a copy of p and stamps UpdatedAt.
func (u Update) Apply(p Project, now time.Time) Project {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.RenderedImage != nil {
		p.RenderedImage = *u.RenderedImage
	}
	if u.IsPublic != nil {
		p.IsPublic = *u.IsPublic
	}
	p.UpdatedAt = now
	return p
}

// Seed is data a calling view already holds for a project, used to skip
// the load round-trip.
type Seed struct {
	SourceImage   string `json:"source_image"`
	RenderedImage string `json:"rendered_image,omitempty"`
	Name          string `json:"name,omitempty"`
}

func (s *Seed) Usable() bool {
	return s != nil && strings.TrimSpace(s.SourceImage) != ""
}

// Project builds the in-memory record a seed stands for.
func (s *Seed) Project(id string) *Project {
	return &Project{
		ID:            id,
		Name:          DisplayName(s.Name, id),
		SourceImage:   s.SourceImage,
		RenderedImage: s.RenderedImage,
	}
}

// DisplayName falls back to a generated placeholder when name is blank.
func DisplayName(name, id string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return "Residence " + id
}

// StringPtr and BoolPtr build Update fields.
func StringPtr(s string) *string { return &s }

func BoolPtr(b bool) *bool { return &b }
