package upload

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/roomi-app/roomi-backend/internal/logging"
	"github.com/roomi-app/roomi-backend/internal/projects/domain"
	"github.com/roomi-app/roomi-backend/internal/projects/service"
	"github.com/roomi-app/roomi-backend/internal/render"
)

const DefaultMaxBytes = 10 << 20

type ProjectCreator interface {
	Create(ctx context.Context, ownerID string, in service.CreateInput) (*domain.Project, error)
}

// Flow turns an uploaded floor plan into a saved project and the seed
// the visualizer opens with.
type Flow struct {
	projects ProjectCreator
	maxBytes int64
	now      func() time.Time
	log      zerolog.Logger
}

func NewFlow(projects ProjectCreator, maxBytes int64) *Flow {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Flow{
		projects: projects,
		maxBytes: maxBytes,
		now:      time.Now,
		log:      logging.Component("upload"),
	}
}

func (f *Flow) MaxBytes() int64 {
	return f.maxBytes
}

type Result struct {
	Project *domain.Project `json:"project"`
	Seed    domain.Seed     `json:"seed"`
}

// Complete validates the upload, stores it as a new project owned by
// ownerID and returns the visualizer seed.
func (f *Flow) Complete(ctx context.Context, ownerID string, data []byte, name string) (*Result, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), f.maxBytes)
	}

	source, err := render.DetectDataURL(data)
	if err != nil {
		return nil, err
	}

	now := f.now()
	p, err := f.projects.Create(ctx, ownerID, service.CreateInput{
		ID:          domain.NewProjectID(now),
		Name:        name,
		SourceImage: source,
		Timestamp:   now.UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}

	f.log.Info().Str("project_id", p.ID).Str("owner", ownerID).Int("bytes", len(data)).Msg("floor plan uploaded")

	return &Result{
		Project: p,
		Seed:    domain.Seed{SourceImage: p.SourceImage, Name: p.Name},
	}, nil
}
