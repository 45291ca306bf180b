package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roomi-app/roomi-backend/internal/projects/domain"
	"github.com/roomi-app/roomi-backend/internal/projects/repository"
)

// ProjectService applies ownership and visibility rules on top of a Store.
type ProjectService struct {
	store repository.Store
	now   func() time.Time
}

func NewProjectService(store repository.Store) *ProjectService {
	return &ProjectService{store: store, now: time.Now}
}

// CreateInput is what an upload or save request supplies.
type CreateInput struct {
	ID            string
	Name          string
	SourceImage   string
	RenderedImage string
	Timestamp     int64
}

// Create upserts a project owned by ownerID. A missing id or timestamp is
// minted from the current time. Saving over an existing record keeps its
// timestamp, visibility and any render the input leaves blank.
func (s *ProjectService) Create(ctx context.Context, ownerID string, in CreateInput) (*domain.Project, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: owner required", domain.ErrInvalidProject)
	}

	now := s.now()
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = domain.NewProjectID(now)
	}

	existing, err := s.store.GetByID(ctx, id)
	switch {
	case err == nil:
		if existing.OwnerID != ownerID {
			return nil, domain.ErrForbidden
		}
		if existing.SourceImage != in.SourceImage {
			return nil, fmt.Errorf("%w: source image is immutable", domain.ErrInvalidProject)
		}
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	ts, public, rendered := in.Timestamp, false, in.RenderedImage
	if existing != nil {
		ts, public = existing.Timestamp, existing.IsPublic
		if rendered == "" {
			rendered = existing.RenderedImage
		}
	}
	if ts == 0 {
		ts = now.UnixMilli()
	}

	p := &domain.Project{
		ID:            id,
		OwnerID:       ownerID,
		Name:          domain.DisplayName(in.Name, id),
		SourceImage:   in.SourceImage,
		RenderedImage: rendered,
		Timestamp:     ts,
		IsPublic:      public,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return s.store.Create(ctx, p)
}

// Get returns a project the viewer owns or one that is public.
func (s *ProjectService) Get(ctx context.Context, viewerID, id string) (*domain.Project, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.VisibleTo(viewerID) {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

// List returns the owner's projects, newest first.
func (s *ProjectService) List(ctx context.Context, ownerID string) ([]domain.Project, error) {
	items, err := s.store.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	domain.SortNewestFirst(items)
	return items, nil
}

// Community returns every public project, newest first.
func (s *ProjectService) Community(ctx context.Context) ([]domain.Project, error) {
	items, err := s.store.ListPublic(ctx)
	if err != nil {
		return nil, err
	}
	domain.SortNewestFirst(items)
	return items, nil
}

func (s *ProjectService) Update(ctx context.Context, ownerID, id string, upd domain.Update) (*domain.Project, error) {
	if upd.IsEmpty() {
		return nil, domain.ErrEmptyUpdate
	}
	if err := s.authorize(ctx, ownerID, id); err != nil {
		return nil, err
	}
	return s.store.Update(ctx, id, upd)
}

func (s *ProjectService) Delete(ctx context.Context, ownerID, id string) (bool, error) {
	if err := s.authorize(ctx, ownerID, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return s.store.Delete(ctx, id)
}

// Listing returns the owner's projects as a Listing whose removals go
// through the same owner check as Delete.
func (s *ProjectService) Listing(ctx context.Context, ownerID string) (*Listing, error) {
	items, err := s.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return NewListing(ownerDeleter{svc: s, ownerID: ownerID}, items), nil
}

type ownerDeleter struct {
	svc     *ProjectService
	ownerID string
}

func (d ownerDeleter) Delete(ctx context.Context, id string) (bool, error) {
	return d.svc.Delete(ctx, d.ownerID, id)
}

func (s *ProjectService) authorize(ctx context.Context, ownerID, id string) error {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p.OwnerID != ownerID {
		// other users' private projects are indistinguishable from missing ones
		if !p.IsPublic {
			return domain.ErrNotFound
		}
		return domain.ErrForbidden
	}
	return nil
}
