package repository

import (
	"context"

	"github.com/roomi-app/roomi-backend/internal/projects/domain"
)

// Store is the persistence contract for projects.
//
// Create is an idempotent upsert keyed by project ID. GetByID and Update
// return domain.ErrNotFound for unknown ids. List results are unordered.
type Store interface {
	Create(ctx context.Context, p *domain.Project) (*domain.Project, error)
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	List(ctx context.Context, ownerID string) ([]domain.Project, error)
	ListPublic(ctx context.Context) ([]domain.Project, error)
	Update(ctx context.Context, id string, upd domain.Update) (*domain.Project, error)
	Delete(ctx context.Context, id string) (bool, error)
}
