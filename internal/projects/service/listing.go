package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/roomi-app/roomi-backend/internal/projects/domain"
)

// Deleter is the slice of the store a Listing needs.
type Deleter interface {
	Delete(ctx context.Context, id string) (bool, error)
}

// Listing is an in-memory, ordered view of projects. Removal only touches
// the view after the store confirms the delete.
type Listing struct {
	mu    sync.Mutex
	items []domain.Project
	store Deleter
}

func NewListing(store Deleter, items []domain.Project) *Listing {
	cp := make([]domain.Project, len(items))
	copy(cp, items)
	return &Listing{items: cp, store: store}
}

func (l *Listing) Items() []domain.Project {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.Project, len(l.items))
	copy(out, l.items)
	return out
}

// Remove deletes id through the store and drops it from the view,
// keeping the relative order of the rest. On any failure the view is
// left untouched.
func (l *Listing) Remove(ctx context.Context, id string) error {
	ok, err := l.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("delete project %s: %w", id, domain.ErrNotFound)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.items[:0:0]
	for _, p := range l.items {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	l.items = kept
	return nil
}
