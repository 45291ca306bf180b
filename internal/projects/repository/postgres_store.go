package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roomi-app/roomi-backend/internal/projects/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
  id             TEXT PRIMARY KEY,
  owner_id       TEXT NOT NULL,
  name           TEXT NOT NULL,
  source_image   TEXT NOT NULL CHECK (source_image <> ''),
  rendered_image TEXT,
  created_ms     BIGINT NOT NULL,
  is_public      BOOLEAN NOT NULL DEFAULT FALSE,
  updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS projects_owner_idx ON projects (owner_id);
CREATE INDEX IF NOT EXISTS projects_public_idx ON projects (is_public) WHERE is_public;
`

const projectColumns = `id, owner_id, name, source_image, coalesce(rendered_image, ''), created_ms, is_public, updated_at`

// PostgresStore keeps projects in a single table.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the projects table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, p *domain.Project) (*domain.Project, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	const q = `
INSERT INTO projects (id, owner_id, name, source_image, rendered_image, created_ms, is_public, updated_at)
VALUES ($1, $2, $3, $4, nullif($5, ''), $6, $7, now())
ON CONFLICT (id) DO UPDATE SET
  owner_id = EXCLUDED.owner_id,
  name = EXCLUDED.name,
  source_image = EXCLUDED.source_image,
  rendered_image = EXCLUDED.rendered_image,
  created_ms = EXCLUDED.created_ms,
  is_public = EXCLUDED.is_public,
  updated_at = now()
RETURNING ` + projectColumns

	row := s.db.QueryRow(ctx, q, p.ID, p.OwnerID, p.Name, p.SourceImage, p.RenderedImage, p.Timestamp, p.IsPublic)
	return scanProject(row)
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	q := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	return scanProject(s.db.QueryRow(ctx, q, id))
}

func (s *PostgresStore) List(ctx context.Context, ownerID string) ([]domain.Project, error) {
	q := `SELECT ` + projectColumns + ` FROM projects WHERE owner_id = $1`
	return s.query(ctx, q, ownerID)
}

func (s *PostgresStore) ListPublic(ctx context.Context) ([]domain.Project, error) {
	q := `SELECT ` + projectColumns + ` FROM projects WHERE is_public`
	return s.query(ctx, q)
}

func (s *PostgresStore) Update(ctx context.Context, id string, upd domain.Update) (*domain.Project, error) {
	const q = `
UPDATE projects SET
  name = coalesce($2, name),
  rendered_image = coalesce($3, rendered_image),
  is_public = coalesce($4, is_public),
  updated_at = now()
WHERE id = $1
RETURNING ` + projectColumns

	return scanProject(s.db.QueryRow(ctx, q, id, upd.Name, upd.RenderedImage, upd.IsPublic))
}

func (s *PostgresStore) Delete(ctx context.Context, id string) (bool, error) {
	ct, err := s.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete project: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (s *PostgresStore) query(ctx context.Context, q string, args ...any) ([]domain.Project, error) {
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Project, 0, 16)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanProject(row pgx.Row) (*domain.Project, error) {
	var (
		p         domain.Project
		updatedAt time.Time
	)
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.SourceImage, &p.RenderedImage, &p.Timestamp, &p.IsPublic, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.UpdatedAt = updatedAt
	return &p, nil
}
