package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roomi-app/roomi-backend/internal/projects/domain"
)

const (
	projectKeyPrefix = "roomi:project:" // roomi:project:{id} -> project JSON
	ownerSetPrefix   = "roomi:user:"    // roomi:user:{owner}:projects -> set of ids
	publicSetKey     = "roomi:public"   // set of public project ids

	maxWatchRetries = 16
)

// RedisStore keeps projects as JSON values with owner and public index sets.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (r *RedisStore) Create(ctx context.Context, p *domain.Project) (*domain.Project, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	out := *p
	err := r.watch(ctx, p.ID, func(tx *redis.Tx) error {
		existing, err := r.get(ctx, tx.Get, p.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		out.UpdatedAt = r.now()
		return r.commit(ctx, tx, &out, existing)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save project: %w", err)
	}
	return &out, nil
}

func (r *RedisStore) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	return r.get(ctx, r.client.Get, id)
}

type getFunc func(ctx context.Context, key string) *redis.StringCmd

func (r *RedisStore) get(ctx context.Context, get getFunc, id string) (*domain.Project, error) {
	data, err := get(ctx, projectKey(id)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	var p domain.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal project: %w", err)
	}
	return &p, nil
}

func (r *RedisStore) List(ctx context.Context, ownerID string) ([]domain.Project, error) {
	ids, err := r.client.SMembers(ctx, ownerSetKey(ownerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list projects for user: %w", err)
	}
	return r.loadAll(ctx, ids)
}

func (r *RedisStore) ListPublic(ctx context.Context) ([]domain.Project, error) {
	ids, err := r.client.SMembers(ctx, publicSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list public projects: %w", err)
	}
	return r.loadAll(ctx, ids)
}

// Update merges upd into the stored record. The read and the write run
// under WATCH so concurrent updates of different fields both land.
func (r *RedisStore) Update(ctx context.Context, id string, upd domain.Update) (*domain.Project, error) {
	var merged domain.Project
	err := r.watch(ctx, id, func(tx *redis.Tx) error {
		existing, err := r.get(ctx, tx.Get, id)
		if err != nil {
			return err
		}
		merged = upd.Apply(*existing, r.now())
		return r.commit(ctx, tx, &merged, existing)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return &merged, nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) (bool, error) {
	existing, err := r.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, projectKey(id))
	pipe.SRem(ctx, ownerSetKey(existing.OwnerID), id)
	pipe.SRem(ctx, publicSetKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to delete project: %w", err)
	}
	return true, nil
}

// watch runs fn with projectKey(id) watched, retrying when another
// client changed the key before fn committed.
func (r *RedisStore) watch(ctx context.Context, id string, fn func(tx *redis.Tx) error) error {
	for i := 0; i < maxWatchRetries; i++ {
		err := r.client.Watch(ctx, fn, projectKey(id))
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("project %s: %w", id, redis.TxFailedErr)
}

// commit stores p and moves its index entries away from prev's.
func (r *RedisStore) commit(ctx context.Context, tx *redis.Tx, p *domain.Project, prev *domain.Project) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal project: %w", err)
	}

	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, projectKey(p.ID), data, 0)
		if prev != nil && prev.OwnerID != p.OwnerID {
			pipe.SRem(ctx, ownerSetKey(prev.OwnerID), p.ID)
		}
		pipe.SAdd(ctx, ownerSetKey(p.OwnerID), p.ID)
		if p.IsPublic {
			pipe.SAdd(ctx, publicSetKey, p.ID)
		} else {
			pipe.SRem(ctx, publicSetKey, p.ID)
		}
		return nil
	})
	return err
}

func (r *RedisStore) loadAll(ctx context.Context, ids []string) ([]domain.Project, error) {
	out := make([]domain.Project, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = projectKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}

	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// index entry whose value is gone
			continue
		}
		var p domain.Project
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal project: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

func projectKey(id string) string {
	return projectKeyPrefix + id
}

func ownerSetKey(ownerID string) string {
	return fmt.Sprintf("%s%s:projects", ownerSetPrefix, ownerID)
}
