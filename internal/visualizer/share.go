package visualizer

import (
	"context"

	"github.com/roomi-app/roomi-backend/internal/projects/domain"
)

// SetVisibility persists the public flag as an absolute value. It runs
// alongside generation and never touches the latch. The returned bool
// reports whether the write settled.
func (c *Controller) SetVisibility(ctx context.Context, public bool) bool {
	c.mu.Lock()
	if !c.active || c.project == nil || c.readOnly || c.share == SharePending {
		c.mu.Unlock()
		return false
	}
	c.share = SharePending
	epoch := c.epoch
	target := *c.project
	target.IsPublic = public
	c.publishUnlock()

	_, err := c.persist(ctx, target, domain.Update{IsPublic: domain.BoolPtr(public)})

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return err == nil
	}
	if err != nil {
		c.log.Error().Err(err).Str("project_id", target.ID).Bool("public", public).Msg("failed to update visibility")
		c.share = ShareFailed
		c.notice = noticeShareFailed
		c.publishUnlock()
		return false
	}

	c.share = ShareSettled
	if c.project != nil {
		p := *c.project
		p.IsPublic = public
		c.project = &p
	}
	c.publishUnlock()
	return true
}

// ToggleShare flips the current visibility.
func (c *Controller) ToggleShare(ctx context.Context) bool {
	c.mu.Lock()
	if c.project == nil {
		c.mu.Unlock()
		return false
	}
	next := !c.project.IsPublic
	c.mu.Unlock()

	return c.SetVisibility(ctx, next)
}
