package visualizer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/roomi-app/roomi-backend/internal/logging"
	"github.com/roomi-app/roomi-backend/internal/projects/domain"
	"github.com/roomi-app/roomi-backend/internal/render"
)

type Renderer interface {
	Generate(ctx context.Context, sourceImage string) (render.Result, error)
}

// Store is the slice of the project store the controller needs.
type Store interface {
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	Create(ctx context.Context, p *domain.Project) (*domain.Project, error)
	Update(ctx context.Context, id string, upd domain.Update) (*domain.Project, error)
}

type Publisher interface {
	Publish(topic string, snap Snapshot)
}

// Deps are the collaborators of one controller. OwnerID is the signed-in
// user the view acts for.
type Deps struct {
	OwnerID   string
	Store     Store
	Renderer  Renderer
	Publisher Publisher
	Topic     string
	Now       func() time.Time
	Logger    *zerolog.Logger
}

type activation struct {
	id      string
	seed    domain.Seed
	hasSeed bool
}

// Controller drives one visualizer view: it loads or seeds a project,
// generates its render at most once per activation, persists the result
// and exposes what should be displayed.
//
// Loads and writes that cross an await boundary capture the activation
// epoch and drop their result if the epoch moved on in the meantime.
// Generations are keyed by the (id, seed) pair they were started for and
// only land while that pair is active.
type Controller struct {
	deps Deps
	log  zerolog.Logger

	mu         sync.Mutex
	epoch      uint64
	version    uint64
	active     bool
	current    activation
	state      State
	project    *domain.Project
	dispatched bool
	inflight   map[activation]int
	saved      bool
	readOnly   bool
	notice     string
	warning    string
	share      ShareStatus

	// persistMu serializes read-then-write persistence so a render and a
	// visibility change never race on the same record.
	persistMu sync.Mutex

	wg sync.WaitGroup
}

func NewController(deps Deps) *Controller {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	log := logging.Component("visualizer")
	if deps.Logger != nil {
		log = *deps.Logger
	}
	return &Controller{
		deps:     deps,
		log:      log.With().Str("owner", deps.OwnerID).Logger(),
		state:    StateUninitialized,
		share:    ShareIdle,
		inflight: make(map[activation]int),
	}
}

// Activate binds the controller to projectID. Re-activating with the same
// id and seed is a no-op while active. After Deactivate the same pair
// starts a new epoch but keeps the generation latch and picks up a
// generation still in flight for it; any other pair resets the latch.
// A usable seed skips the store round-trip.
func (c *Controller) Activate(ctx context.Context, projectID string, seed *domain.Seed) Snapshot {
	next := activation{id: projectID}
	if seed.Usable() {
		next.seed, next.hasSeed = *seed, true
	}

	c.mu.Lock()
	if c.active && c.current == next {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap
	}

	if c.current != next {
		c.dispatched = false
	}
	c.epoch++
	epoch := c.epoch
	c.active = true
	c.current = next
	c.project = nil
	c.saved = false
	c.readOnly = false
	c.notice, c.warning = "", ""
	c.share = ShareIdle

	if next.hasSeed {
		p := next.seed.Project(projectID)
		p.OwnerID = c.deps.OwnerID
		c.project = p
		c.state = StateReady
		c.log.Debug().Str("project_id", projectID).Msg("seeded project")
		if !p.HasRender() {
			c.scheduleLocked(ctx)
		}
		if c.generatingLocked() {
			c.state = StateGenerating
		}
		return c.publishUnlock()
	}

	c.state = StateLoading
	c.publishUnlock()

	p, err := c.deps.Store.GetByID(ctx, projectID)

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return c.Snapshot()
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.state = StateEmpty
	case err != nil:
		c.log.Error().Err(err).Str("project_id", projectID).Msg("failed to load project")
		c.state = StateEmpty
		c.notice = noticeLoadFailed
	case !p.VisibleTo(c.deps.OwnerID):
		c.state = StateEmpty
	default:
		if c.project != nil && c.project.HasRender() && !p.HasRender() {
			// a generation picked up from before Deactivate landed first
			p = c.project
		}
		c.project = p
		c.state = StateReady
		c.saved = p.HasRender()
		c.readOnly = p.OwnerID != c.deps.OwnerID
		if !p.HasRender() && !c.readOnly {
			c.scheduleLocked(ctx)
		}
		if c.generatingLocked() {
			c.state = StateGenerating
		}
	}
	return c.publishUnlock()
}

// Deactivate detaches the controller. Results of work still in flight
// are discarded when they arrive unless the same pair was activated again.
// The last activation and its latch survive so that re-activating the
// same pair never starts a second generation.
func (c *Controller) Deactivate() {
	c.mu.Lock()
	c.epoch++
	c.active = false
	c.state = StateUninitialized
	c.project = nil
	c.notice, c.warning = "", ""
	c.share = ShareIdle
	c.publishUnlock()
}

// Regenerate runs a fresh generation regardless of the latch. It returns
// false without side effects while a generation is already running or
// there is nothing to render.
func (c *Controller) Regenerate(ctx context.Context) bool {
	c.mu.Lock()
	if !c.active || c.project == nil || c.generatingLocked() || c.readOnly {
		c.mu.Unlock()
		return false
	}
	ok := c.dispatchLocked(ctx)
	c.publishUnlock()
	return ok
}

// Wait blocks until every generation started so far has settled.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// scheduleLocked is the automatic entry point guarded by the one-shot latch.
func (c *Controller) scheduleLocked(ctx context.Context) {
	if c.dispatched || c.generatingLocked() {
		return
	}
	c.dispatchLocked(ctx)
}

// generatingLocked reports whether a generation for the current pair is
// still running.
func (c *Controller) generatingLocked() bool {
	return c.active && c.inflight[c.current] > 0
}

// ownsLocked reports whether results for key should still be applied.
func (c *Controller) ownsLocked(key activation) bool {
	return c.active && c.current == key
}

func (c *Controller) finishLocked(key activation) {
	if c.inflight[key]--; c.inflight[key] <= 0 {
		delete(c.inflight, key)
	}
}

func (c *Controller) dispatchLocked(ctx context.Context) bool {
	c.dispatched = true

	src := c.project.SourceImage
	if err := render.ValidateSource(src); err != nil {
		c.log.Warn().Err(err).Str("project_id", c.project.ID).Msg("rejecting source image")
		c.state = StateFailed
		c.notice = noticeInvalidSource
		return false
	}

	c.state = StateGenerating
	c.notice, c.warning = "", ""

	key := c.current
	c.inflight[key]++
	base := *c.project
	bg := context.WithoutCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.generate(bg, key, base)
	}()
	return true
}

func (c *Controller) generate(ctx context.Context, key activation, base domain.Project) {
	started := time.Now()
	res, err := c.deps.Renderer.Generate(ctx, base.SourceImage)
	if err == nil && res.RenderedImage == "" {
		err = errors.New("render service returned no image")
	}

	c.mu.Lock()
	if !c.ownsLocked(key) {
		c.finishLocked(key)
		c.mu.Unlock()
		c.log.Debug().Str("project_id", base.ID).Msg("discarding render for stale activation")
		return
	}
	if err != nil {
		c.finishLocked(key)
		c.log.Error().Err(err).Str("project_id", base.ID).Msg("render generation failed")
		c.state = StateFailed
		c.notice = noticeRenderFailed
		if render.IsInputError(err) {
			c.notice = noticeInvalidSource
		}
		c.publishUnlock()
		return
	}
	c.mu.Unlock()

	c.log.Info().Str("project_id", base.ID).Dur("took", time.Since(started)).Msg("render generated")

	merged := base
	merged.RenderedImage = res.RenderedImage
	stored, perr := c.persist(ctx, merged, domain.Update{RenderedImage: domain.StringPtr(res.RenderedImage)})

	c.mu.Lock()
	c.finishLocked(key)
	if !c.ownsLocked(key) {
		c.mu.Unlock()
		return
	}
	if perr != nil {
		c.log.Error().Err(perr).Str("project_id", base.ID).Msg("failed to persist render")
		c.warning = warningPersistFailed
		c.saved = false
	} else {
		c.saved = true
	}

	shown := merged
	if stored != nil {
		shown = *stored
	}
	if c.project != nil {
		// visibility may have changed while the render was in flight
		shown.IsPublic = c.project.IsPublic
	}
	c.project = &shown
	c.state = StateReady
	c.publishUnlock()
}

// persist writes upd for p. Records that were seeded but never saved are
// created from p instead.
func (c *Controller) persist(ctx context.Context, p domain.Project, upd domain.Update) (*domain.Project, error) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	existing, err := c.deps.Store.GetByID(ctx, p.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if p.Timestamp == 0 {
			p.Timestamp = c.deps.Now().UnixMilli()
		}
		p.OwnerID = c.deps.OwnerID
		return c.deps.Store.Create(ctx, &p)
	case err != nil:
		return nil, err
	case existing.OwnerID != c.deps.OwnerID:
		return nil, fmt.Errorf("persist %s: %w", p.ID, domain.ErrForbidden)
	}
	return c.deps.Store.Update(ctx, p.ID, upd)
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version:    c.version,
		State:      c.state,
		Generating: c.generatingLocked(),
		Saved:      c.saved,
		ReadOnly:   c.readOnly,
		Notice:     c.notice,
		Warning:    c.warning,
		Share:      c.share,
	}
	if c.active {
		snap.ProjectID = c.current.id
	}
	if c.project == nil {
		return snap
	}

	p := *c.project
	snap.Project = &p
	snap.HasRender = p.HasRender()
	snap.DisplayImage = p.SourceImage
	// a failed generation falls back to the source-only view
	if snap.HasRender && c.state != StateFailed {
		snap.DisplayImage = p.RenderedImage
		snap.Comparison = &Comparison{Before: p.SourceImage, After: p.RenderedImage}
	}
	return snap
}

// publishUnlock bumps the version, publishes the resulting snapshot and
// releases the lock. Publishing under the lock keeps frames in order.
func (c *Controller) publishUnlock() Snapshot {
	defer c.mu.Unlock()

	c.version++
	snap := c.snapshotLocked()
	if c.deps.Publisher != nil && c.deps.Topic != "" {
		c.deps.Publisher.Publish(c.deps.Topic, snap)
	}
	return snap
}
