package visualizer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomi-app/roomi-backend/internal/projects/domain"
	"github.com/roomi-app/roomi-backend/internal/projects/repository"
	"github.com/roomi-app/roomi-backend/internal/render"
)

const (
	owner    = "u1"
	planAAA  = "data:image/png;base64,AAA"
	renderBB = "data:image/png;base64,BBB"
)

type fakeRenderer struct {
	mu     sync.Mutex
	calls  int
	srcs   []string
	gate   chan struct{}
	result string
	err    error
}

func (f *fakeRenderer) Generate(_ context.Context, src string) (render.Result, error) {
	f.mu.Lock()
	f.calls++
	f.srcs = append(f.srcs, src)
	gate, res, err := f.gate, f.result, f.err
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return render.Result{RenderedImage: res}, err
}

func (f *fakeRenderer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// flakyStore injects errors in front of a real store.
type flakyStore struct {
	Store
	getErr   error
	writeErr error
	getCalls int
	mu       sync.Mutex
}

func (s *flakyStore) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	s.mu.Lock()
	s.getCalls++
	err := s.getErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Store.GetByID(ctx, id)
}

func (s *flakyStore) Create(ctx context.Context, p *domain.Project) (*domain.Project, error) {
	if s.writeErr != nil {
		return nil, s.writeErr
	}
	return s.Store.Create(ctx, p)
}

func (s *flakyStore) Update(ctx context.Context, id string, upd domain.Update) (*domain.Project, error) {
	if s.writeErr != nil {
		return nil, s.writeErr
	}
	return s.Store.Update(ctx, id, upd)
}

type recordingPublisher struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recordingPublisher) Publish(_ string, snap Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, snap)
	r.mu.Unlock()
}

func (r *recordingPublisher) States() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.snaps))
	for i, s := range r.snaps {
		out[i] = s.State
	}
	return out
}

func setupStore(t *testing.T) *repository.RedisStore {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return repository.NewRedisStore(client)
}

func newController(store Store, r Renderer, pub Publisher) *Controller {
	return NewController(Deps{
		OwnerID:   owner,
		Store:     store,
		Renderer:  r,
		Publisher: pub,
		Topic:     "test",
		Now:       func() time.Time { return time.UnixMilli(5000) },
	})
}

func TestController_SeededGeneratesOnce(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	r := &fakeRenderer{result: renderBB}
	c := newController(store, r, nil)

	seed := &domain.Seed{SourceImage: planAAA, Name: "Loft"}
	snap := c.Activate(ctx, "p1", seed)
	assert.Equal(t, StateGenerating, snap.State)

	// re-render churn with the same id and seed
	for i := 0; i < 3; i++ {
		c.Activate(ctx, "p1", &domain.Seed{SourceImage: planAAA, Name: "Loft"})
	}
	c.Wait()

	assert.Equal(t, 1, r.Calls())

	snap = c.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.True(t, snap.HasRender)
	assert.True(t, snap.Saved)
	assert.Equal(t, renderBB, snap.DisplayImage)

	stored, err := store.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, renderBB, stored.RenderedImage)
	assert.Equal(t, owner, stored.OwnerID)
	assert.Equal(t, "Loft", stored.Name)
	assert.Equal(t, int64(5000), stored.Timestamp)
}

func TestController_LoadedProjectEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	_, err := store.Create(ctx, &domain.Project{
		ID: "p1", OwnerID: owner, Name: "Kitchen", SourceImage: planAAA, Timestamp: 1000, IsPublic: true,
	})
	require.NoError(t, err)

	r := &fakeRenderer{result: renderBB}
	pub := &recordingPublisher{}
	c := newController(store, r, pub)

	c.Activate(ctx, "p1", nil)
	c.Wait()

	snap := c.Snapshot()
	require.Equal(t, StateReady, snap.State)
	require.NotNil(t, snap.Comparison)
	assert.Equal(t, Comparison{Before: planAAA, After: renderBB}, *snap.Comparison)
	assert.Equal(t, []string{planAAA}, r.srcs)

	stored, err := store.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, renderBB, stored.RenderedImage)
	assert.Equal(t, int64(1000), stored.Timestamp)
	assert.True(t, stored.IsPublic)
	assert.Equal(t, "Kitchen", stored.Name)
	assert.Equal(t, planAAA, stored.SourceImage)

	assert.Equal(t, []State{StateLoading, StateGenerating, StateReady}, pub.States())
}

func TestController_SeedWithRenderNeverGenerates(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: setupStore(t)}
	r := &fakeRenderer{result: renderBB}
	c := newController(store, r, nil)

	snap := c.Activate(ctx, "p1", &domain.Seed{SourceImage: planAAA, RenderedImage: renderBB})
	c.Wait()

	assert.Equal(t, StateReady, snap.State)
	assert.True(t, snap.HasRender)
	assert.Equal(t, "Residence p1", snap.Project.Name)
	assert.Equal(t, 0, r.Calls())
	assert.Equal(t, 0, store.getCalls)
}

func TestController_MissingProjectIsEmpty(t *testing.T) {
	r := &fakeRenderer{result: renderBB}
	c := newController(setupStore(t), r, nil)

	snap := c.Activate(context.Background(), "ghost", nil)
	assert.Equal(t, StateEmpty, snap.State)
	assert.Empty(t, snap.Notice)
	assert.Nil(t, snap.Project)
	assert.Equal(t, 0, r.Calls())
}

func TestController_LoadFailureIsEmptyWithNotice(t *testing.T) {
	store := &flakyStore{Store: setupStore(t), getErr: errors.New("connection refused")}
	c := newController(store, &fakeRenderer{}, nil)

	snap := c.Activate(context.Background(), "p1", nil)
	assert.Equal(t, StateEmpty, snap.State)
	assert.Equal(t, noticeLoadFailed, snap.Notice)
}

func TestController_LateResponseIsDiscarded(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	r := &fakeRenderer{result: renderBB, gate: make(chan struct{})}
	c := newController(store, r, nil)

	c.Activate(ctx, "p1", &domain.Seed{SourceImage: planAAA})
	require.Equal(t, StateGenerating, c.Snapshot().State)

	c.Activate(ctx, "p2", &domain.Seed{SourceImage: planAAA, RenderedImage: "data:image/png;base64,CCC"})
	close(r.gate)
	c.Wait()

	snap := c.Snapshot()
	assert.Equal(t, "p2", snap.ProjectID)
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, "data:image/png;base64,CCC", snap.Project.RenderedImage)

	_, err := store.GetByID(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestController_DeactivateDropsInflightResult(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	r := &fakeRenderer{result: renderBB, gate: make(chan struct{})}
	c := newController(store, r, nil)

	c.Activate(ctx, "p1", &domain.Seed{SourceImage: planAAA})
	c.Deactivate()
	close(r.gate)
	c.Wait()

	snap := c.Snapshot()
	assert.Equal(t, StateUninitialized, snap.State)
	assert.Nil(t, snap.Project)

	_, err := store.GetByID(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestController_PersistFailureKeepsRender(t *testing.T) {
	store := &flakyStore{Store: setupStore(t), writeErr: errors.New("disk full")}
	c := newController(store, &fakeRenderer{result: renderBB}, nil)

	c.Activate(context.Background(), "p1", &domain.Seed{SourceImage: planAAA})
	c.Wait()

	snap := c.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, renderBB, snap.DisplayImage)
	assert.False(t, snap.Saved)
	assert.Equal(t, warningPersistFailed, snap.Warning)
}

func TestController_GenerationFailureConsumesLatch(t *testing.T) {
	ctx := context.Background()
	r := &fakeRenderer{err: render.ErrUpstream}
	c := newController(setupStore(t), r, nil)

	seed := &domain.Seed{SourceImage: planAAA}
	c.Activate(ctx, "p1", seed)
	c.Wait()

	snap := c.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, noticeRenderFailed, snap.Notice)
	assert.Equal(t, planAAA, snap.DisplayImage)
	assert.Nil(t, snap.Comparison)

	c.Activate(ctx, "p1", seed)
	c.Wait()
	assert.Equal(t, 1, r.Calls())

	r.mu.Lock()
	r.err, r.result = nil, renderBB
	r.mu.Unlock()

	require.True(t, c.Regenerate(ctx))
	c.Wait()
	assert.Equal(t, 2, r.Calls())
	assert.Equal(t, StateReady, c.Snapshot().State)
}

func TestController_EmptyResultIsFailure(t *testing.T) {
	c := newController(setupStore(t), &fakeRenderer{}, nil)

	c.Activate(context.Background(), "p1", &domain.Seed{SourceImage: planAAA})
	c.Wait()

	assert.Equal(t, StateFailed, c.Snapshot().State)
}

func TestController_InvalidSourceNeverDispatches(t *testing.T) {
	ctx := context.Background()
	for _, src := range []string{"ftp://example.com/plan.png", "data:image/png,AAA", "data:;base64,AAA"} {
		r := &fakeRenderer{result: renderBB}
		c := newController(setupStore(t), r, nil)

		snap := c.Activate(ctx, "p1", &domain.Seed{SourceImage: src})
		assert.Equal(t, StateFailed, snap.State, src)
		assert.Equal(t, noticeInvalidSource, snap.Notice)

		assert.False(t, c.Regenerate(ctx))
		c.Wait()
		assert.Equal(t, 0, r.Calls(), src)
	}
}

func TestController_RegenerateRejectedWhileGenerating(t *testing.T) {
	ctx := context.Background()
	r := &fakeRenderer{result: renderBB, gate: make(chan struct{})}
	c := newController(setupStore(t), r, nil)

	c.Activate(ctx, "p1", &domain.Seed{SourceImage: planAAA})
	assert.False(t, c.Regenerate(ctx))
	assert.False(t, c.Regenerate(ctx))

	close(r.gate)
	c.Wait()
	assert.Equal(t, 1, r.Calls())

	assert.True(t, c.Regenerate(ctx))
	c.Wait()
	assert.Equal(t, 2, r.Calls())
}

func TestController_RegenerateWithoutActivation(t *testing.T) {
	c := newController(setupStore(t), &fakeRenderer{}, nil)
	assert.False(t, c.Regenerate(context.Background()))
}

func TestController_ForeignPublicProjectIsReadOnly(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	_, err := store.Create(ctx, &domain.Project{ID: "p9", OwnerID: "u2", SourceImage: planAAA, Timestamp: 1, IsPublic: true})
	require.NoError(t, err)
	_, err = store.Create(ctx, &domain.Project{ID: "p8", OwnerID: "u2", SourceImage: planAAA, Timestamp: 2})
	require.NoError(t, err)

	r := &fakeRenderer{result: renderBB}
	c := newController(store, r, nil)

	snap := c.Activate(ctx, "p9", nil)
	assert.Equal(t, StateReady, snap.State)
	assert.True(t, snap.ReadOnly)
	assert.False(t, c.Regenerate(ctx))
	assert.False(t, c.SetVisibility(ctx, false))

	snap = c.Activate(ctx, "p8", nil)
	assert.Equal(t, StateEmpty, snap.State)

	c.Wait()
	assert.Equal(t, 0, r.Calls())
}

func TestController_SnapshotVersionsIncrease(t *testing.T) {
	pub := &recordingPublisher{}
	c := newController(setupStore(t), &fakeRenderer{result: renderBB}, pub)

	c.Activate(context.Background(), "p1", &domain.Seed{SourceImage: planAAA})
	c.Wait()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.NotEmpty(t, pub.snaps)
	for i := 1; i < len(pub.snaps); i++ {
		assert.Greater(t, pub.snaps[i].Version, pub.snaps[i-1].Version)
	}
	assert.Equal(t, StateReady, pub.snaps[len(pub.snaps)-1].State)
}

func TestController_ReactivateSamePairKeepsLatch(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	r := &fakeRenderer{result: renderBB, gate: make(chan struct{})}
	c := newController(store, r, nil)

	c.Activate(ctx, "p1", &domain.Seed{SourceImage: planAAA})
	c.Deactivate()
	assert.False(t, c.Snapshot().Generating)

	snap := c.Activate(ctx, "p1", &domain.Seed{SourceImage: planAAA})
	assert.Equal(t, StateGenerating, snap.State)
	assert.True(t, snap.Generating)
	assert.False(t, c.Regenerate(ctx))

	close(r.gate)
	c.Wait()
	assert.Equal(t, 1, r.Calls())

	snap = c.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, renderBB, snap.DisplayImage)
	assert.True(t, snap.Saved)

	stored, err := store.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, renderBB, stored.RenderedImage)
}

func TestController_ReactivateDifferentSeedResetsLatch(t *testing.T) {
	ctx := context.Background()
	r := &fakeRenderer{err: render.ErrUpstream}
	c := newController(setupStore(t), r, nil)

	c.Activate(ctx, "p1", &domain.Seed{SourceImage: planAAA})
	c.Wait()
	c.Deactivate()

	c.Activate(ctx, "p1", &domain.Seed{SourceImage: planAAA})
	c.Wait()
	assert.Equal(t, 1, r.Calls())

	c.Activate(ctx, "p1", &domain.Seed{SourceImage: "data:image/png;base64,ZZZ"})
	c.Wait()
	assert.Equal(t, 2, r.Calls())
}

func TestController_RejectedSourceFromRendererUsesSourceNotice(t *testing.T) {
	c := newController(setupStore(t), &fakeRenderer{err: render.ErrNotImage}, nil)

	c.Activate(context.Background(), "p1", &domain.Seed{SourceImage: planAAA})
	c.Wait()

	snap := c.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, noticeInvalidSource, snap.Notice)
}

func TestController_FailedRegenerateFallsBackToSource(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	_, err := store.Create(ctx, &domain.Project{
		ID: "p1", OwnerID: owner, SourceImage: planAAA, RenderedImage: renderBB, Timestamp: 1000,
	})
	require.NoError(t, err)

	r := &fakeRenderer{err: render.ErrUpstream}
	c := newController(store, r, nil)

	snap := c.Activate(ctx, "p1", nil)
	require.NotNil(t, snap.Comparison)

	require.True(t, c.Regenerate(ctx))
	c.Wait()

	snap = c.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, planAAA, snap.DisplayImage)
	assert.Nil(t, snap.Comparison)

	stored, err := store.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, renderBB, stored.RenderedImage)
}
