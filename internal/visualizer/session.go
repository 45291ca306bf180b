package visualizer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/roomi-app/roomi-backend/internal/logging"
	"github.com/roomi-app/roomi-backend/internal/slider"
)

// Session is one user's open view of one project.
type Session struct {
	Controller *Controller
	Slider     *slider.Slider
	Document   *slider.ReleaseDispatcher
	Topic      string

	unmount func()

	mu       sync.Mutex
	lastUsed time.Time
	streams  int
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streams > 0 {
		return 0, false
	}
	return now.Sub(s.lastUsed), true
}

type sessionKey struct {
	owner     string
	projectID string
}

// Registry keeps a session per (user, project) pair.
type Registry struct {
	store    Store
	renderer Renderer
	events   *Events

	log      zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[sessionKey]*Session
}

func NewRegistry(store Store, renderer Renderer, events *Events) *Registry {
	return &Registry{
		store:    store,
		renderer: renderer,
		events:   events,
		log:      logging.Component("visualizer"),
		now:      time.Now,
		sessions: make(map[sessionKey]*Session),
	}
}

// Attach marks s as held by a live stream until the returned func runs.
// Held sessions are never evicted.
func (r *Registry) Attach(s *Session) (detach func()) {
	s.mu.Lock()
	s.streams++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.streams--
			s.lastUsed = r.now()
			s.mu.Unlock()
		})
	}
}

// Open returns the session for ownerID and projectID, creating it on first use.
func (r *Registry) Open(ownerID, projectID string) *Session {
	key := sessionKey{owner: ownerID, projectID: projectID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[key]; ok {
		s.touch(r.now())
		return s
	}

	topic := Topic(ownerID, projectID)
	deps := Deps{
		OwnerID:  ownerID,
		Store:    r.store,
		Renderer: r.renderer,
		Topic:    topic,
	}
	if r.events != nil {
		deps.Publisher = r.events
	}

	doc := slider.NewReleaseDispatcher()
	sl := slider.New()
	s := &Session{
		Controller: NewController(deps),
		Slider:     sl,
		Document:   doc,
		Topic:      topic,
		unmount:    sl.Mount(doc),
		lastUsed:   r.now(),
	}
	r.sessions[key] = s
	return s
}

// Lookup returns an existing session without creating one.
func (r *Registry) Lookup(ownerID, projectID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionKey{owner: ownerID, projectID: projectID}]
	if ok {
		s.touch(r.now())
	}
	return s, ok
}

// Close deactivates and forgets a session. It reports whether one existed.
func (r *Registry) Close(ownerID, projectID string) bool {
	key := sessionKey{owner: ownerID, projectID: projectID}

	r.mu.Lock()
	s, ok := r.sessions[key]
	delete(r.sessions, key)
	r.mu.Unlock()

	if !ok {
		return false
	}
	s.close()
	return true
}

func (s *Session) close() {
	s.Controller.Deactivate()
	s.unmount()
}

// Evict closes sessions untouched for at least idle. Sessions with a live
// stream or a running generation are kept.
func (r *Registry) Evict(idle time.Duration) int {
	now := r.now()

	r.mu.Lock()
	var evicted []*Session
	for key, s := range r.sessions {
		since, ok := s.idleSince(now)
		if !ok || since < idle || s.Controller.Snapshot().Generating {
			continue
		}
		delete(r.sessions, key)
		evicted = append(evicted, s)
	}
	r.mu.Unlock()

	for _, s := range evicted {
		s.close()
	}
	return len(evicted)
}

// Sweep evicts idle sessions every interval until ctx is done.
func (r *Registry) Sweep(ctx context.Context, idle, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Evict(idle); n > 0 {
				r.log.Info().Int("evicted", n).Int("open", r.Len()).Msg("evicted idle sessions")
			}
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Wait blocks until in-flight generations of every open session settle.
func (r *Registry) Wait() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Controller.Wait()
	}
}
