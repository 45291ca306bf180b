package bootstrap

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/roomi-app/roomi-backend/config"
	"github.com/roomi-app/roomi-backend/internal/auth"
	authmw "github.com/roomi-app/roomi-backend/internal/auth/middleware"
	"github.com/roomi-app/roomi-backend/internal/logging"
	"github.com/roomi-app/roomi-backend/internal/render"
	"github.com/roomi-app/roomi-backend/internal/visualizer"
)

const ServiceName = "roomi-api"

// App is the wired API server.
type App struct {
	Router   *gin.Engine
	Stores   *Stores
	Events   *visualizer.Events
	Registry *visualizer.Registry

	stopSweep context.CancelFunc
	swept     chan struct{}
}

// NewRenderClient builds the render client from config.
func NewRenderClient(cfg config.RenderConfig) *render.Client {
	return render.NewClient(render.Options{
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey,
		Provider: cfg.Provider,
		Model:    cfg.Model,
		Timeout:  cfg.Timeout,
	})
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logging.Init(logging.Config{
		Level:   logging.ParseLevel(cfg.App.LogLevel),
		Pretty:  cfg.App.LogPretty,
		Service: ServiceName,
	})
	SetGinMode(cfg.App.Environment)

	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var verifier authmw.TokenVerifier
	if cfg.Firebase.CredentialsPath != "" {
		client, err := auth.NewFirebaseClient(ctx, cfg.Firebase)
		if err != nil {
			stores.Close()
			return nil, err
		}
		verifier = client
	} else {
		logging.Logger.Warn().Msg("Firebase not configured, trusting X-User-Id header")
	}

	renderer := NewRenderClient(cfg.Render)
	events := visualizer.NewEvents()
	registry := visualizer.NewRegistry(stores.Projects, renderer, events)

	router := BuildRouter(RouterDeps{
		ServiceName: ServiceName,
		Config:      cfg,
		Stores:      stores,
		Events:      events,
		Registry:    registry,
		Verifier:    verifier,
	})

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	swept := make(chan struct{})
	go func() {
		defer close(swept)
		registry.Sweep(sweepCtx, cfg.Visualizer.IdleTTL, cfg.Visualizer.SweepEvery)
	}()

	return &App{
		Router:    router,
		Stores:    stores,
		Events:    events,
		Registry:  registry,
		stopSweep: stopSweep,
		swept:     swept,
	}, nil
}

// Close stops the idle sweeper, waits for in-flight generations and
// releases connections.
func (a *App) Close() {
	if a.stopSweep != nil {
		a.stopSweep()
		<-a.swept
	}
	a.Registry.Wait()
	if err := a.Events.Close(); err != nil {
		logging.Logger.Warn().Err(err).Msg("closing event bus")
	}
	a.Stores.Close()
}
