package bootstrap

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/roomi-app/roomi-backend/config"
	httpapi "github.com/roomi-app/roomi-backend/internal/api/http"
	"github.com/roomi-app/roomi-backend/internal/api/http/middleware"
	"github.com/roomi-app/roomi-backend/internal/auth"
	authhttp "github.com/roomi-app/roomi-backend/internal/auth/http"
	authmw "github.com/roomi-app/roomi-backend/internal/auth/middleware"
	projectshttp "github.com/roomi-app/roomi-backend/internal/projects/http"
	"github.com/roomi-app/roomi-backend/internal/projects/service"
	"github.com/roomi-app/roomi-backend/internal/upload"
	uploadhttp "github.com/roomi-app/roomi-backend/internal/upload/http"
	"github.com/roomi-app/roomi-backend/internal/visualizer"
	vizhttp "github.com/roomi-app/roomi-backend/internal/visualizer/http"
)

type RouterDeps struct {
	ServiceName string
	Config      *config.Config
	Stores      *Stores
	Events      *visualizer.Events
	Registry    *visualizer.Registry
	// Verifier is nil when Firebase is not configured; callers are then
	// identified by the development header fallback.
	Verifier authmw.TokenVerifier
}

func SetGinMode(env string) {
	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	cfg := dep.Config

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)))

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, cfg.App.Version, cfg.Store.Backend, dep.Stores.DB, dep.Stores.Redis)
	healthHandler.RegisterRoutes(r)

	api := r.Group("/api/v1")
	if dep.Verifier != nil {
		api.Use(authmw.FirebaseAuthMiddleware(dep.Verifier))
	} else {
		api.Use(auth.DevUser())
	}

	authhttp.New().Register(api)

	projectService := service.NewProjectService(dep.Stores.Projects)
	projectshttp.New(projectService).Register(api.Group("/projects"))

	limiter := middleware.NewUserRateLimiter(cfg.Render.RatePerMin, 2)

	flow := upload.NewFlow(projectService, cfg.Upload.MaxBytes)
	uploadhttp.New(flow, cfg.Upload.ProgressStep, cfg.Upload.ProgressEvery, cfg.Upload.RedirectDelay).
		Register(api.Group("/uploads"), limiter.Middleware())

	vizhttp.New(dep.Registry, dep.Events).Register(api.Group("/visualizer"), limiter.Middleware())

	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-User-Id", "X-User-Name", "X-Request-Id"},
		ExposeHeaders: []string{"X-Request-Id", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	return c
}
