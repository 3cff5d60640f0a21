package api

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/repohandler/repohandler/internal/api/handler"
	"github.com/repohandler/repohandler/internal/api/middleware"
	"github.com/repohandler/repohandler/internal/auth"
	"github.com/repohandler/repohandler/internal/metrics"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Logger         *zap.Logger
	Issuer         auth.Issuer
	Teams          handler.TeamRegistry
	Projects       handler.ProjectService
	Review         handler.ReviewService
	Store          handler.StorePinger
	StoreBackend   string
	MockBlobs      handler.BlobOpener // nil unless the in-memory blob store is active
	MaxUploadBytes int64
	Version        string
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(metrics.Middleware)
	r.Use(middleware.RequestLogger(deps.Logger))

	r.Get("/", handler.Root)
	r.Get("/health", handler.NewHealthHandler(deps.Store, deps.StoreBackend, deps.Version).ServeHTTP)
	r.Handle("/metrics", metrics.Handler())

	if deps.MockBlobs != nil {
		r.Get("/mock-storage/*", handler.NewMockStorageHandler(deps.MockBlobs, deps.Logger).ServeHTTP)
	}

	authHandler := handler.NewAuthHandler(deps.Teams, deps.Issuer, deps.Logger)
	projectHandler := handler.NewProjectHandler(deps.Projects, deps.MaxUploadBytes, deps.Logger)
	adminHandler := handler.NewAdminHandler(deps.Review, deps.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/generate-team", authHandler.GenerateTeam)
			r.Post("/team-login", authHandler.TeamLogin)
			r.Post("/admin-login", authHandler.AdminLogin)
		})

		r.Route("/projects", func(r chi.Router) {
			r.Use(middleware.TeamAuth(deps.Issuer))
			r.Get("/", projectHandler.List)
			r.Post("/", projectHandler.Create)
			r.Get("/{id}", projectHandler.Get)
			r.Put("/{id}", projectHandler.Update)
			r.Delete("/{id}", projectHandler.Delete)
			r.Post("/{id}/upload-pdf", projectHandler.UploadPDF)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AdminAuth(deps.Issuer))
			r.Get("/projects", adminHandler.ListProjects)
			r.Put("/projects/{id}/scores", adminHandler.UpdateScores)
			r.Get("/stats", adminHandler.Stats)
		})
	})

	return r
}
