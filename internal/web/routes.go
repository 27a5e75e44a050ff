package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/jvanek/facegroups/internal/web/handlers"
)

func (s *Server) setupRoutes(app *handlers.App) {
	scanHandler := handlers.NewScanHandler(app)
	groupsHandler := handlers.NewGroupsHandler(app)
	suggestHandler := handlers.NewSuggestHandler(app)
	peopleHandler := handlers.NewPeopleHandler(app)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Folder info and scanning (long-running operations)
		r.Get("/folder", scanHandler.FolderInfo)
		r.Post("/scan", scanHandler.Start)
		r.Get("/scan/{jobId}", scanHandler.Status)
		r.Get("/scan/{jobId}/events", scanHandler.Events)

		// Groups and mutations
		r.Get("/groups", groupsHandler.List)
		r.Post("/groups", groupsHandler.Create)
		r.Post("/groups/merge", groupsHandler.Merge)
		r.Post("/groups/ungroup", groupsHandler.Ungroup)
		r.Put("/groups/{id}/name", groupsHandler.Name)
		r.Delete("/groups/{id}", groupsHandler.Delete)
		r.Post("/faces/move", groupsHandler.MoveFaces)
		r.Post("/faces/ungroup", groupsHandler.UngroupFace)
		r.Delete("/faces", groupsHandler.DeleteFaces)
		r.Get("/faces/{id}/thumb", groupsHandler.Thumbnail)

		// Suggestions
		r.Get("/suggestions", suggestHandler.Merge)
		r.Get("/suggestions/refine", suggestHandler.Refine)

		// Known people
		r.Post("/people/match", peopleHandler.Match)
	})
}
