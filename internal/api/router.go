package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/backlinks/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/notes", h.ListNotes)

	// Backlinks documents. The reference may be a nested vault path.
	r.Get("/backlinks/*", h.PreviewBacklinks)
	r.Post("/backlinks/*", h.CollectBacklinks)
	r.Delete("/backlinks/*", h.ForgetBacklinks)

	r.Get("/links/{name}", h.LinkedFrom)
	r.Get("/runs", h.Runs)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
