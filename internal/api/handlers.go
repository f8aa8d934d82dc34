package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/backlinks/internal/models"
	"github.com/starford/backlinks/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// noteRef extracts the note reference from the URL (everything after the
// route prefix). Supports encoded slashes from OpenAPI clients
// (e.g. topics%2Fnote.md).
func noteRef(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List every note in the vault
//	@Tags			notes
//	@Produce		json
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.svc.ListNotes(r.Context())
	if err != nil {
		slog.Error("list notes failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

// PreviewBacklinks handles GET /api/backlinks/*.
//
//	@Summary		Render the backlinks document for a note without writing it
//	@Tags			backlinks
//	@Produce		json
//	@Param			ref	path		string	true	"Note path or name"
//	@Success		200	{object}	PreviewResponse
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/backlinks/{ref} [get]
func (h *Handler) PreviewBacklinks(w http.ResponseWriter, r *http.Request) {
	ref := noteRef(r)
	p, err := h.svc.Preview(r.Context(), ref)
	if err != nil {
		writeServiceError(w, "preview backlinks", ref, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CollectBacklinks handles POST /api/backlinks/*.
//
//	@Summary		Collect backlinks for a note and write the document
//	@Description	Responds 200 with written=false when no note links to the target.
//	@Tags			backlinks
//	@Produce		json
//	@Param			ref	path		string	true	"Note path or name"
//	@Success		200	{object}	CollectResponse
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/backlinks/{ref} [post]
func (h *Handler) CollectBacklinks(w http.ResponseWriter, r *http.Request) {
	ref := noteRef(r)
	res, err := h.svc.CollectBacklinks(r.Context(), ref)
	if err != nil {
		writeServiceError(w, "collect backlinks", ref, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ForgetBacklinks handles DELETE /api/backlinks/*.
//
//	@Summary		Delete a generated document and stop refreshing it
//	@Tags			backlinks
//	@Param			ref	path	string	true	"Target name"
//	@Success		204	"Document deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/backlinks/{ref} [delete]
func (h *Handler) ForgetBacklinks(w http.ResponseWriter, r *http.Request) {
	ref := noteRef(r)
	if ref == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("note reference is required"))
		return
	}
	if err := h.svc.Forget(r.Context(), models.NoteName(ref)); err != nil {
		writeServiceError(w, "forget backlinks", ref, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LinkedFrom handles GET /api/links/{name}.
//
//	@Summary		List indexed notes linking to a target
//	@Tags			links
//	@Produce		json
//	@Param			name	path		string	true	"Target name"
//	@Success		200		{object}	LinksResponse
//	@Security		BearerAuth
//	@Router			/links/{name} [get]
func (h *Handler) LinkedFrom(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	sources, err := h.svc.LinkedFrom(r.Context(), name)
	if err != nil {
		writeServiceError(w, "linked from", name, err)
		return
	}
	writeJSON(w, http.StatusOK, LinksResponse{Target: name, Sources: sources})
}

// Runs handles GET /api/runs.
//
//	@Summary		Recent collections, newest first
//	@Tags			runs
//	@Produce		json
//	@Param			limit	query		int	false	"Max runs"
//	@Success		200		{object}	RunsResponse
//	@Security		BearerAuth
//	@Router			/runs [get]
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.svc.Runs(r.Context(), limit)
	if err != nil {
		writeServiceError(w, "runs", "", err)
		return
	}
	writeJSON(w, http.StatusOK, RunsResponse{Runs: runs})
}
