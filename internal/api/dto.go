package api

import (
	"github.com/starford/backlinks/internal/collector"
	"github.com/starford/backlinks/internal/models"
	"github.com/starford/backlinks/internal/noteservice"
)

// NoteListResponse wraps the vault listing.
type NoteListResponse struct {
	Notes []models.NoteMetadata `json:"notes" validate:"required"`
	Total int                   `json:"total" example:"42" validate:"required"`
}

// PreviewResponse is a rendered document that was not written (aliased from the domain layer).
type PreviewResponse = noteservice.Preview

// CollectResponse is the outcome of a collection (aliased from the domain layer).
type CollectResponse = collector.Result

// LinksResponse lists the notes that link to a target.
type LinksResponse struct {
	Target  string   `json:"target" example:"Topic" validate:"required"`
	Sources []string `json:"sources" example:"notes/a.md" validate:"required"`
}

// RunsResponse wraps the collection history.
type RunsResponse struct {
	Runs []models.Run `json:"runs" validate:"required"`
}
