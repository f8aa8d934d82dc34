// Package storage defines the vault file-system abstraction.
package storage

import "github.com/starford/backlinks/internal/models"

// Provider is the interface for vault file operations. All paths are
// slash-separated and relative to the vault root.
type Provider interface {
	// List returns metadata for every .md file under dir, in walk order.
	List(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Stat reports whether path is a note, a folder, or missing.
	Stat(path string) (models.Kind, error)
	// CreateFolder creates the folder at path and any missing parents.
	CreateFolder(path string) error
	// Create writes a new file and fails with apperr.ErrAlreadyExists if
	// something is already at path.
	Create(path string, content []byte) error
	// Write atomically creates or overwrites the file at path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
}
