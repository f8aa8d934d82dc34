// Package models defines the domain types shared across the backlinks packages.
package models

import (
	"path"
	"strings"
	"time"
)

// NoteExt is the extension of every note in the vault.
const NoteExt = ".md"

// Note is a Markdown file in the vault together with its body.
type Note struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Body string `json:"-"`
}

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Kind tags what a vault path resolves to.
type Kind int

const (
	KindMissing Kind = iota
	KindNote
	KindFolder
)

func (k Kind) String() string {
	switch k {
	case KindNote:
		return "note"
	case KindFolder:
		return "folder"
	default:
		return "missing"
	}
}

// BacklinkEntry groups every context block one source note contributes.
// Count is the number of markers found in the source; each marker yields
// exactly one block, so Count normally equals len(Contexts).
type BacklinkEntry struct {
	Name     string   `json:"name"`
	Path     string   `json:"path"`
	Count    int      `json:"count"`
	Contexts []string `json:"contexts"`
}

// NoteName returns the display name of a note: its file name without the
// .md extension. p is a slash-separated vault path.
func NoteName(p string) string {
	return strings.TrimSuffix(path.Base(p), NoteExt)
}

// Run records one collection that produced a backlinks document.
type Run struct {
	ID         string    `json:"id"`
	Target     string    `json:"target"`
	OutputPath string    `json:"output_path"`
	Entries    int       `json:"entries"`
	Sources    []string  `json:"sources,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
