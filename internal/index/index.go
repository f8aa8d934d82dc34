package index

import (
	"context"

	"github.com/starford/backlinks/internal/models"
)

// NoteIndex defines the interface for note indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type NoteIndex interface {
	UpsertNote(n NoteRow, links []string) error
	DeleteNote(path string) error
	GetChecksum(path string) (string, error)
	AllChecksums() (map[string]string, error)
	LinkedFrom(target string) ([]string, error)
	Targets(source string) ([]string, error)
	RecordRun(ctx context.Context, run models.Run) error
	Runs(ctx context.Context, limit int) ([]models.Run, error)
	Tracked(target string) (string, bool, error)
	OutputTarget(path string) (string, bool, error)
	TargetsSourcedBy(source string) ([]string, error)
	ForgetOutput(target string) error
	Close() error
}

// Verify *DB satisfies NoteIndex at compile time.
var _ NoteIndex = (*DB)(nil)
