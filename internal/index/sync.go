package index

import (
	"log/slog"
	"time"

	"github.com/starford/backlinks/internal/checksum"
	"github.com/starford/backlinks/internal/collector"
	"github.com/starford/backlinks/internal/models"
	"github.com/starford/backlinks/internal/parser"
	"github.com/starford/backlinks/internal/storage"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed notes are re-read and their links re-indexed
//   - notes removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteNote(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	logger.Info("sync: done", slog.Int("notes", len(metas)))
	return nil
}

// IndexFile records the note at path and its outgoing wikilinks. Generated
// backlinks documents are recorded without links so they never count as a
// source.
func IndexFile(db NoteIndex, path string, data []byte) error {
	name := models.NoteName(path)
	var links []string
	if !collector.Excluded(name) {
		links = parser.Links(string(data))
	}
	return db.UpsertNote(NoteRow{
		Path:      path,
		Name:      name,
		Checksum:  checksum.Sum(data),
		UpdatedAt: time.Now(),
	}, links)
}
