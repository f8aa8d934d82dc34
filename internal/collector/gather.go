// Package collector gathers the backlink contexts of a target note across
// the vault and compiles them into a generated backlinks document.
package collector

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/backlinks/internal/models"
	"github.com/starford/backlinks/internal/parser"
	"github.com/starford/backlinks/internal/storage"
)

// OutputSuffix marks generated documents. Notes whose name carries it are
// never scanned, so repeated runs do not feed on their own output.
const OutputSuffix = "_backlinks"

// DefaultConcurrency bounds parallel note reads when none is configured.
const DefaultConcurrency = 8

// Excluded reports whether the note called name is a generated document.
func Excluded(name string) bool {
	return strings.HasSuffix(name, OutputSuffix)
}

// Gather reads every candidate note and returns one entry per note that
// references target, in the order of notes. Reads run concurrently with at
// most concurrency in flight; the first failure cancels the rest and is
// returned.
func Gather(ctx context.Context, store storage.Provider, target string, notes []models.NoteMetadata, concurrency int) ([]models.BacklinkEntry, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	slots := make([]*models.BacklinkEntry, len(notes))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, n := range notes {
		name := n.Name
		if name == "" {
			name = models.NoteName(n.Path)
		}
		if Excluded(name) {
			continue
		}
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			data, err := store.Read(n.Path)
			if err != nil {
				return fmt.Errorf("collector: read %s: %w", n.Path, err)
			}
			count, contexts := parser.Contexts(string(data), target)
			if len(contexts) == 0 {
				return nil
			}
			slots[i] = &models.BacklinkEntry{
				Name:     name,
				Path:     n.Path,
				Count:    count,
				Contexts: contexts,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []models.BacklinkEntry
	for _, e := range slots {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out, nil
}
