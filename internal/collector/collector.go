package collector

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/starford/backlinks/internal/checksum"
	"github.com/starford/backlinks/internal/models"
	"github.com/starford/backlinks/internal/storage"
)

// Options are the per-invocation settings of a collection.
type Options struct {
	// OutputFolder is the vault folder generated documents go to. Empty
	// means the vault root.
	OutputFolder string
	// Concurrency bounds parallel note reads.
	Concurrency int
}

// Result describes the outcome of one collection.
type Result struct {
	Target     string                 `json:"target"`
	OutputPath string                 `json:"output_path,omitempty"`
	Entries    []models.BacklinkEntry `json:"entries"`
	// Written is false when no note references the target; no document is
	// produced in that case.
	Written bool `json:"written"`
	// Unchanged is true when the existing document already held the
	// rendered content and the write was skipped.
	Unchanged bool `json:"unchanged,omitempty"`
}

// Option configures a Collector.
type Option func(*Collector)

// WithNotifier sets where progress messages go.
func WithNotifier(n Notifier) Option {
	return func(c *Collector) { c.notifier = n }
}

// WithViewer sets the surface generated documents are opened in.
func WithViewer(v Viewer) Option {
	return func(c *Collector) { c.viewer = v }
}

// WithRecorder sets where finished runs are recorded.
func WithRecorder(r Recorder) Option {
	return func(c *Collector) { c.recorder = r }
}

// Collector runs the gather, render and save pipeline against a vault.
type Collector struct {
	store    storage.Provider
	logger   *slog.Logger
	notifier Notifier
	viewer   Viewer
	recorder Recorder
}

// New creates a Collector over store.
func New(store storage.Provider, logger *slog.Logger, opts ...Option) *Collector {
	c := &Collector{store: store, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Collector) notify(format string, args ...any) {
	if c.notifier != nil {
		c.notifier.Notify(fmt.Sprintf(format, args...))
	}
}

// Preview gathers the entries for target without writing anything.
func (c *Collector) Preview(ctx context.Context, target string, opts Options) ([]models.BacklinkEntry, error) {
	notes, err := c.store.List("")
	if err != nil {
		return nil, fmt.Errorf("collector: list notes: %w", err)
	}
	return Gather(ctx, c.store, target, notes, opts.Concurrency)
}

// Collect gathers every backlink context of target and writes the
// generated document. When nothing references target the result has
// Written == false and no document is touched.
func (c *Collector) Collect(ctx context.Context, target string, opts Options) (*Result, error) {
	c.notify("Collecting backlinks for \"%s\"...", target)

	entries, err := c.Preview(ctx, target, opts)
	if err != nil {
		return nil, err
	}

	if entries == nil {
		entries = []models.BacklinkEntry{}
	}
	res := &Result{Target: target, Entries: entries}
	if len(entries) == 0 {
		c.notify("No backlinks found for \"%s\"", target)
		c.logger.Info("collector: no backlinks", slog.String("target", target))
		return res, nil
	}

	outPath := OutputPath(opts.OutputFolder, target)
	res.OutputPath = outPath

	unchanged, err := c.save(outPath, []byte(Render(entries)))
	if err != nil {
		return nil, err
	}
	res.Written = true
	res.Unchanged = unchanged

	c.logger.Info("collector: document written",
		slog.String("target", target),
		slog.String("path", outPath),
		slog.Int("entries", len(entries)),
		slog.Bool("unchanged", unchanged))

	if c.recorder != nil {
		sources := make([]string, len(entries))
		for i, e := range entries {
			sources[i] = e.Path
		}
		run := models.Run{
			Target:     target,
			OutputPath: outPath,
			Entries:    len(entries),
			Sources:    sources,
			CreatedAt:  time.Now(),
		}
		if err := c.recorder.RecordRun(ctx, run); err != nil {
			c.logger.Warn("collector: record run failed", slog.String("target", target), slog.String("error", err.Error()))
		}
	}

	c.notify("Backlinks collected! Found %d files. Saved to %s", len(entries), outPath)

	if c.viewer != nil {
		if err := c.viewer.Open(ctx, outPath); err != nil {
			c.logger.Warn("collector: open document failed", slog.String("path", outPath), slog.String("error", err.Error()))
		}
	}
	return res, nil
}

// save creates the output folder when needed, then creates or overwrites
// the document. It reports true when the stored bytes already matched.
func (c *Collector) save(outPath string, content []byte) (bool, error) {
	if folder := path.Dir(outPath); folder != "." {
		kind, err := c.store.Stat(folder)
		if err != nil {
			return false, fmt.Errorf("collector: stat output folder: %w", err)
		}
		switch kind {
		case models.KindMissing:
			if err := c.store.CreateFolder(folder); err != nil {
				return false, fmt.Errorf("collector: create output folder: %w", err)
			}
		case models.KindNote:
			return false, fmt.Errorf("collector: output folder %s is a file", folder)
		}
	}

	kind, err := c.store.Stat(outPath)
	if err != nil {
		return false, fmt.Errorf("collector: stat output: %w", err)
	}
	switch kind {
	case models.KindNote:
		existing, err := c.store.Read(outPath)
		if err != nil {
			return false, fmt.Errorf("collector: read output: %w", err)
		}
		if checksum.Same(existing, content) {
			return true, nil
		}
		if err := c.store.Write(outPath, content); err != nil {
			return false, fmt.Errorf("collector: overwrite output: %w", err)
		}
	case models.KindMissing:
		if err := c.store.Create(outPath, content); err != nil {
			return false, fmt.Errorf("collector: create output: %w", err)
		}
	default:
		return false, fmt.Errorf("collector: output path %s is a folder", outPath)
	}
	return false, nil
}
