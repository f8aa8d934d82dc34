// Package noteservice is the single entry point the CLI, HTTP and MCP
// surfaces go through to collect backlinks for a note.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/starford/backlinks/internal/apperr"
	"github.com/starford/backlinks/internal/collector"
	"github.com/starford/backlinks/internal/index"
	"github.com/starford/backlinks/internal/models"
	"github.com/starford/backlinks/internal/storage"
)

// Preview is a rendered backlinks document that has not been written.
type Preview struct {
	Target     string                 `json:"target"`
	OutputPath string                 `json:"output_path"`
	Entries    []models.BacklinkEntry `json:"entries"`
	Document   string                 `json:"document"`
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets where progress messages go.
func WithNotifier(n collector.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithViewer sets the surface documents are opened in after an explicit
// collection. Refresh-triggered collections never open a view.
func WithViewer(v collector.Viewer) Option {
	return func(s *Service) { s.viewer = v }
}

// Service coordinates storage, the index and the collector.
type Service struct {
	store    storage.Provider
	db       index.NoteIndex
	logger   *slog.Logger
	opts     collector.Options
	notifier collector.Notifier
	viewer   collector.Viewer

	collector *collector.Collector
	refresher *collector.Collector

	mu sync.Mutex // serialises refresh-triggered collections
}

// NewService creates a note service. opts apply to every collection it runs.
func NewService(store storage.Provider, db index.NoteIndex, logger *slog.Logger, opts collector.Options, options ...Option) *Service {
	s := &Service{store: store, db: db, logger: logger, opts: opts}
	for _, o := range options {
		o(s)
	}

	common := []collector.Option{collector.WithRecorder(db)}
	if s.notifier != nil {
		common = append(common, collector.WithNotifier(s.notifier))
	}
	s.refresher = collector.New(store, logger, common...)
	if s.viewer != nil {
		common = append(common, collector.WithViewer(s.viewer))
	}
	s.collector = collector.New(store, logger, common...)
	return s
}

func (s *Service) notify(msg string) {
	if s.notifier != nil {
		s.notifier.Notify(msg)
	}
}

// ResolveTarget turns a reference into a target name. ref is either a
// vault path ("dir/Topic.md") or a bare note name ("Topic").
func (s *Service) ResolveTarget(_ context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		s.notify("No active note found")
		return "", apperr.ErrNoActiveTarget
	}

	if strings.HasSuffix(ref, models.NoteExt) || strings.Contains(ref, "/") {
		p := ref
		if !strings.HasSuffix(p, models.NoteExt) {
			p += models.NoteExt
		}
		kind, err := s.store.Stat(p)
		if err != nil {
			return "", err
		}
		if kind != models.KindNote {
			return "", fmt.Errorf("noteservice: %s: %w", ref, apperr.ErrNotFound)
		}
		return models.NoteName(p), nil
	}

	notes, err := s.store.List("")
	if err != nil {
		return "", err
	}
	for _, n := range notes {
		if n.Name == ref {
			return ref, nil
		}
	}
	return "", fmt.Errorf("noteservice: %s: %w", ref, apperr.ErrNotFound)
}

// CollectBacklinks resolves ref and writes its backlinks document.
func (s *Service) CollectBacklinks(ctx context.Context, ref string) (*collector.Result, error) {
	target, err := s.ResolveTarget(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.collector.Collect(ctx, target, s.opts)
}

// Preview resolves ref and renders its backlinks document without writing.
func (s *Service) Preview(ctx context.Context, ref string) (*Preview, error) {
	target, err := s.ResolveTarget(ctx, ref)
	if err != nil {
		return nil, err
	}
	entries, err := s.collector.Preview(ctx, target, s.opts)
	if err != nil {
		return nil, err
	}
	return &Preview{
		Target:     target,
		OutputPath: collector.OutputPath(s.opts.OutputFolder, target),
		Entries:    nonNilSlice(entries),
		Document:   collector.Render(entries),
	}, nil
}

// ListNotes returns every note in the vault.
func (s *Service) ListNotes(_ context.Context) ([]models.NoteMetadata, error) {
	notes, err := s.store.List("")
	if err != nil {
		return nil, err
	}
	return nonNilSlice(notes), nil
}

// ReadNote returns the raw content of the note at p.
func (s *Service) ReadNote(_ context.Context, p string) (string, error) {
	data, err := s.store.Read(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", apperr.ErrNotFound
		}
		return "", err
	}
	return string(data), nil
}

// LinkedFrom returns the indexed paths of notes that link to name.
func (s *Service) LinkedFrom(_ context.Context, name string) ([]string, error) {
	paths, err := s.db.LinkedFrom(name)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(paths), nil
}

// Runs returns the most recent collections, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]models.Run, error) {
	runs, err := s.db.Runs(ctx, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(runs), nil
}

// Forget deletes the generated document for target and stops refreshing it.
func (s *Service) Forget(_ context.Context, target string) error {
	p, ok, err := s.db.Tracked(target)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("noteservice: %s: %w", target, apperr.ErrNotFound)
	}
	if err := s.store.Delete(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := s.db.ForgetOutput(target); err != nil {
		return err
	}
	s.logger.Info("noteservice: forgot output", slog.String("target", target), slog.String("path", p))
	return nil
}

// Refresh re-collects every tracked target affected by a change to the
// note at p: the targets it links to now and the targets whose last run
// drew on it. Deleting a generated document stops its target being
// refreshed; other changes to generated documents are ignored.
func (s *Service) Refresh(ctx context.Context, kind, p string) error {
	if path.Ext(p) != models.NoteExt {
		return nil
	}
	if collector.Excluded(models.NoteName(p)) {
		if kind == index.EventDeleted {
			return s.forgetDeletedOutput(p)
		}
		return nil
	}

	linked, err := s.db.Targets(p)
	if err != nil {
		return err
	}
	sourced, err := s.db.TargetsSourcedBy(p)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(linked)+len(sourced))
	var targets []string
	for _, t := range append(linked, sourced...) {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		targets = append(targets, t)
	}
	sort.Strings(targets)

	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, t := range targets {
		if _, ok, err := s.db.Tracked(t); err != nil {
			errs = append(errs, err)
			continue
		} else if !ok {
			continue
		}

		res, err := s.refresher.Collect(ctx, t, s.opts)
		if err != nil {
			s.logger.Warn("noteservice: refresh failed",
				slog.String("target", t),
				slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		if !res.Written {
			s.logger.Info("noteservice: no backlinks left, keeping document", slog.String("target", t))
			continue
		}
		s.logger.Debug("noteservice: refreshed",
			slog.String("target", t),
			slog.String("trigger", p),
			slog.String("event", kind),
			slog.Bool("unchanged", res.Unchanged))
	}
	return errors.Join(errs...)
}

// forgetDeletedOutput untracks the target whose document at p was removed
// outside Forget.
func (s *Service) forgetDeletedOutput(p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok, err := s.db.OutputTarget(p)
	if err != nil || !ok {
		return err
	}
	if err := s.db.ForgetOutput(target); err != nil {
		return err
	}
	s.logger.Info("noteservice: document deleted, no longer refreshed",
		slog.String("target", target), slog.String("path", p))
	return nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
