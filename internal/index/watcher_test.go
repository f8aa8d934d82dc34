package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/starford/backlinks/internal/storage"
)

// eventLog records watcher callbacks as "kind:path".
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) record(kind, path string) {
	l.mu.Lock()
	l.events = append(l.events, kind+":"+path)
	l.mu.Unlock()
}

func (l *eventLog) has(event string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Contains(l.events, event)
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.events)
}

type watchEnv struct {
	dir   string
	store storage.Provider
	db    *DB
	log   *eventLog
}

func newWatchEnv(t *testing.T, notes map[string]string) *watchEnv {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	for rel, body := range notes {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		_ = os.MkdirAll(filepath.Dir(p), 0o755)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	db := testDB(t)
	if err := Sync(db, store, discardLogger()); err != nil {
		t.Fatal(err)
	}
	return &watchEnv{dir: dir, store: store, db: db, log: &eventLog{}}
}

// start runs Watch until the test ends and waits for it to settle.
func (e *watchEnv) start(t *testing.T) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = Watch(ctx, e.db, e.store, e.dir, logger, e.log.record)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
}

func (e *watchEnv) write(t *testing.T, rel, body string) {
	t.Helper()
	p := filepath.Join(e.dir, filepath.FromSlash(rel))
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (e *watchEnv) indexed(rel string) bool {
	cs, _ := e.db.GetChecksum(rel)
	return cs != ""
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	env := newWatchEnv(t, nil)
	env.start(t)

	env.write(t, "new.md", "- [[Topic]]")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return env.indexed("new.md")
	}, "new file not indexed by watcher")
	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return env.log.has("created:new.md")
	}, "expected created:new.md callback")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		got, _ := env.db.LinkedFrom("Topic")
		return slices.Equal(got, []string{"new.md"})
	}, "links of new file not indexed")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	env := newWatchEnv(t, nil)
	env.start(t)

	_ = os.MkdirAll(filepath.Join(env.dir, "subdir"), 0o755)
	time.Sleep(100 * time.Millisecond)

	env.write(t, "subdir/deep.md", "# Deep")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return env.indexed("subdir/deep.md")
	}, "file in new subdir not indexed by watcher")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	env := newWatchEnv(t, map[string]string{"del.md": "[[Topic]]"})
	if !env.indexed("del.md") {
		t.Fatal("precondition: file should be indexed")
	}
	env.start(t)

	_ = os.Remove(filepath.Join(env.dir, "del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !env.indexed("del.md") && env.log.has("deleted:del.md")
	}, "deleted file still in index")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	env := newWatchEnv(t, map[string]string{"old.md": "[[Topic]]"})
	env.start(t)

	_ = os.Rename(filepath.Join(env.dir, "old.md"), filepath.Join(env.dir, "renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !env.indexed("old.md") && env.indexed("renamed.md")
	}, "rename reconciliation failed: old path should be removed and new path indexed")
}

func TestWatcher_IgnoresNonNotes(t *testing.T) {
	env := newWatchEnv(t, nil)
	env.start(t)

	env.write(t, "image.png", "png")
	env.write(t, "note.md", "[[Topic]]")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return env.indexed("note.md")
	}, "note not indexed by watcher")

	for _, e := range env.log.snapshot() {
		if filepath.Ext(e) != ".md" {
			t.Errorf("unexpected event for non-note: %s", e)
		}
	}
	if env.indexed("image.png") {
		t.Error("non-note file should not be indexed")
	}
}
