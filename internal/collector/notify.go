package collector

import (
	"context"
	"log/slog"
	"sync"

	"github.com/starford/backlinks/internal/models"
)

// Notifier surfaces progress and outcome messages to whoever triggered a
// collection.
type Notifier interface {
	Notify(msg string)
}

// Viewer hands a generated document to a display surface. Failures are
// logged and never fail the collection.
type Viewer interface {
	Open(ctx context.Context, path string) error
}

// Recorder persists a finished run.
type Recorder interface {
	RecordRun(ctx context.Context, run models.Run) error
}

// NotifyFunc adapts a plain function to Notifier.
type NotifyFunc func(msg string)

// Notify calls f(msg).
func (f NotifyFunc) Notify(msg string) { f(msg) }

// LogNotifier writes notices to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs msg at info level.
func (n LogNotifier) Notify(msg string) {
	n.Logger.Info("notice", slog.String("message", msg))
}

// Notices buffers messages, for surfaces that answer once per call.
type Notices struct {
	mu   sync.Mutex
	msgs []string
}

// Notify appends msg.
func (n *Notices) Notify(msg string) {
	n.mu.Lock()
	n.msgs = append(n.msgs, msg)
	n.mu.Unlock()
}

// Messages returns a copy of everything notified so far.
func (n *Notices) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}

// Drain returns everything notified so far and empties the buffer.
func (n *Notices) Drain() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.msgs
	n.msgs = nil
	return out
}

// Multi fans a notice out to several notifiers.
type Multi []Notifier

// Notify forwards msg to every notifier.
func (m Multi) Notify(msg string) {
	for _, n := range m {
		if n != nil {
			n.Notify(msg)
		}
	}
}
