package internal

import (
	"io"

	"github.com/starford/backlinks/internal/collector"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config   *Config
	notifier collector.Notifier
	logOut   io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithNotifier adds a notifier that receives every collection notice.
func WithNotifier(n collector.Notifier) Option {
	return func(a *application) {
		a.notifier = n
	}
}

// WithLogOutput redirects structured logs. Defaults to stdout.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}
