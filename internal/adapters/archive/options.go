package archive

import (
	"time"

	"github.com/okian/agon/pkg/logger"
)

// Option configures the SQLite archive.
type Option func(*sqliteArchive)

// WithBusyTimeout sets how long SQLite waits on a locked database before
// giving up. Zero or negative values are ignored.
func WithBusyTimeout(d time.Duration) Option {
	return func(a *sqliteArchive) {
		if d > 0 {
			a.busyTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the archive.
func WithLogger(l logger.Logger) Option {
	return func(a *sqliteArchive) {
		if l != nil {
			a.logger = l.Named("archive")
		}
	}
}
