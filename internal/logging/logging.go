// Package logging builds the prefixed loggers used across the engine.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Kj20000/kidscard/internal/config"
)

// New returns a logger with the given bracketed prefix. When cfg.File is
// set the log is written to a size-rotated file (used by the daemon, which
// may run unattended for weeks); otherwise it goes to stderr.
func New(prefix string, cfg config.LogConfig) *log.Logger {
	var w io.Writer = os.Stderr
	if cfg.File != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
	}
	return log.New(w, prefix, log.LstdFlags)
}
