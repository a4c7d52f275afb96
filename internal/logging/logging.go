// Package logging builds the structured logger the CommandExecutor writes
// operational diagnostics to: log/slog over a
// rotating file, or over stderr when no log file is configured. Grounded
// on the teacher's own debug-logging idiom (cmd/bd/debug package's
// conditional, env-gated logging) combined with gopkg.in/natefinch/
// lumberjack.v2, which the teacher's go.mod carries but never wires
// directly — paired here with log/slog the way lumberjack is commonly
// paired with a structured logger, since a long-lived agent process
// writing one audit line per mutation is exactly the unbounded-log-file
// growth lumberjack exists to cap.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the rotating log's name under local_jit, alongside
// config.toml (spec.md §6 file layout).
const FileName = "jit.log"

// Options configures log rotation. A zero Options disables file logging
// entirely and New falls back to stderr.
type Options struct {
	Enabled    bool
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultOptions matches the teacher's typical rotation ceilings for a
// repo-local tool: small files, short retention.
func DefaultOptions() Options {
	return Options{Enabled: false, MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28, Compress: true}
}

// New builds a leveled JSON logger. When opts.Enabled, log lines go to
// localJIT/jit.log through a lumberjack.Logger that rotates and prunes
// old files; otherwise they go to stderr.
func New(localJIT string, opts Options) *slog.Logger {
	var w io.Writer = os.Stderr
	if opts.Enabled {
		w = &lumberjack.Logger{
			Filename:   filepath.Join(localJIT, FileName),
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
