// Package logging sets up the process logger: a colored console handler plus an optional
// line-numbered log file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

type Options struct {
	Level slog.Level
	// Console defaults to stderr. Color is used only when it is a terminal.
	Console io.Writer
	// FilePath is truncated and written in addition to the console when set.
	FilePath string
}

// New builds the logger described by opts. The returned close func flushes and closes the
// log file and is safe to call when no file was opened.
func New(opts Options) (*slog.Logger, func() error, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	consoleHandler := tint.NewHandler(console, &tint.Options{
		Level:      opts.Level,
		TimeFormat: consoleTimeFormat,
		NoColor:    !isTerminal(console),
	})

	if opts.FilePath == "" {
		return slog.New(consoleHandler), func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	lines := NewLineWriter(file)
	fileHandler := slog.NewTextHandler(lines, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// the line writer stamps the time
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	closeFn := func() error {
		if err := lines.Close(); err != nil {
			file.Close()
			return err
		}
		return file.Close()
	}
	return slog.New(NewMultiHandler(consoleHandler, fileHandler)), closeFn, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
