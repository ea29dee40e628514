// Package logging configures the process-wide slog logger and optional
// syslog forwarding.
package logging

import (
	"context"
	"log/slog"
	"os"
)

// LevelFatal tags unrecoverable configuration failures. The daemon
// logs at this level immediately before aborting assembly.
const LevelFatal = slog.LevelError + 4

// Options controls Setup.
type Options struct {
	Level  slog.Level
	Syslog string // host:port of a UDP syslog receiver, empty = disabled
	Tag    string // syslog program tag
}

// Setup installs the default slog logger: a text handler on stderr,
// wrapped with syslog forwarding when a receiver is configured. The
// returned closer releases the syslog connection; it is a no-op when
// forwarding is disabled.
func Setup(opts Options) (func() error, error) {
	base := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       opts.Level,
		ReplaceAttr: renameFatal,
	})

	if opts.Syslog == "" {
		slog.SetDefault(slog.New(base))
		return func() error { return nil }, nil
	}

	client, err := NewClient(opts.Syslog, opts.Tag)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(NewForwardHandler(base, client)))
	return client.Close, nil
}

// renameFatal renders LevelFatal records as level=FATAL instead of
// the handler default ERROR+4.
func renameFatal(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok && level >= LevelFatal {
			a.Value = slog.StringValue("FATAL")
		}
	}
	return a
}

// Fatal logs msg at LevelFatal with the default logger.
func Fatal(msg string, args ...any) {
	slog.Log(context.Background(), LevelFatal, msg, args...)
}
