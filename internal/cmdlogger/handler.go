// Package cmdlogger provides the slog handler used for command line output.
package cmdlogger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Handler writes bare messages: errors go to stderr, everything else to
// stdout. Attributes are appended as key=value pairs.
type Handler struct {
	mu         *sync.Mutex
	stdout     io.Writer
	stderr     io.Writer
	hasErrored *bool
	level      *slog.LevelVar
	attrs      []slog.Attr
}

var _ slog.Handler = &Handler{}

func New(stdout, stderr io.Writer) *Handler {
	level := &slog.LevelVar{}
	level.Set(slog.LevelInfo)

	return &Handler{
		mu:         &sync.Mutex{},
		stdout:     stdout,
		stderr:     stderr,
		hasErrored: new(bool),
		level:      level,
	}
}

func (c *Handler) SetLevel(level slog.Level) {
	c.level.Set(level)
}

func (c *Handler) writer(level slog.Level) io.Writer {
	if level >= slog.LevelError {
		return c.stderr
	}

	return c.stdout
}

func (c *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= c.level.Level()
}

func (c *Handler) Handle(_ context.Context, record slog.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if record.Level >= slog.LevelError {
		*c.hasErrored = true
	}

	line := record.Message
	for _, a := range c.attrs {
		line += fmt.Sprintf(" %s=%v", a.Key, a.Value)
	}
	record.Attrs(func(a slog.Attr) bool {
		line += fmt.Sprintf(" %s=%v", a.Key, a.Value)
		return true
	})

	_, err := fmt.Fprint(c.writer(record.Level), line+"\n")

	return err
}

// HasErrored returns true if there have been any calls to Handle with
// a level of [slog.LevelError]
func (c *Handler) HasErrored() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return *c.hasErrored
}

func (c *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *c
	clone.attrs = append(append([]slog.Attr{}, c.attrs...), attrs...)

	return &clone
}

func (c *Handler) WithGroup(_ string) slog.Handler {
	return c
}
