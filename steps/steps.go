// Package steps collects human-readable narration for the test a worker is currently running
package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/johnstarich/uiwatch/worker"
)

// Log is an ordered, append-only journal of steps per worker
type Log struct {
	entries *worker.Local
}

// New creates an empty Log
func New() *Log {
	return &Log{entries: worker.NewLocal()}
}

// Append adds the trimmed 'text' to the worker's steps. Blank text is ignored.
func (l *Log) Append(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	current, _, err := l.entries.Get(ctx)
	if err != nil {
		return err
	}
	entries, _ := current.([]string)
	return l.entries.Set(ctx, append(entries, text))
}

// Appendf formats and appends a step
func (l *Log) Appendf(ctx context.Context, format string, args ...interface{}) error {
	return l.Append(ctx, fmt.Sprintf(format, args...))
}

// Snapshot returns a copy of the worker's steps, in order
func (l *Log) Snapshot(ctx context.Context) []string {
	current, _, err := l.entries.Get(ctx)
	if err != nil {
		return []string{}
	}
	entries, _ := current.([]string)
	snapshot := make([]string, len(entries))
	copy(snapshot, entries)
	return snapshot
}

// Clear empties the worker's steps. Run at the end of every test, regardless of outcome.
func (l *Log) Clear(ctx context.Context) {
	_, _, _ = l.entries.Delete(ctx)
}
