// Package diag carries structured degrade events. The core prefers graceful
// degradation over failing (plaintext fallback when hashing is unavailable,
// best-effort retention deletes, swallowed snapshot errors); every such path
// reports an Event here so the behavior is observable and testable instead of
// existing only as a log line.
package diag

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Event kinds reported by the core.
const (
	KindHashUnavailable   = "hash_unavailable"
	KindCryptoUnavailable = "crypto_unavailable"
	KindDecryptFailed     = "decrypt_failed"
	KindQuotaExceeded     = "quota_exceeded"
	KindSnapshotFailed    = "snapshot_failed"
	KindDeleteFailed      = "delete_failed"
)

// Event describes one degrade occurrence.
type Event struct {
	At        time.Time
	Component string
	Kind      string
	Detail    string
	Err       error
}

// Reporter receives degrade events.
type Reporter interface {
	Report(ctx context.Context, event Event)
}

// NewLogReporter returns a Reporter that writes events at WARN level.
func NewLogReporter(logger *slog.Logger) Reporter {
	return &logReporter{logger: logger}
}

type logReporter struct {
	logger *slog.Logger
}

func (r *logReporter) Report(ctx context.Context, event Event) {
	r.logger.WarnContext(ctx, "degraded operation",
		"component", event.Component,
		"kind", event.Kind,
		"detail", event.Detail,
		"error", event.Err)
}

// Nop is a Reporter that discards everything.
type Nop struct{}

func (Nop) Report(ctx context.Context, event Event) {}

// Recorder collects events for assertions in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Report(ctx context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.At = time.Now()
	r.events = append(r.events, event)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// CountKind returns how many recorded events have the given kind.
func (r *Recorder) CountKind(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
