// Package notify delivers user-facing notifications. Presentation is out of
// scope for the core: consumers drain a channel (or plug their own Notifier)
// and render however they like.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Notification types.
const (
	TypeSuccess = "success"
	TypeError   = "error"
	TypeWarning = "warning"
)

// Notification is a single user-facing message.
type Notification struct {
	Title    string
	Message  string
	Type     string
	Silent   bool
	Duration time.Duration
}

// Notifier delivers notifications. Delivery must not block the caller for
// long and must never panic.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// ChannelNotifier buffers notifications on a channel for a presentation
// layer to drain. When the buffer is full the notification is dropped; the
// core never blocks on an unread notification.
type ChannelNotifier struct {
	ch     chan Notification
	logger *slog.Logger
}

func NewChannelNotifier(buffer int, logger *slog.Logger) *ChannelNotifier {
	return &ChannelNotifier{
		ch:     make(chan Notification, buffer),
		logger: logger,
	}
}

// C returns the channel to drain.
func (n *ChannelNotifier) C() <-chan Notification {
	return n.ch
}

func (n *ChannelNotifier) Notify(ctx context.Context, notification Notification) {
	select {
	case n.ch <- notification:
	default:
		n.logger.WarnContext(ctx, "notification dropped, buffer full",
			"title", notification.Title)
	}
}

// Nop discards all notifications.
type Nop struct{}

func (Nop) Notify(ctx context.Context, n Notification) {}

// Recorder collects notifications for tests.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *Recorder) Notify(ctx context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

// Sent returns a copy of everything recorded so far.
func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.sent))
	copy(out, r.sent)
	return out
}

// RateLimited wraps a Notifier so that at most one notification passes per
// interval; the rest are silently dropped. Used for the storage quota alert,
// which can fire on every failed write during an outage.
type RateLimited struct {
	next    Notifier
	limiter *rate.Limiter
}

func NewRateLimited(next Notifier, interval time.Duration) *RateLimited {
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

func (r *RateLimited) Notify(ctx context.Context, n Notification) {
	if !r.limiter.Allow() {
		return
	}
	r.next.Notify(ctx, n)
}
