package notify

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelNotifier(t *testing.T) {
	ctx := context.Background()
	n := NewChannelNotifier(2, slog.Default())

	n.Notify(ctx, Notification{Title: "first"})
	n.Notify(ctx, Notification{Title: "second"})

	got := <-n.C()
	assert.Equal(t, "first", got.Title)
	got = <-n.C()
	assert.Equal(t, "second", got.Title)
}

func TestChannelNotifierDropsWhenFull(t *testing.T) {
	ctx := context.Background()
	n := NewChannelNotifier(1, slog.Default())

	n.Notify(ctx, Notification{Title: "kept"})
	// Переполнение буфера не блокирует отправителя
	n.Notify(ctx, Notification{Title: "dropped"})

	got := <-n.C()
	assert.Equal(t, "kept", got.Title)

	select {
	case extra := <-n.C():
		t.Fatalf("unexpected notification: %q", extra.Title)
	default:
	}
}

func TestRateLimited(t *testing.T) {
	ctx := context.Background()
	recorder := &Recorder{}
	limited := NewRateLimited(recorder, time.Hour)

	for i := 0; i < 5; i++ {
		limited.Notify(ctx, Notification{Title: "quota", Type: TypeError})
	}

	// В окне проходит ровно одно уведомление
	require.Len(t, recorder.Sent(), 1)
	assert.Equal(t, "quota", recorder.Sent()[0].Title)
}

func TestRateLimitedAllowsAfterInterval(t *testing.T) {
	ctx := context.Background()
	recorder := &Recorder{}
	limited := NewRateLimited(recorder, 10*time.Millisecond)

	limited.Notify(ctx, Notification{Title: "first"})
	limited.Notify(ctx, Notification{Title: "suppressed"})

	time.Sleep(20 * time.Millisecond)
	limited.Notify(ctx, Notification{Title: "second"})

	sent := recorder.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "first", sent[0].Title)
	assert.Equal(t, "second", sent[1].Title)
}
