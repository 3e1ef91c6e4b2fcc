package logger

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// recordingHandler counts handled records, optionally delaying each one.
type recordingHandler struct {
	mu    sync.Mutex
	count int
	msgs  []string
	delay time.Duration
}

func (h *recordingHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, rec slog.Record) error {
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	h.mu.Lock()
	h.count++
	h.msgs = append(h.msgs, rec.Message)
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(_ string) slog.Handler      { return h }

func (h *recordingHandler) handled() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

func (h *recordingHandler) lastMessage() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.msgs) == 0 {
		return ""
	}
	return h.msgs[len(h.msgs)-1]
}

func TestAsyncHandlerBasicWrite(t *testing.T) {
	inner := &recordingHandler{}
	h := NewAsyncHandler(inner, 16, 2)

	rec := slog.NewRecord(time.Now(), slog.LevelInfo, "conflict detected", 0)
	if err := h.Handle(context.Background(), rec); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	h.Close()

	if got := inner.handled(); got != 1 {
		t.Fatalf("expected 1 handled record, got %d", got)
	}
	if got := h.DroppedCount(); got != 0 {
		t.Fatalf("expected 0 drops, got %d", got)
	}
}

func TestAsyncHandlerConcurrentWrites(t *testing.T) {
	inner := &recordingHandler{}
	h := NewAsyncHandler(inner, 10000, 4)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				rec := slog.NewRecord(time.Now(), slog.LevelInfo, "tick", 0)
				_ = h.Handle(context.Background(), rec)
			}
		}()
	}
	wg.Wait()
	h.Close()

	if got := inner.handled(); got != 10000 {
		t.Fatalf("expected 10000 handled records, got %d", got)
	}
}

func TestAsyncHandlerChannelFullDrops(t *testing.T) {
	inner := &recordingHandler{delay: 50 * time.Millisecond}
	h := NewAsyncHandler(inner, 1, 1)

	for i := 0; i < 20; i++ {
		rec := slog.NewRecord(time.Now(), slog.LevelInfo, "flood", 0)
		_ = h.Handle(context.Background(), rec)
	}
	h.Close()

	if got := h.DroppedCount(); got == 0 {
		t.Fatal("expected drops when channel is full")
	}
}

func TestAsyncHandlerCloseReportsDrops(t *testing.T) {
	inner := &recordingHandler{delay: 50 * time.Millisecond}
	h := NewAsyncHandler(inner, 1, 1)

	for i := 0; i < 20; i++ {
		rec := slog.NewRecord(time.Now(), slog.LevelInfo, "flood", 0)
		_ = h.Handle(context.Background(), rec)
	}
	h.Close()

	if got := h.DroppedCount(); got == 0 {
		t.Fatal("expected drops when channel is full")
	}
	if got := inner.lastMessage(); got != "async log records dropped" {
		t.Fatalf("expected drop summary as final record, got %q", got)
	}
}

func TestAsyncHandlerCloseFlushesRemaining(t *testing.T) {
	inner := &recordingHandler{}
	h := NewAsyncHandler(inner, 100, 1)

	for i := 0; i < 50; i++ {
		rec := slog.NewRecord(time.Now(), slog.LevelInfo, "pending", 0)
		_ = h.Handle(context.Background(), rec)
	}
	h.Close()

	if got := inner.handled(); got != 50 {
		t.Fatalf("expected all 50 records flushed on close, got %d", got)
	}
}
