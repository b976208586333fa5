// Package notify surfaces user-visible notices ("toasts") raised by the stores.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	otelx "github.com/Sakin08/Doctors-Appointment/libs/otel"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

type Toast struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Op      string    `json:"op,omitempty"`
	At      time.Time `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, t Toast)
}

func Success(ctx context.Context, n Notifier, op, message string) {
	send(ctx, n, LevelSuccess, op, message)
}

func Error(ctx context.Context, n Notifier, op, message string) {
	send(ctx, n, LevelError, op, message)
}

func send(ctx context.Context, n Notifier, level Level, op, message string) {
	if n == nil {
		return
	}
	n.Notify(ctx, Toast{Level: level, Message: message, Op: op, At: time.Now().UTC()})
}

type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(ctx context.Context, t Toast) {
	level := slog.LevelInfo
	if t.Level == LevelError {
		level = slog.LevelWarn
	}
	attrs := []any{"op", t.Op, "toast", string(t.Level)}
	if id := otelx.TraceID(ctx); id != "" {
		attrs = append(attrs, "trace_id", id)
	}
	l.logger.Log(ctx, level, t.Message, attrs...)
}

// WriterNotifier prints one line per toast, for terminals.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

func (n *WriterNotifier) Notify(_ context.Context, t Toast) {
	mark := "✓"
	switch t.Level {
	case LevelError:
		mark = "✗"
	case LevelInfo:
		mark = "•"
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.w, "%s %s\n", mark, t.Message)
}

type Multi []Notifier

func (m Multi) Notify(ctx context.Context, t Toast) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, t)
		}
	}
}

// Recorder keeps every toast in memory.
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

func (r *Recorder) Notify(_ context.Context, t Toast) {
	r.mu.Lock()
	r.toasts = append(r.toasts, t)
	r.mu.Unlock()
}

func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Toast, len(r.toasts))
	copy(out, r.toasts)
	return out
}

func (r *Recorder) Last() (Toast, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.toasts) == 0 {
		return Toast{}, false
	}
	return r.toasts[len(r.toasts)-1], true
}
