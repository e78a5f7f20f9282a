package client

import (
	"sync"

	"go.uber.org/zap"
)

// LogToaster writes toasts to the logger. It is the default when no Toaster is given.
type LogToaster struct {
	Logger *zap.Logger
}

func (t LogToaster) Success(msg string) {
	t.Logger.Info("toast", zap.String("kind", "success"), zap.String("message", msg))
}

func (t LogToaster) Error(msg string) {
	t.Logger.Warn("toast", zap.String("kind", "error"), zap.String("message", msg))
}

// Toast is one message recorded by a RecordingToaster.
type Toast struct {
	Success bool
	Message string
}

// RecordingToaster keeps every toast in memory, for the CLI and tests.
type RecordingToaster struct {
	mu     sync.Mutex
	toasts []Toast
}

func (r *RecordingToaster) Success(msg string) { r.add(Toast{Success: true, Message: msg}) }
func (r *RecordingToaster) Error(msg string)   { r.add(Toast{Message: msg}) }

func (r *RecordingToaster) add(t Toast) {
	r.mu.Lock()
	r.toasts = append(r.toasts, t)
	r.mu.Unlock()
}

// Toasts returns a copy of what was shown so far.
func (r *RecordingToaster) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Toast(nil), r.toasts...)
}
