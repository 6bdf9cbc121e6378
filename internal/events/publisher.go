package events

import (
	"context"
	"log/slog"
	"sync"
)

// Publisher delivers committed registry signals to downstream consumers.
type Publisher interface {
	Emit(ctx context.Context, signal Signal) error
}

// Memory collects signals in process. Used in tests and as a building block
// for assertions on emission order.
type Memory struct {
	mu      sync.Mutex
	signals []Signal
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Emit(_ context.Context, signal Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals = append(m.signals, signal)
	return nil
}

// Signals returns a snapshot of everything emitted so far.
func (m *Memory) Signals() []Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Signal(nil), m.signals...)
}

// ByKind filters the emitted signals.
func (m *Memory) ByKind(kind Kind) []Signal {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Signal
	for _, s := range m.signals {
		if s.Kind() == kind {
			out = append(out, s)
		}
	}
	return out
}

// Log writes each signal as a structured log line. The default publisher
// when no broker is configured.
type Log struct {
	log *slog.Logger
}

func NewLog(log *slog.Logger) *Log { return &Log{log: log} }

func (l *Log) Emit(ctx context.Context, signal Signal) error {
	l.log.InfoContext(ctx, "registry signal", "kind", signal.Kind(), "payload", signal)
	return nil
}
