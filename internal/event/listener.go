package event

import (
	"context"
	"log/slog"
	"sync"
)

type Handler func(ctx context.Context, e Event) error

// Listener is the single broadcast point for domain events: everything a
// session or the registry reports goes through Emit, and every registered
// handler (rolling log, websocket fan-out, remote relays) sees every event.
// Dispatch happens on the Listen goroutine, so handlers observe events of one
// session in emission order.
type Listener struct {
	logger   *slog.Logger
	mu       sync.RWMutex
	handlers []Handler
	events   chan Event
}

func NewListener(logger *slog.Logger) *Listener {
	return &Listener{
		logger: logger,
		events: make(chan Event, 256),
	}
}

func (l *Listener) Register(h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = append(l.handlers, h)
}

// Emit queues an event for dispatch. Delivery is best-effort: when the buffer
// is full the event is dropped rather than blocking a session goroutine.
func (l *Listener) Emit(e Event) {
	select {
	case l.events <- e:
	default:
		l.logger.Warn("Event buffer full, dropping event", slog.String("bot", e.BotName()))
	}
}

func (l *Listener) Listen(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-l.events:
			l.dispatch(ctx, e)
		}
	}
}

func (l *Listener) dispatch(ctx context.Context, e Event) {
	l.mu.RLock()
	handlers := make([]Handler, len(l.handlers))
	copy(handlers, l.handlers)
	l.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, e); err != nil {
			l.logger.Error("Error running event handler", slog.Any("error", err))
		}
	}
}
