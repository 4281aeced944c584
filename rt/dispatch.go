package rt

import (
	"log/slog"
	"sync"
)

// Handler receives a decoded server message. Handlers run synchronously on
// the receive loop, in arrival order; a handler must not block for long or
// it stalls delivery of subsequent messages.
type Handler func(msg *ServerMessage)

// dispatcher routes decoded messages to handlers registered per message
// kind. Handlers for a kind run in registration order. A panicking handler
// is recovered and logged so one bad callback cannot kill the receive loop.
type dispatcher struct {
	mu       sync.RWMutex
	handlers map[ServerMessageType][]Handler
	logger   *slog.Logger
}

func newDispatcher(logger *slog.Logger) *dispatcher {
	return &dispatcher{
		handlers: make(map[ServerMessageType][]Handler),
		logger:   logger,
	}
}

// on appends a handler for the given message kind.
func (d *dispatcher) on(t ServerMessageType, h Handler) {
	if h == nil {
		return
	}
	d.mu.Lock()
	d.handlers[t] = append(d.handlers[t], h)
	d.mu.Unlock()
}

// dispatch invokes all handlers registered for the message's kind.
// Messages are never reordered or filtered here: an empty-text final
// transcript still reaches its handlers.
func (d *dispatcher) dispatch(msg *ServerMessage) {
	d.mu.RLock()
	hs := d.handlers[msg.Type]
	d.mu.RUnlock()

	for _, h := range hs {
		d.invoke(h, msg)
	}
}

func (d *dispatcher) invoke(h Handler, msg *ServerMessage) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("transcript handler panicked",
				slog.String("message_type", string(msg.Type)),
				slog.Any("panic", r),
			)
		}
	}()
	h(msg)
}
