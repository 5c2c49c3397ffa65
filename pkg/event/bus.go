package event

import (
	"context"
	"sync"
)

// Handler reacts to an event. A non-nil error aborts the firer.
type Handler func(ctx context.Context, e Event) error

// Bus delivers events to subscribed handlers, synchronously and in
// subscription order. It is safe for concurrent use; concurrent Fire calls
// are not serialized by the bus itself, so handlers that need ordering must
// provide it.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Kind][]Handler)}
}

// Subscribe registers h for each of kinds. With no kinds, h receives every
// recognized kind.
func (b *Bus) Subscribe(h Handler, kinds ...Kind) {
	if len(kinds) == 0 {
		kinds = Kinds()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range kinds {
		b.handlers[k] = append(b.handlers[k], h)
	}
}

// Fire delivers e to its handlers and returns the first error. Handlers
// after a failing one are not called.
func (b *Bus) Fire(ctx context.Context, e Event) error {
	b.mu.RLock()
	hs := append([]Handler(nil), b.handlers[e.Kind]...)
	b.mu.RUnlock()

	for _, h := range hs {
		if err := h(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of handlers registered for k.
func (b *Bus) Len(k Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[k])
}
