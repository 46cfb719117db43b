package binding

import (
	"sync"

	"github.com/ivlev/scrollviz/internal/dataset"
)

// HoverEvent reports the pointer entering or leaving an element.
type HoverEvent struct {
	Section   string
	ElementID string
	Enter     bool
	X, Y      float64
	Record    dataset.Record
}

// AnyElement subscribes to the events of every element.
const AnyElement = "*"

// Hub fans hover events out to subscribers of an element. Slow
// subscribers miss events instead of blocking the emitter.
type Hub struct {
	mu     sync.Mutex
	subs   map[string][]chan HoverEvent
	buffer int
	closed bool
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: make(map[string][]chan HoverEvent), buffer: buffer}
}

// OnHover subscribes to events of elementID. The channel is closed by
// Close.
func (h *Hub) OnHover(elementID string) <-chan HoverEvent {
	ch := make(chan HoverEvent, h.buffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.subs[elementID] = append(h.subs[elementID], ch)
	return ch
}

// Emit delivers ev and returns how many subscribers received it.
func (h *Hub) Emit(ev HoverEvent) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0
	}

	delivered := 0
	keys := []string{ev.ElementID}
	if ev.ElementID != AnyElement {
		keys = append(keys, AnyElement)
	}
	for _, key := range keys {
		for _, ch := range h.subs[key] {
			select {
			case ch <- ev:
				delivered++
			default:
			}
		}
	}
	return delivered
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, list := range h.subs {
		for _, ch := range list {
			close(ch)
		}
	}
	h.subs = nil
}
