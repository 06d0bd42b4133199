package store

import (
	"encoding/json"
	"sync"
)

// Hub fans store change notifications out to Listen subscribers. Both
// backends share it; the postgres backend additionally relays changes
// across replicas through an events bus.
type Hub struct {
	mu   sync.RWMutex
	seq  int
	subs map[string]map[int]ListenFunc // path → id → fn
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]ListenFunc)}
}

func (h *Hub) Subscribe(path string, fn ListenFunc) UnsubscribeFunc {
	h.mu.Lock()
	h.seq++
	id := h.seq
	if h.subs[path] == nil {
		h.subs[path] = make(map[int]ListenFunc)
	}
	h.subs[path][id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if fns, ok := h.subs[path]; ok {
			delete(fns, id)
			if len(fns) == 0 {
				delete(h.subs, path)
			}
		}
	}
}

// Notify dispatches a change at changedPath to every related subscriber,
// reading the current value at each subscribed path through read. It must be
// called after the mutation completed and with no backend locks held.
func (h *Hub) Notify(changedPath string, read func(path string) json.RawMessage) {
	type delivery struct {
		fn    ListenFunc
		value json.RawMessage
	}

	h.mu.RLock()
	var deliveries []delivery
	values := make(map[string]json.RawMessage)
	for path, fns := range h.subs {
		if !Related(path, changedPath) {
			continue
		}
		value, ok := values[path]
		if !ok {
			value = read(path)
			values[path] = value
		}
		for _, fn := range fns {
			deliveries = append(deliveries, delivery{fn: fn, value: value})
		}
	}
	h.mu.RUnlock()

	for _, d := range deliveries {
		d.fn(d.value)
	}
}
