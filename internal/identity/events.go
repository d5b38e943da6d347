package identity

import (
	"sort"
	"sync"
)

// Broadcaster fans auth events out to subscribers. Delivery is synchronous
// and in subscription order; subscribers must not block.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(Event)
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]func(Event))}
}

// Subscribe registers a handler and returns a function that removes it.
func (b *Broadcaster) Subscribe(handler func(Event)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Emit delivers the event to every current subscriber. Handlers run on the
// caller's goroutine, so events emitted sequentially are observed in order.
func (b *Broadcaster) Emit(ev Event) {
	b.mu.Lock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, b.subs[id])
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}
