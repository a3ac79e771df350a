package event

import "sync"

// ID identifies one registration with a Broadcaster.
type ID int

type entry[T any] struct {
	id ID
	fn func(T)
}

// Broadcaster fans one event out to every registered listener, synchronously
// and in registration order, on the goroutine that calls Notify.
type Broadcaster[T any] struct {
	mu     sync.RWMutex
	subs   []entry[T]
	nextID ID
}

// Register appends fn and returns a handle for Unregister. A nil fn is ignored
// and yields ID 0, which is never handed out otherwise.
func (b *Broadcaster[T]) Register(fn func(T)) ID {
	if fn == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs = append(b.subs, entry[T]{id: b.nextID, fn: fn})
	return b.nextID
}

// Unregister removes one listener. It reports whether id was registered.
func (b *Broadcaster[T]) Unregister(id ID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.subs {
		if e.id == id {
			subs := make([]entry[T], 0, len(b.subs)-1)
			subs = append(subs, b.subs[:i]...)
			b.subs = append(subs, b.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes all listeners.
func (b *Broadcaster[T]) Clear() {
	b.mu.Lock()
	b.subs = nil
	b.mu.Unlock()
}

func (b *Broadcaster[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Notify delivers v to the listeners registered when the call starts.
// Listeners may register or unregister from inside the callback.
func (b *Broadcaster[T]) Notify(v T) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()
	for _, e := range subs {
		e.fn(v)
	}
}
