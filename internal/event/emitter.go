package event

import "sync"

// Emitter queues events produced under a caller's lock and delivers them to
// its listeners after that lock is released. Events reach listeners in the
// order they were enqueued; when several goroutines produce at once, whichever
// is already draining delivers the others' events too.
//
// Enqueue must be called while holding the producer lock that orders the
// events; Drain must be called after releasing it.
type Emitter[T any] struct {
	Broadcaster[T]

	qmu      sync.Mutex
	pending  []T
	draining bool
}

func (q *Emitter[T]) Enqueue(v T) {
	q.qmu.Lock()
	q.pending = append(q.pending, v)
	q.qmu.Unlock()
}

// Drain delivers queued events until the queue is empty. It returns at once
// if another goroutine, or a listener further up this stack, is draining.
func (q *Emitter[T]) Drain() {
	q.qmu.Lock()
	if q.draining {
		q.qmu.Unlock()
		return
	}
	q.draining = true
	defer func() {
		q.draining = false
		q.qmu.Unlock()
	}()

	for len(q.pending) > 0 {
		v := q.pending[0]
		q.pending = q.pending[1:]
		q.qmu.Unlock()
		q.deliver(v)
		q.qmu.Lock()
	}
	q.pending = nil
}

// deliver re-takes the queue lock if a listener panics so the deferred
// cleanup in Drain stays balanced.
func (q *Emitter[T]) deliver(v T) {
	ok := false
	defer func() {
		if !ok {
			q.qmu.Lock()
		}
	}()
	q.Notify(v)
	ok = true
}
