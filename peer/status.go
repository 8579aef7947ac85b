package peer

import (
	"sync"
	"sync/atomic"
)

// Status is the believed availability of a peer, as observed from the local
// node. It is only ever driven by completed or failed requests, never by a
// timer alone.
type Status int32

const (
	// StatusUnknown is the initial state before any request has completed.
	StatusUnknown Status = iota
	// StatusAvailable means the last request to the peer succeeded.
	StatusAvailable
	// StatusUnavailable means the last request could not reach the peer.
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusAvailable:
		return "available"
	case StatusUnavailable:
		return "unavailable"
	default:
		return ""
	}
}

// StatusHandler is invoked synchronously on every actual status transition.
type StatusHandler func(prev, next Status)

// StatusTracker holds the tracked availability of a single peer and notifies
// subscribers on change. Updates use compare-and-swap on the status word so
// that a handler running for one transition never blocks an unrelated
// concurrent update, and the notification for a given transition fires
// at most once: only the caller that wins the swap notifies.
type StatusTracker struct {
	value atomic.Int32

	mut    sync.Mutex // guards subs
	subs   map[int]StatusHandler
	nextID int
}

func NewStatusTracker() *StatusTracker {
	return &StatusTracker{
		subs: make(map[int]StatusHandler),
	}
}

// Get returns the current tracked status.
func (t *StatusTracker) Get() Status {
	return Status(t.value.Load())
}

// Set transitions the tracker to next and returns the previous value.
// Setting the current value is a no-op and does not notify.
func (t *StatusTracker) Set(next Status) Status {
	for {
		prev := Status(t.value.Load())
		if prev == next {
			return prev
		}

		if t.value.CompareAndSwap(int32(prev), int32(next)) {
			t.notify(prev, next)
			return prev
		}
	}
}

// Subscribe registers a handler and returns a token for Unsubscribe.
func (t *StatusTracker) Subscribe(h StatusHandler) int {
	t.mut.Lock()
	defer t.mut.Unlock()

	t.nextID++
	t.subs[t.nextID] = h

	return t.nextID
}

// Unsubscribe removes a previously registered handler.
func (t *StatusTracker) Unsubscribe(id int) {
	t.mut.Lock()
	defer t.mut.Unlock()

	delete(t.subs, id)
}

// notify snapshots the subscriber list and invokes the handlers outside the
// lock, so a slow handler cannot block Subscribe/Unsubscribe.
func (t *StatusTracker) notify(prev, next Status) {
	t.mut.Lock()
	handlers := make([]StatusHandler, 0, len(t.subs))

	for _, h := range t.subs {
		handlers = append(handlers, h)
	}
	t.mut.Unlock()

	for _, h := range handlers {
		h(prev, next)
	}
}
