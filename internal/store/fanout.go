package store

import (
	"sync"
	"sync/atomic"
)

// Subscriber is a live broadcast endpoint returned by Store.Subscribe. The
// command layer selects on Messages()/Closed() to stream published bodies
// to its connection.
type Subscriber struct {
	ch      chan []byte
	closed  chan struct{}
	dropped atomic.Int64
	once    sync.Once
}

// Messages yields bodies published to the subscribed topic after
// subscription. When the channel overflows because the subscriber is
// slower than the publisher, the oldest undelivered body is dropped to make
// room for the newest; Dropped reports how many times that happened.
func (s *Subscriber) Messages() <-chan []byte {
	return s.ch
}

// Closed fires when the topic is deleted (or the hub is torn down). Callers
// must stop reading Messages once this fires; no further sends occur.
func (s *Subscriber) Closed() <-chan struct{} {
	return s.closed
}

// Dropped returns the number of messages dropped for this subscriber due to
// lag (buffer full on arrival of a new message).
func (s *Subscriber) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Subscriber) deliver(body []byte) {
	select {
	case s.ch <- body:
		return
	default:
	}
	// Buffer full: drop the oldest undelivered message, then push the
	// newest. Both operations are non-blocking so a lagging subscriber
	// never stalls the publisher.
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- body:
	default:
	}
	s.dropped.Add(1)
}

// fanoutHub is the broadcast fan-out endpoint for one topic: multiple
// subscribers, drop-oldest-per-subscriber on overflow, closed when the
// topic is deleted.
type fanoutHub struct {
	mu       sync.Mutex
	subs     map[*Subscriber]struct{}
	capacity int
}

func newFanoutHub(capacity int) *fanoutHub {
	return &fanoutHub{
		subs:     make(map[*Subscriber]struct{}),
		capacity: capacity,
	}
}

func (h *fanoutHub) subscribe() *Subscriber {
	sub := &Subscriber{
		ch:     make(chan []byte, h.capacity),
		closed: make(chan struct{}),
	}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *fanoutHub) unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

func (h *fanoutHub) subscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// publish snapshots the subscriber set under the lock, releases it, then
// delivers to each subscriber synchronously in the calling goroutine.
// deliver is already non-blocking by construction (drop-oldest on a full
// buffer), so handing it to a separate goroutine or pool would only buy
// the ability to race with other publish calls on the same topic and
// break the in-order delivery a single subscriber is owed: two Publish
// calls that complete in order must deliver in that order, which only
// holds if delivery happens inline, not on a separately scheduled task.
func (h *fanoutHub) publish(body []byte) int {
	h.mu.Lock()
	subs := make([]*Subscriber, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(body)
	}
	return len(subs)
}

// close tears down the hub: every subscriber's Closed channel fires and no
// further deliveries are possible.
func (h *fanoutHub) close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[*Subscriber]struct{})
	h.mu.Unlock()

	for sub := range subs {
		sub.once.Do(func() { close(sub.closed) })
	}
}
