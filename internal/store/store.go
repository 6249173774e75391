// Package store holds the process-wide topic state: for every topic, a
// bounded FIFO backlog and a bounded broadcast fan-out endpoint, guarded by
// a single short-critical-section mutex, plus a housekeeping background
// task.
package store

import (
	"sync"
	"time"

	"github.com/atopx/tinyq/internal/logger"
)

// housekeepingInterval is the scheduled wake period for the background
// task when it has no explicit notification pending. Nothing is currently
// scheduled on it; it exists so the task can pick up future maintenance
// work (expiration, reporting) without a protocol change.
const housekeepingInterval = 30 * time.Second

type topicState struct {
	backlog backlog
	fanout  *fanoutHub
}

// Store is the shared broker state, passed around by pointer. All handlers
// and the housekeeping task observe the same instance.
type Store struct {
	mu     sync.Mutex
	topics map[string]*topicState

	shutdown bool
	notify   chan struct{}
	doneCh   chan struct{}

	maxQueueLen int
	log         *logger.Logger
}

// New constructs a Store and starts its housekeeping task. maxQueueLen
// bounds both the per-topic backlog depth and the per-subscriber broadcast
// buffer.
func New(maxQueueLen int, log *logger.Logger) *Store {
	s := &Store{
		topics:      make(map[string]*topicState),
		notify:      make(chan struct{}, 1),
		doneCh:      make(chan struct{}),
		maxQueueLen: maxQueueLen,
		log:         log,
	}
	go s.backgroundTask()
	return s
}

func (s *Store) getOrCreate(topic string) *topicState {
	t, ok := s.topics[topic]
	if !ok {
		t = &topicState{fanout: newFanoutHub(s.maxQueueLen)}
		s.topics[topic] = t
	}
	return t
}

// EnsureTopic creates the topic (both backlog and fan-out structures) if it
// does not already exist. CreateConsumeTopic and CreateBroadcastTopic both
// resolve to this: every topic always holds both structures (§3).
func (s *Store) EnsureTopic(topic string) {
	s.mu.Lock()
	s.getOrCreate(topic)
	s.mu.Unlock()
}

// Push appends body to topic's backlog, dropping the oldest entry first on
// overflow.
func (s *Store) Push(topic string, body []byte) {
	s.mu.Lock()
	t := s.getOrCreate(topic)
	t.backlog.pushBack(body, s.maxQueueLen)
	s.mu.Unlock()
}

// MPush batch-inserts bodies at the head, dropping from the tail on
// overflow (the source's asymmetric batch variant; see DESIGN.md).
func (s *Store) MPush(topic string, bodies [][]byte) {
	s.mu.Lock()
	t := s.getOrCreate(topic)
	t.backlog.pushFrontMulti(bodies, s.maxQueueLen)
	s.mu.Unlock()
}

// Pop removes and returns the newest backlog entry for topic.
func (s *Store) Pop(topic string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topics[topic]
	if !ok {
		return nil, false
	}
	return t.backlog.popBack()
}

// MPop removes and returns up to n of the newest backlog entries.
func (s *Store) MPop(topic string, n int) ([][]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topics[topic]
	if !ok {
		return nil, false
	}
	return t.backlog.popBackMulti(n), true
}

// Len reports the current backlog depth for topic, 0 if topic is unknown.
func (s *Store) Len(topic string) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topics[topic]
	if !ok {
		return 0
	}
	return uint32(t.backlog.length())
}

// Publish sends body to topic's broadcast subscribers and returns the
// subscriber count (0 if the topic has none). The sender handle is taken
// under the lock and released before any send, so publish never blocks on
// a slow subscriber.
func (s *Store) Publish(topic string, body []byte) int {
	s.mu.Lock()
	t, ok := s.topics[topic]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	return t.fanout.publish(body)
}

// Subscribe returns a fan-out endpoint for topic, creating the topic if
// necessary. Only messages published after this call are visible.
func (s *Store) Subscribe(topic string) *Subscriber {
	s.mu.Lock()
	t := s.getOrCreate(topic)
	hub := t.fanout
	s.mu.Unlock()
	return hub.subscribe()
}

// Unsubscribe detaches sub from topic's fan-out endpoint. Safe to call
// after the topic has already been deleted (no-op).
func (s *Store) Unsubscribe(topic string, sub *Subscriber) {
	s.mu.Lock()
	t, ok := s.topics[topic]
	s.mu.Unlock()
	if ok {
		t.fanout.unsubscribe(sub)
	}
}

// Clear empties topic's backlog, keeping topic metadata and subscribers.
func (s *Store) Clear(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.topics[topic]; ok {
		t.backlog.clear()
	}
}

// Del removes topic entirely: backlog and fan-out endpoint. Existing
// subscribers observe their Closed channel fire. A subsequent publish or
// push recreates the topic from scratch.
func (s *Store) Del(topic string) {
	s.mu.Lock()
	t, ok := s.topics[topic]
	if ok {
		delete(s.topics, topic)
	}
	s.mu.Unlock()
	if ok {
		t.fanout.close()
	}
}

// ListTopics returns a snapshot of known topic names, for admin
// introspection.
func (s *Store) ListTopics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.topics))
	for name := range s.topics {
		names = append(names, name)
	}
	return names
}

// ShutdownBgtask sets the shutdown flag and notifies the housekeeping task,
// which exits within one wake cycle.
func (s *Store) ShutdownBgtask() {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Done closes when the housekeeping task has exited, for orderly test
// teardown.
func (s *Store) Done() <-chan struct{} {
	return s.doneCh
}

func (s *Store) isShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

// backgroundTask is the single long-lived housekeeping loop: it wakes on a
// scheduled tick or an explicit notification, and exits once shutdown is
// observed. No periodic maintenance work is currently scheduled; the loop
// exists so future expiration/reporting work has a home.
func (s *Store) backgroundTask() {
	defer close(s.doneCh)

	ticker := time.NewTicker(housekeepingInterval)
	defer ticker.Stop()

	for {
		if s.isShutdown() {
			s.log.Debug("housekeeping task exiting")
			return
		}
		select {
		case <-ticker.C:
		case <-s.notify:
		}
	}
}
