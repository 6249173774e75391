package store

import (
	"os"
	"testing"
	"time"

	"github.com/atopx/tinyq/internal/logger"
)

func newTestStore(maxLen int) *Store {
	return New(maxLen, logger.New(os.Stderr, logger.LevelError, "[test]"))
}

func TestPushDropOldestOnOverflow(t *testing.T) {
	s := newTestStore(2)
	defer s.ShutdownBgtask()

	s.Push("q", []byte("m1"))
	s.Push("q", []byte("m2"))
	s.Push("q", []byte("m3"))

	if got := s.Len("q"); got != 2 {
		t.Fatalf("Len(q) = %d, want 2", got)
	}

	got, ok := s.MPop("q", 2)
	if !ok || len(got) != 2 {
		t.Fatalf("MPop(q, 2) = %v, %v", got, ok)
	}
	if string(got[0]) != "m2" || string(got[1]) != "m3" {
		t.Fatalf("expected backlog [m2 m3], got %q %q", got[0], got[1])
	}
}

func TestPopOnEmptyOrMissingTopic(t *testing.T) {
	s := newTestStore(4)
	defer s.ShutdownBgtask()

	if _, ok := s.Pop("missing"); ok {
		t.Fatal("Pop on missing topic should report ok=false")
	}

	s.EnsureTopic("empty")
	if _, ok := s.Pop("empty"); ok {
		t.Fatal("Pop on empty topic should report ok=false")
	}
}

func TestClearKeepsTopicKnown(t *testing.T) {
	s := newTestStore(4)
	defer s.ShutdownBgtask()

	s.Push("t", []byte("a"))
	s.Clear("t")

	if got := s.Len("t"); got != 0 {
		t.Fatalf("Len(t) after Clear = %d, want 0", got)
	}
	found := false
	for _, name := range s.ListTopics() {
		if name == "t" {
			found = true
		}
	}
	if !found {
		t.Fatal("topic should still be known after Clear")
	}
}

func TestDelRemovesTopicAndClosesSubscribers(t *testing.T) {
	s := newTestStore(4)
	defer s.ShutdownBgtask()

	s.Push("t", []byte("a"))
	sub := s.Subscribe("t")

	s.Del("t")

	if got := s.Len("t"); got != 0 {
		t.Fatalf("Len(t) after Del = %d, want 0", got)
	}
	select {
	case <-sub.Closed():
	case <-time.After(time.Second):
		t.Fatal("subscriber Closed() did not fire after Del")
	}
}

func TestPublishReturnsSubscriberCount(t *testing.T) {
	s := newTestStore(4)
	defer s.ShutdownBgtask()

	if n := s.Publish("nobody-home", []byte("x")); n != 0 {
		t.Fatalf("Publish to unknown topic = %d, want 0", n)
	}

	sub1 := s.Subscribe("t")
	sub2 := s.Subscribe("t")

	n := s.Publish("t", []byte("hello"))
	if n != 2 {
		t.Fatalf("Publish subscriber count = %d, want 2", n)
	}

	for _, sub := range []*Subscriber{sub1, sub2} {
		select {
		case body := <-sub.Messages():
			if string(body) != "hello" {
				t.Fatalf("got %q, want hello", body)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive published message")
		}
	}
}

func TestSubscribeOnlySeesMessagesAfterSubscription(t *testing.T) {
	s := newTestStore(4)
	defer s.ShutdownBgtask()

	s.Push("t", []byte("before"))
	s.Publish("t", []byte("before-broadcast"))

	sub := s.Subscribe("t")
	s.Publish("t", []byte("after"))

	select {
	case body := <-sub.Messages():
		if string(body) != "after" {
			t.Fatalf("got %q, want after", body)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive post-subscribe message")
	}

	select {
	case body := <-sub.Messages():
		t.Fatalf("subscriber unexpectedly received a second message: %q", body)
	default:
	}
}

func TestLaggingSubscriberDropsOldestAndResumes(t *testing.T) {
	s := newTestStore(2)
	defer s.ShutdownBgtask()

	sub := s.Subscribe("t")
	s.Publish("t", []byte("m1"))
	s.Publish("t", []byte("m2"))
	s.Publish("t", []byte("m3"))

	seen := make([]string, 0, 2)
	for i := 0; i < 2; i++ {
		select {
		case body := <-sub.Messages():
			seen = append(seen, string(body))
		case <-time.After(time.Second):
			t.Fatalf("expected 2 buffered messages, got %d", i)
		}
	}

	// m1 was dropped to make room; the survivors arrive in publish order.
	if seen[0] != "m2" || seen[1] != "m3" {
		t.Fatalf("expected [m2 m3] in order after lag, got %v", seen)
	}
	if sub.Dropped() == 0 {
		t.Fatal("expected Dropped() > 0 after overflowing a 2-capacity buffer with 3 sends")
	}
}

func TestShutdownBgtaskStopsHousekeeping(t *testing.T) {
	s := newTestStore(4)
	s.ShutdownBgtask()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("housekeeping task did not exit after ShutdownBgtask")
	}
}
