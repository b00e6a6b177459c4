package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
)

func recv(t *testing.T, s *Subscription) domain.Event {
	t.Helper()
	select {
	case ev, ok := <-s.C():
		if !ok { t.Fatalf("subscription closed") }
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return domain.Event{}
}

func TestPublishAssignsMonotonicSeqPerRoom(t *testing.T) {
	h := NewHub()
	a := h.Subscribe(context.Background(), "r1")
	defer a.Close()

	e1 := h.Publish("r1", 1, domain.EventPlayerJoined, nil)
	e2 := h.Publish("r1", 1, domain.EventGameStarted, nil)
	other := h.Publish("r2", 1, domain.EventPlayerJoined, nil)
	if e1.Seq != 1 || e2.Seq != 2 || other.Seq != 1 {
		t.Fatalf("unexpected seqs: %d %d %d", e1.Seq, e2.Seq, other.Seq)
	}
	if got := recv(t, a); got.Seq != 1 || got.Kind != domain.EventPlayerJoined { t.Fatalf("first: %+v", got) }
	if got := recv(t, a); got.Seq != 2 { t.Fatalf("second: %+v", got) }
	if h.LastSeq("r1") != 2 { t.Fatalf("LastSeq=%d", h.LastSeq("r1")) }
}

func TestSubscribersObserveSameOrder(t *testing.T) {
	h := NewHub(WithBuffer(1024))
	subs := []*Subscription{
		h.Subscribe(context.Background(), "r"),
		h.Subscribe(context.Background(), "r"),
		h.Subscribe(context.Background(), "r"),
	}
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				h.Publish("r", 1, domain.EventCardFlipped, nil)
			}
		}()
	}
	wg.Wait()
	for _, s := range subs {
		s.Close()
	}
	var orders [][]uint64
	for _, s := range subs {
		var seqs []uint64
		for ev := range s.C() {
			seqs = append(seqs, ev.Seq)
		}
		orders = append(orders, seqs)
	}
	for i, seqs := range orders {
		if len(seqs) != 400 { t.Fatalf("sub %d got %d events", i, len(seqs)) }
		for j := 1; j < len(seqs); j++ {
			if seqs[j] <= seqs[j-1] { t.Fatalf("sub %d out of order at %d: %d after %d", i, j, seqs[j], seqs[j-1]) }
		}
	}
}

func TestSlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	h := NewHub(WithBuffer(2))
	slow := h.Subscribe(context.Background(), "r")
	fast := h.Subscribe(context.Background(), "r")
	defer slow.Close()
	defer fast.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			h.Publish("r", 1, domain.EventCardFlipped, nil)
			<-fast.C()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publisher blocked by slow subscriber")
	}
	if slow.Dropped() != 8 { t.Fatalf("slow dropped %d, want 8", slow.Dropped()) }

	c := NewCursor(slow.StartSeq(), 1)
	if v := c.Observe(recv(t, slow)); v != Deliver { t.Fatalf("first: %s", v) }
	if v := c.Observe(recv(t, slow)); v != Deliver { t.Fatalf("second: %s", v) }
	ev := h.Publish("r", 1, domain.EventCardFlipped, nil)
	<-fast.C()
	if got := recv(t, slow); got.Seq != ev.Seq || c.Observe(got) != Gap {
		t.Fatalf("expected gap on seq %d", got.Seq)
	}
}

func TestUnsubscribeOneHandlerKeepsOthers(t *testing.T) {
	h := NewHub()
	lobby := h.Subscribe(context.Background(), "r")
	board := h.Subscribe(context.Background(), "r")

	h.Publish("r", 1, domain.EventGameStarted, nil)
	if ev := recv(t, lobby); ev.Kind != domain.EventGameStarted { t.Fatalf("lobby: %+v", ev) }
	h.Unsubscribe("r", lobby)
	h.Publish("r", 1, domain.EventCardFlipped, nil)

	if _, ok := <-lobby.C(); ok { t.Fatalf("lobby should be closed after detaching") }
	if ev := recv(t, board); ev.Kind != domain.EventGameStarted { t.Fatalf("board first: %+v", ev) }
	if ev := recv(t, board); ev.Kind != domain.EventCardFlipped { t.Fatalf("board second: %+v", ev) }
	if h.Subscribers("r") != 1 { t.Fatalf("subscribers=%d", h.Subscribers("r")) }

	h.Unsubscribe("r", nil)
	if h.Subscribers("r") != 0 { t.Fatalf("Unsubscribe(nil) should remove all") }
	board.Close() // idempotent
}

func TestContextCancelDetaches(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	s := h.Subscribe(ctx, "r")
	cancel()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("subscription not detached on cancel")
	}
	if h.Subscribers("r") != 0 { t.Fatalf("still registered") }
}

func TestSeqSurvivesGenerations(t *testing.T) {
	h := NewHub()
	h.Publish("r", 1, domain.EventGameEnded, nil)
	ev := h.Publish("r", 2, domain.EventPlayerJoined, nil)
	if ev.Seq != 2 || ev.Generation != 2 { t.Fatalf("unexpected %+v", ev) }
}
