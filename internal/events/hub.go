package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/obslog"
	"go.uber.org/zap"
)

// DefaultBuffer is the per-subscription queue length.
const DefaultBuffer = 64

// Forwarder receives every locally published event, e.g. to mirror it to
// other processes. Forward must not block.
type Forwarder interface {
	Forward(ev domain.Event)
}

type topic struct {
	mu   sync.Mutex
	seq  uint64
	subs map[*Subscription]struct{}
}

// Hub is the per-room publish/subscribe fabric of one process. Publishing
// never blocks on subscribers: a full subscriber queue loses the event, and
// the subscriber sees the hole as a sequence gap.
type Hub struct {
	mu      sync.Mutex
	topics  map[string]*topic
	buffer  int
	origin  string
	forward Forwarder
	nextID  atomic.Uint64
	now     func() time.Time
	log     *zap.Logger
}

type Option func(*Hub)

// WithBuffer sets the per-subscription queue length.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithOrigin tags published events with the node id.
func WithOrigin(origin string) Option { return func(h *Hub) { h.origin = origin } }

func WithLogger(l *zap.Logger) Option { return func(h *Hub) { h.log = l } }

func NewHub(opts ...Option) *Hub {
	h := &Hub{topics: make(map[string]*topic), buffer: DefaultBuffer, now: time.Now}
	for _, o := range opts {
		o(h)
	}
	h.log = obslog.Or(h.log)
	return h
}

// SetForwarder attaches a forwarder after construction.
func (h *Hub) SetForwarder(f Forwarder) {
	h.mu.Lock()
	h.forward = f
	h.mu.Unlock()
}

func (h *Hub) Origin() string { return h.origin }

func (h *Hub) topic(roomID string) *topic {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[roomID]
	if !ok {
		t = &topic{subs: make(map[*Subscription]struct{})}
		h.topics[roomID] = t
	}
	return t
}

// Publish stamps the next room-local sequence number and fans the event out
// to every current subscriber of the room, in that order for all of them.
func (h *Hub) Publish(roomID string, generation uint64, kind domain.EventKind, payload any) domain.Event {
	t := h.topic(roomID)
	t.mu.Lock()
	t.seq++
	ev := domain.Event{
		Seq:        t.seq,
		RoomID:     roomID,
		Generation: generation,
		Kind:       kind,
		At:         h.now().UTC(),
		Origin:     h.origin,
		Payload:    payload,
	}
	h.fanout(t, ev)
	t.mu.Unlock()

	h.mu.Lock()
	fw := h.forward
	h.mu.Unlock()
	if fw != nil {
		fw.Forward(ev)
	}
	return ev
}

// Deliver fans out an event produced elsewhere without restamping it.
func (h *Hub) Deliver(ev domain.Event) {
	t := h.topic(ev.RoomID)
	t.mu.Lock()
	if ev.Seq > t.seq {
		t.seq = ev.Seq
	}
	h.fanout(t, ev)
	t.mu.Unlock()
}

// fanout requires t.mu.
func (h *Hub) fanout(t *topic, ev domain.Event) {
	for s := range t.subs {
		select {
		case s.ch <- ev:
		default:
			n := s.dropped.Add(1)
			h.log.Debug("event_dropped",
				zap.String("room_id", ev.RoomID),
				zap.Uint64("seq", ev.Seq),
				zap.Uint64("subscription", s.id),
				zap.Uint64("dropped_total", n),
			)
		}
	}
}

// LastSeq returns the latest sequence number seen for the room.
func (h *Hub) LastSeq(roomID string) uint64 {
	t := h.topic(roomID)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seq
}

// Subscribe registers a new stream for the room. Cancelling ctx detaches it.
func (h *Hub) Subscribe(ctx context.Context, roomID string) *Subscription {
	s := &Subscription{
		id:     h.nextID.Add(1),
		roomID: roomID,
		hub:    h,
		ch:     make(chan domain.Event, h.buffer),
		done:   make(chan struct{}),
	}
	t := h.topic(roomID)
	t.mu.Lock()
	s.startSeq = t.seq
	t.subs[s] = struct{}{}
	t.mu.Unlock()

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				s.Close()
			case <-s.done:
			}
		}()
	}
	return s
}

// Unsubscribe detaches sub from the room, or every subscription of the room
// when sub is nil.
func (h *Hub) Unsubscribe(roomID string, sub *Subscription) {
	if sub != nil {
		sub.Close()
		return
	}
	t := h.topic(roomID)
	t.mu.Lock()
	subs := make([]*Subscription, 0, len(t.subs))
	for s := range t.subs {
		subs = append(subs, s)
	}
	t.mu.Unlock()
	for _, s := range subs {
		s.Close()
	}
}

// Subscribers returns the number of registrations for the room.
func (h *Hub) Subscribers(roomID string) int {
	t := h.topic(roomID)
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

func (h *Hub) detach(s *Subscription) {
	t := h.topic(s.roomID)
	t.mu.Lock()
	delete(t.subs, s)
	close(s.ch)
	t.mu.Unlock()
}
