package events

import (
	"sync"
	"sync/atomic"

	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
)

// Subscription is a cancellable stream handle for one room.
type Subscription struct {
	id       uint64
	roomID   string
	hub      *Hub
	ch       chan domain.Event
	startSeq uint64
	dropped  atomic.Uint64
	once     sync.Once
	done     chan struct{}
}

// C yields the room's events in publish order. It is closed by Close.
func (s *Subscription) C() <-chan domain.Event { return s.ch }

func (s *Subscription) RoomID() string { return s.roomID }

// StartSeq is the room sequence at the moment of subscribing; the first
// event received has a greater number.
func (s *Subscription) StartSeq() uint64 { return s.startSeq }

// Dropped counts events lost because the queue was full.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Done is closed once the subscription has been detached.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close detaches only this registration. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.detach(s)
		close(s.done)
	})
}
