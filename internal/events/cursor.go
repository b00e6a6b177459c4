package events

import "github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"

// Verdict classifies an incoming event for a subscriber.
type Verdict int

const (
	Deliver Verdict = iota
	Duplicate
	Stale
	Gap
)

func (v Verdict) String() string {
	switch v {
	case Deliver:
		return "deliver"
	case Duplicate:
		return "duplicate"
	case Stale:
		return "stale"
	case Gap:
		return "gap"
	default:
		return "unknown"
	}
}

// Cursor tracks what a subscriber has seen so it can drop redeliveries,
// discard stragglers from an earlier room incarnation and notice holes that
// require a full resync.
type Cursor struct {
	seq        uint64
	generation uint64
}

func NewCursor(seq, generation uint64) *Cursor { return &Cursor{seq: seq, generation: generation} }

// Observe classifies ev and advances the cursor for Deliver and Gap.
func (c *Cursor) Observe(ev domain.Event) Verdict {
	if ev.Generation < c.generation {
		return Stale
	}
	if ev.Seq <= c.seq {
		return Duplicate
	}
	v := Deliver
	if ev.Seq > c.seq+1 {
		v = Gap
	}
	c.seq = ev.Seq
	c.generation = ev.Generation
	return v
}

// Reset moves the cursor to a resync snapshot.
func (c *Cursor) Reset(seq, generation uint64) {
	c.seq = seq
	if generation > c.generation {
		c.generation = generation
	}
}

func (c *Cursor) Seq() uint64        { return c.seq }
func (c *Cursor) Generation() uint64 { return c.generation }
