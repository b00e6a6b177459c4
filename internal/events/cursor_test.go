package events

import (
	"testing"

	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
)

func TestCursorVerdicts(t *testing.T) {
	c := NewCursor(0, 1)
	steps := []struct {
		seq, gen uint64
		want     Verdict
	}{
		{1, 1, Deliver},
		{2, 1, Deliver},
		{2, 1, Duplicate},
		{1, 1, Duplicate},
		{5, 1, Gap},
		{6, 2, Deliver},
		{7, 1, Stale},
		{7, 2, Deliver},
	}
	for i, s := range steps {
		got := c.Observe(domain.Event{Seq: s.seq, Generation: s.gen})
		if got != s.want {
			t.Fatalf("step %d (seq=%d gen=%d): got %s want %s", i, s.seq, s.gen, got, s.want)
		}
	}
	c.Reset(20, 2)
	if c.Observe(domain.Event{Seq: 19, Generation: 2}) != Duplicate { t.Fatalf("reset did not move cursor") }
	if c.Observe(domain.Event{Seq: 21, Generation: 2}) != Deliver { t.Fatalf("next after reset should deliver") }
}
