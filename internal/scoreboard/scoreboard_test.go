package scoreboard

import (
	"sync"
	"testing"
	"time"

	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
)

func TestRecordMatchAndMiss(t *testing.T) {
	s := New(10)
	s.Add("a", "Ann", time.Now())

	s.RecordMatch("a")
	s.RecordMatch("a")
	p, _ := s.RecordMiss("a")
	if p.XP != 20 || p.PairsMatched != 2 || p.Streak != 0 || p.MaxStreak != 2 {
		t.Fatalf("unexpected counters after match,match,miss: %+v", p)
	}
	p, _ = s.RecordMatch("a")
	if p.Streak != 1 || p.MaxStreak != 2 {
		t.Fatalf("max streak must survive a shorter streak: %+v", p)
	}
	if _, ok := s.RecordMatch("ghost"); ok {
		t.Fatalf("unknown participant should not be recorded")
	}
}

func TestDefaultAward(t *testing.T) {
	s := New(0)
	s.Add("a", "Ann", time.Now())
	if p, _ := s.RecordMatch("a"); p.XP != DefaultMatchXP {
		t.Fatalf("xp %d, want %d", p.XP, DefaultMatchXP)
	}
}

func TestConcurrentMatchesSameParticipantNoLostUpdates(t *testing.T) {
	s := New(5)
	s.Add("a", "Ann", time.Now())
	s.Add("b", "Bob", time.Now())
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); s.RecordMatch("a") }()
		go func() { defer wg.Done(); s.RecordMatch("b") }()
	}
	wg.Wait()
	a, _ := s.Get("a")
	b, _ := s.Get("b")
	if a.PairsMatched != 200 || a.XP != 1000 || b.PairsMatched != 200 {
		t.Fatalf("lost updates: a=%+v b=%+v", a, b)
	}
	if s.TotalPairs() != 400 {
		t.Fatalf("TotalPairs=%d", s.TotalPairs())
	}
}

func TestRankOrdering(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ps := []domain.Participant{
		{ID: "c", XP: 20, PairsMatched: 2, JoinedAt: t0.Add(2 * time.Second)},
		{ID: "a", XP: 30, PairsMatched: 3, JoinedAt: t0.Add(3 * time.Second)},
		{ID: "b", XP: 20, PairsMatched: 2, JoinedAt: t0.Add(1 * time.Second)},
		{ID: "d", XP: 20, PairsMatched: 3, JoinedAt: t0.Add(5 * time.Second)},
		{ID: "f", XP: 0, JoinedAt: t0},
		{ID: "e", XP: 0, JoinedAt: t0},
	}
	got := Rank(ps)
	want := []string{"a", "d", "b", "c", "e", "f"}
	for i, st := range got {
		if st.ParticipantID != want[i] || st.Rank != i+1 {
			t.Fatalf("position %d: got %s rank %d, want %s rank %d", i, st.ParticipantID, st.Rank, want[i], i+1)
		}
	}
}

func TestMarkLeftKeepsEntry(t *testing.T) {
	s := New(10)
	s.Add("a", "Ann", time.Now())
	s.RecordMatch("a")
	s.MarkLeft("a")
	es := s.Entries()
	if len(es) != 1 || !es[0].Left || es[0].PairsMatched != 1 {
		t.Fatalf("entry after leave: %+v", es)
	}
	s.Add("a", "Ann", time.Now())
	if p, _ := s.Get("a"); p.Left || p.PairsMatched != 1 {
		t.Fatalf("re-add should keep counters and clear Left: %+v", p)
	}
}

func TestRemoveForgetsEntry(t *testing.T) {
	s := New(10)
	s.Add("a", "Ann", time.Now())
	s.Add("b", "Bo", time.Now())
	s.Add("c", "Cy", time.Now())
	s.Remove("b")
	s.Remove("missing")
	es := s.Entries()
	if len(es) != 2 || es[0].ID != "a" || es[1].ID != "c" {
		t.Fatalf("entries after remove: %+v", es)
	}
	if _, ok := s.RecordMatch("b"); ok {
		t.Fatalf("removed participant still scores")
	}
}
