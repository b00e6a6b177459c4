package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDifficultyContract(t *testing.T) {
	want := map[Difficulty]int{Easy: 12, Medium: 20, Hard: 30}
	for d, n := range want {
		if d.CardCount() != n || d.Pairs() != n/2 { t.Fatalf("%s: cards=%d pairs=%d", d, d.CardCount(), d.Pairs()) }
	}
	if Difficulty("nightmare").Valid() || Difficulty("nightmare").Order() != -1 { t.Fatal("unknown tier reported valid") }

	for in, out := range map[string]Difficulty{" EASY ": Easy, "Hard": Hard, "": ""} {
		got, ok := ParseDifficulty(in)
		if !ok || got != out { t.Fatalf("ParseDifficulty(%q) = %q, %v", in, got, ok) }
	}
	if _, ok := ParseDifficulty("expert"); ok { t.Fatal("expert parsed") }
}

func TestSessionStatesOnlyMoveForward(t *testing.T) {
	states := []SessionState{SessionForming, SessionActive, SessionEnded}
	for i, from := range states {
		for j, to := range states {
			if got := from.CanTransition(to); got != (j == i+1) { t.Fatalf("%s→%s = %v", from, to, got) }
		}
	}
}

func TestRoomHasSeat(t *testing.T) {
	r := Room{Capacity: 2, Occupancy: 1, State: RoomOpen}
	if !r.HasSeat() { t.Fatal("open room with space has no seat") }
	r.Occupancy = 2
	if r.HasSeat() { t.Fatal("full room has a seat") }
	r.Occupancy, r.State = 0, RoomInGame
	if r.HasSeat() { t.Fatal("in-game room has a seat") }
}

func TestErrorsMatchByCode(t *testing.T) {
	err := fmt.Errorf("join: %w", Errorf(CodeRoomFull, "room %s", "r1"))
	if !errors.Is(err, ErrRoomFull) || errors.Is(err, ErrNotHost) { t.Fatalf("errors.Is mismatch for %v", err) }
	if IsRetryable(err) { t.Fatal("RoomFull reported retryable") }

	cause := errors.New("dial tcp: refused")
	tr := Transient("registry", cause)
	if !errors.Is(tr, ErrTransient) || !errors.Is(tr, cause) || !IsRetryable(tr) { t.Fatalf("transient = %+v", tr) }

	if e := AsError(errors.New("boom")); e.Code != CodeTransient { t.Fatalf("AsError(plain) = %v", e) }
	if AsError(nil) != nil { t.Fatal("AsError(nil) != nil") }
}

func TestSummaryTotalPairs(t *testing.T) {
	s := &Summary{Standings: []Standing{{PairsMatched: 3}, {PairsMatched: 2}, {PairsMatched: 1, Left: true}}}
	if s.TotalPairs() != 6 { t.Fatalf("TotalPairs = %d", s.TotalPairs()) }
	var none *Summary
	if none.TotalPairs() != 0 { t.Fatal("nil summary has pairs") }
}
