package board

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
)

func fixedRand(seed uint64) *rand.Rand { return rand.New(rand.NewPCG(seed, 7)) }

// pairIndex maps each pair id to its two positions.
func pairIndex(t *testing.T, b *Board) map[int][]int {
	t.Helper()
	idx := make(map[int][]int)
	for i, c := range b.Cards() {
		idx[c.PairID] = append(idx[c.PairID], i)
	}
	return idx
}

func TestDealDeckInvariant(t *testing.T) {
	for _, d := range domain.Difficulties {
		for seed := uint64(0); seed < 50; seed++ {
			b, err := Deal(d, fixedRand(seed))
			if err != nil { t.Fatalf("Deal(%s): %v", d, err) }
			if b.Len() != d.CardCount() {
				t.Fatalf("%s: deck size %d, want %d", d, b.Len(), d.CardCount())
			}
			for pair, at := range pairIndex(t, b) {
				if len(at) != 2 {
					t.Fatalf("%s seed %d: pair %d appears %d times", d, seed, pair, len(at))
				}
			}
			if len(pairIndex(t, b)) != d.Pairs() {
				t.Fatalf("%s: %d distinct pairs, want %d", d, len(pairIndex(t, b)), d.Pairs())
			}
		}
	}
}

func TestDealRejectsUnknownDifficulty(t *testing.T) {
	if _, err := Deal(domain.Difficulty("insane"), nil); err == nil {
		t.Fatalf("expected error for unknown difficulty")
	}
}

func TestDealReproducibleWithSameSeed(t *testing.T) {
	a, _ := Deal(domain.Medium, fixedRand(42))
	b, _ := Deal(domain.Medium, fixedRand(42))
	ca, cb := a.Cards(), b.Cards()
	for i := range ca {
		if ca[i] != cb[i] { t.Fatalf("decks differ at %d", i) }
	}
}

func TestShuffleIsNotIdentity(t *testing.T) {
	// every position should see more than one pair id across seeds
	seen := make([]map[int]bool, domain.Easy.CardCount())
	for i := range seen { seen[i] = map[int]bool{} }
	for seed := uint64(0); seed < 200; seed++ {
		b, _ := Deal(domain.Easy, fixedRand(seed))
		for i, c := range b.Cards() { seen[i][c.PairID] = true }
	}
	for i, s := range seen {
		if len(s) < domain.Easy.Pairs() {
			t.Fatalf("position %d saw only %d pair ids over 200 deals", i, len(s))
		}
	}
}

func TestFlipMatchAndMiss(t *testing.T) {
	b, _ := Deal(domain.Easy, fixedRand(1))
	idx := pairIndex(t, b)

	out, err := b.Flip("p1", idx[0][0])
	if err != nil || out.Kind != OutcomeRevealed { t.Fatalf("first flip: %v %+v", err, out) }
	out, err = b.Flip("p1", idx[0][1])
	if err != nil || out.Kind != OutcomeMatch { t.Fatalf("second flip: %v %+v", err, out) }
	if out.PairsLeft != 5 { t.Fatalf("pairs left %d, want 5", out.PairsLeft) }

	// matched cards are terminal
	if _, err := b.Flip("p2", idx[0][0]); !errors.Is(err, domain.ErrInvalidMove) {
		t.Fatalf("flip on matched card: want InvalidMove, got %v", err)
	}

	// a miss puts both cards back to hidden
	out, _ = b.Flip("p1", idx[1][0])
	out, err = b.Flip("p1", idx[2][0])
	if err != nil || out.Kind != OutcomeMiss { t.Fatalf("miss: %v %+v", err, out) }
	cards := b.Cards()
	if cards[idx[1][0]].Face != Hidden || cards[idx[2][0]].Face != Hidden {
		t.Fatalf("missed cards not hidden: %+v %+v", cards[idx[1][0]], cards[idx[2][0]])
	}
}

func TestFlipRejectsRevealedAndOutOfRange(t *testing.T) {
	b, _ := Deal(domain.Easy, fixedRand(3))
	if _, err := b.Flip("p1", 0); err != nil { t.Fatalf("flip: %v", err) }
	if _, err := b.Flip("p2", 0); !errors.Is(err, domain.ErrInvalidMove) {
		t.Fatalf("flip on revealed card by another player: want InvalidMove, got %v", err)
	}
	if _, err := b.Flip("p1", 0); !errors.Is(err, domain.ErrInvalidMove) {
		t.Fatalf("re-flip own revealed card: want InvalidMove, got %v", err)
	}
	for _, i := range []int{-1, 12, 99} {
		if _, err := b.Flip("p1", i); !errors.Is(err, domain.ErrInvalidMove) {
			t.Fatalf("index %d: want InvalidMove, got %v", i, err)
		}
	}
}

func TestParticipantsHoldIndependentPendingCards(t *testing.T) {
	b, _ := Deal(domain.Easy, fixedRand(9))
	idx := pairIndex(t, b)
	// p1 and p2 each hold one half of different pairs, then complete them
	if _, err := b.Flip("p1", idx[3][0]); err != nil { t.Fatalf("p1: %v", err) }
	if _, err := b.Flip("p2", idx[4][0]); err != nil { t.Fatalf("p2: %v", err) }
	o1, _ := b.Flip("p1", idx[3][1])
	o2, _ := b.Flip("p2", idx[4][1])
	if o1.Kind != OutcomeMatch || o2.Kind != OutcomeMatch {
		t.Fatalf("expected two matches, got %s and %s", o1.Kind, o2.Kind)
	}
}

func TestForfeitHidesPendingCard(t *testing.T) {
	b, _ := Deal(domain.Easy, fixedRand(5))
	if _, err := b.Flip("p1", 4); err != nil { t.Fatalf("flip: %v", err) }
	if i, ok := b.Forfeit("p1"); !ok || i != 4 { t.Fatalf("Forfeit = %d,%v", i, ok) }
	if b.Cards()[4].Face != Hidden { t.Fatalf("card not hidden after forfeit") }
	if _, ok := b.Pending("p1"); ok { t.Fatalf("pending not cleared") }
	if _, ok := b.Forfeit("p1"); ok { t.Fatalf("second forfeit should be a no-op") }
}

func TestCompleteAfterAllPairs(t *testing.T) {
	b, _ := Deal(domain.Easy, fixedRand(11))
	var last FlipOutcome
	for _, at := range pairIndex(t, b) {
		if _, err := b.Flip("solo", at[0]); err != nil { t.Fatalf("flip: %v", err) }
		o, err := b.Flip("solo", at[1])
		if err != nil { t.Fatalf("flip: %v", err) }
		last = o
	}
	if !b.Complete() || !last.Complete || last.PairsLeft != 0 {
		t.Fatalf("board not complete: %+v", last)
	}
}

func TestViewMasksHiddenPairs(t *testing.T) {
	b, _ := Deal(domain.Easy, fixedRand(2))
	if _, err := b.Flip("p1", 0); err != nil { t.Fatalf("flip: %v", err) }
	v := b.View()
	for i, c := range v.Cards {
		if i == 0 {
			if c.PairID < 0 { t.Fatalf("revealed card masked") }
			continue
		}
		if c.PairID != -1 { t.Fatalf("hidden card %d leaks pair id %d", i, c.PairID) }
	}
}

func TestStalemateReleasesPendingCards(t *testing.T) {
	b, _ := Deal(domain.Easy, fixedRand(5))
	pairs := pairIndex(t, b)
	for pid := 1; pid < len(pairs); pid++ {
		at := pairs[pid]
		if _, err := b.Flip("a", at[0]); err != nil { t.Fatalf("flip: %v", err) }
		if _, err := b.Flip("a", at[1]); err != nil { t.Fatalf("flip: %v", err) }
	}

	last := pairs[0]
	if o, err := b.Flip("a", last[0]); err != nil || len(o.Released) != 0 { t.Fatalf("first half = %+v, %v", o, err) }
	o, err := b.Flip("b", last[1])
	if err != nil { t.Fatalf("second half: %v", err) }
	if o.Kind != OutcomeRevealed || len(o.Released) != 2 { t.Fatalf("stalemate outcome = %+v", o) }
	if _, held := b.Pending("a"); held { t.Fatal("a still holds a card") }
	if _, held := b.Pending("b"); held { t.Fatal("b still holds a card") }

	if _, err := b.Flip("b", last[0]); err != nil { t.Fatalf("reflip: %v", err) }
	done, err := b.Flip("b", last[1])
	if err != nil || done.Kind != OutcomeMatch || !done.Complete { t.Fatalf("final = %+v, %v", done, err) }
}

func TestMatchLeavingNoHiddenCardReleasesOthers(t *testing.T) {
	b, _ := Deal(domain.Easy, fixedRand(3))
	pairs := pairIndex(t, b)
	for pid := 2; pid < len(pairs); pid++ {
		if _, err := b.Flip("solo", pairs[pid][0]); err != nil { t.Fatalf("flip: %v", err) }
		if _, err := b.Flip("solo", pairs[pid][1]); err != nil { t.Fatalf("flip: %v", err) }
	}

	x, y := pairs[0], pairs[1]
	if _, err := b.Flip("a", x[0]); err != nil { t.Fatalf("a reveal: %v", err) }
	if _, err := b.Flip("b", x[1]); err != nil { t.Fatalf("b reveal: %v", err) }
	if _, err := b.Flip("c", y[0]); err != nil { t.Fatalf("c reveal: %v", err) }
	o, err := b.Flip("c", y[1])
	if err != nil { t.Fatalf("c match: %v", err) }
	if o.Kind != OutcomeMatch || o.Complete {
		t.Fatalf("c outcome = %+v", o)
	}
	want := []int{min(x[0], x[1]), max(x[0], x[1])}
	if len(o.Released) != 2 || o.Released[0] != want[0] || o.Released[1] != want[1] {
		t.Fatalf("released = %v, want %v", o.Released, want)
	}
	for _, id := range []string{"a", "b"} {
		if _, held := b.Pending(id); held { t.Fatalf("%s still holds a card", id) }
	}

	if _, err := b.Flip("a", x[0]); err != nil { t.Fatalf("a reflip: %v", err) }
	done, err := b.Flip("a", x[1])
	if err != nil || done.Kind != OutcomeMatch || !done.Complete { t.Fatalf("final = %+v, %v", done, err) }
	if len(done.Released) != 0 { t.Fatalf("completed board released %v", done.Released) }
}
