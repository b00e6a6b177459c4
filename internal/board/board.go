package board

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
)

// Face is the visible state of a card.
type Face string

const (
	Hidden   Face = "hidden"
	Revealed Face = "revealed"
	Matched  Face = "matched"
)

// Card is one slot of the deck. Exactly two cards share a PairID.
type Card struct {
	PairID int  `json:"pair_id"`
	Face   Face `json:"face"`
}

// OutcomeKind classifies an accepted flip.
type OutcomeKind string

const (
	OutcomeRevealed OutcomeKind = "revealed"
	OutcomeMatch    OutcomeKind = "match"
	OutcomeMiss     OutcomeKind = "miss"
)

// FlipOutcome is the authoritative result of one flip.
type FlipOutcome struct {
	Kind          OutcomeKind `json:"kind"`
	ParticipantID string      `json:"participant_id"`
	Index         int         `json:"index"`
	PairID        int         `json:"pair_id"`
	// Indices holds both cards of the attempt on match or miss.
	Indices   [2]int `json:"indices"`
	PairsLeft int    `json:"pairs_left"`
	Complete  bool   `json:"complete"`
	// Released lists cards turned back because no hidden card was left.
	Released []int `json:"released,omitempty"`
}

// Board is the dealt deck of one session. It is not safe for concurrent use;
// the owning room actor serializes access.
type Board struct {
	difficulty domain.Difficulty
	cards      []Card
	pending    map[string]int // participant → index of their revealed card
	matched    int
}

// NewRand returns a generator seeded from the clock. Tests pass a fixed PCG.
func NewRand() *rand.Rand {
	now := uint64(time.Now().UnixNano())
	return rand.New(rand.NewPCG(now, now>>17|1))
}

// Deal builds cardCount/2 pair ids, duplicates each and shuffles the deck
// with Fisher–Yates.
func Deal(d domain.Difficulty, rng *rand.Rand) (*Board, error) {
	n := d.CardCount()
	if n == 0 {
		return nil, fmt.Errorf("deal: unknown difficulty %q", d)
	}
	if rng == nil {
		rng = NewRand()
	}
	cards := make([]Card, 0, n)
	for pair := 0; pair < n/2; pair++ {
		cards = append(cards, Card{PairID: pair, Face: Hidden}, Card{PairID: pair, Face: Hidden})
	}
	for i := len(cards) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
	return &Board{difficulty: d, cards: cards, pending: make(map[string]int)}, nil
}

func (b *Board) Len() int { return len(b.cards) }

// PairsLeft is the number of pairs not yet matched.
func (b *Board) PairsLeft() int { return len(b.cards)/2 - b.matched }

// Complete reports whether every card is matched.
func (b *Board) Complete() bool { return b.matched*2 == len(b.cards) }

// Pending returns the index of the participant's revealed card, if any.
func (b *Board) Pending(participantID string) (int, bool) {
	i, ok := b.pending[participantID]
	return i, ok
}

// Flip reveals cardIndex for participantID. Any participant may flip at any
// time, but each holds at most one revealed card: the next flip resolves it
// as a match or a miss.
func (b *Board) Flip(participantID string, cardIndex int) (FlipOutcome, error) {
	if cardIndex < 0 || cardIndex >= len(b.cards) {
		return FlipOutcome{}, domain.Errorf(domain.CodeInvalidMove, "card %d out of range", cardIndex)
	}
	c := &b.cards[cardIndex]
	switch c.Face {
	case Matched:
		return FlipOutcome{}, domain.Errorf(domain.CodeInvalidMove, "card %d already matched", cardIndex)
	case Revealed:
		return FlipOutcome{}, domain.Errorf(domain.CodeInvalidMove, "card %d already revealed", cardIndex)
	}

	out := FlipOutcome{ParticipantID: participantID, Index: cardIndex, PairID: c.PairID}
	first, holding := b.pending[participantID]
	if !holding {
		c.Face = Revealed
		b.pending[participantID] = cardIndex
		out.Kind = OutcomeRevealed
		out.Indices = [2]int{cardIndex, -1}
		out.PairsLeft = b.PairsLeft()
		if !b.anyHidden() {
			out.Released = b.releaseAll()
		}
		return out, nil
	}

	delete(b.pending, participantID)
	prev := &b.cards[first]
	out.Indices = [2]int{first, cardIndex}
	if prev.PairID == c.PairID {
		prev.Face, c.Face = Matched, Matched
		b.matched++
		out.Kind = OutcomeMatch
	} else {
		// no settle timer here; clients animate the flip-back themselves
		prev.Face, c.Face = Hidden, Hidden
		out.Kind = OutcomeMiss
	}
	out.PairsLeft = b.PairsLeft()
	out.Complete = b.Complete()
	if !out.Complete && !b.anyHidden() {
		out.Released = b.releaseAll()
	}
	return out, nil
}

func (b *Board) anyHidden() bool {
	for _, c := range b.cards {
		if c.Face == Hidden {
			return true
		}
	}
	return false
}

// releaseAll turns every pending card back and clears its holder.
func (b *Board) releaseAll() []int {
	out := make([]int, 0, len(b.pending))
	for id, i := range b.pending {
		b.cards[i].Face = Hidden
		out = append(out, i)
		delete(b.pending, id)
	}
	slices.Sort(out)
	return out
}

// Forfeit hides the participant's pending card, if any. Used on leave.
func (b *Board) Forfeit(participantID string) (int, bool) {
	i, ok := b.pending[participantID]
	if !ok {
		return -1, false
	}
	delete(b.pending, participantID)
	if b.cards[i].Face == Revealed {
		b.cards[i].Face = Hidden
	}
	return i, true
}

// View is the client-facing board. Pair ids of hidden cards are masked to -1.
type View struct {
	Difficulty domain.Difficulty `json:"difficulty"`
	Cards      []Card            `json:"cards"`
	PairsLeft  int               `json:"pairs_left"`
}

func (b *Board) View() View {
	cards := make([]Card, len(b.cards))
	for i, c := range b.cards {
		if c.Face == Hidden {
			c.PairID = -1
		}
		cards[i] = c
	}
	return View{Difficulty: b.difficulty, Cards: cards, PairsLeft: b.PairsLeft()}
}

// Cards returns an unmasked copy of the deck.
func (b *Board) Cards() []Card { return append([]Card(nil), b.cards...) }
