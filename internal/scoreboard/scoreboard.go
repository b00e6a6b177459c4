package scoreboard

import (
	"sort"
	"sync"
	"time"

	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
)

// DefaultMatchXP is the experience awarded per matched pair.
const DefaultMatchXP = 10

type entry struct {
	mu sync.Mutex
	p  domain.Participant
}

// Scoreboard keeps per-participant counters for one session. Every entry has
// its own lock, so updates for different participants never contend while
// updates for the same participant are serialized.
type Scoreboard struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
	matchXP int
}

func New(matchXP int) *Scoreboard {
	if matchXP <= 0 {
		matchXP = DefaultMatchXP
	}
	return &Scoreboard{entries: make(map[string]*entry), matchXP: matchXP}
}

// Add registers a participant with zeroed counters. Re-adding keeps the
// existing counters and clears the Left mark.
func (s *Scoreboard) Add(id, name string, joinedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		e.mu.Lock()
		e.p.Left = false
		e.mu.Unlock()
		return
	}
	s.entries[id] = &entry{p: domain.Participant{ID: id, Name: name, JoinedAt: joinedAt}}
	s.order = append(s.order, id)
}

func (s *Scoreboard) lookup(id string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[id]
}

// RecordMatch adds one pair, the match award and one streak step.
func (s *Scoreboard) RecordMatch(id string) (domain.Participant, bool) {
	e := s.lookup(id)
	if e == nil {
		return domain.Participant{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.p.PairsMatched++
	e.p.XP += s.matchXP
	e.p.Streak++
	if e.p.Streak > e.p.MaxStreak {
		e.p.MaxStreak = e.p.Streak
	}
	return e.p, true
}

// RecordMiss resets the streak. Experience is never taken away.
func (s *Scoreboard) RecordMiss(id string) (domain.Participant, bool) {
	e := s.lookup(id)
	if e == nil {
		return domain.Participant{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.p.Streak = 0
	return e.p, true
}

// MarkLeft keeps the entry for the summary but flags the departure.
func (s *Scoreboard) MarkLeft(id string) {
	if e := s.lookup(id); e != nil {
		e.mu.Lock()
		e.p.Left = true
		e.mu.Unlock()
	}
}

// Remove forgets a participant that never played, e.g. one who left before
// the game started.
func (s *Scoreboard) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return
	}
	delete(s.entries, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Scoreboard) Get(id string) (domain.Participant, bool) {
	e := s.lookup(id)
	if e == nil {
		return domain.Participant{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.p, true
}

// Entries returns a copy of every entry in registration order.
func (s *Scoreboard) Entries() []domain.Participant {
	s.mu.RLock()
	ids := append([]string(nil), s.order...)
	s.mu.RUnlock()
	out := make([]domain.Participant, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.Get(id); ok {
			out = append(out, p)
		}
	}
	return out
}

// TotalPairs sums pairs matched over every entry, departed ones included.
func (s *Scoreboard) TotalPairs() int {
	n := 0
	for _, p := range s.Entries() {
		n += p.PairsMatched
	}
	return n
}

// Rank orders participants by XP, then pairs matched, then earliest join,
// then id, and assigns 1-based ranks.
func Rank(participants []domain.Participant) []domain.Standing {
	ps := append([]domain.Participant(nil), participants...)
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		if a.XP != b.XP {
			return a.XP > b.XP
		}
		if a.PairsMatched != b.PairsMatched {
			return a.PairsMatched > b.PairsMatched
		}
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.ID < b.ID
	})
	out := make([]domain.Standing, len(ps))
	for i, p := range ps {
		out[i] = domain.Standing{
			Rank:          i + 1,
			ParticipantID: p.ID,
			Name:          p.Name,
			XP:            p.XP,
			PairsMatched:  p.PairsMatched,
			MaxStreak:     p.MaxStreak,
			JoinedAt:      p.JoinedAt,
			Left:          p.Left,
		}
	}
	return out
}
