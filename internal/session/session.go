package session

import (
	"time"

	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/board"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/scoreboard"
)

// Info is the externally visible state of a session.
type Info struct {
	ID         string              `json:"id"`
	RoomID     string              `json:"room_id"`
	Generation uint64              `json:"generation"`
	Difficulty domain.Difficulty   `json:"difficulty"`
	State      domain.SessionState `json:"state"`
	HostID     string              `json:"host_id"`
	Occupants  int                 `json:"occupants"`
	CreatedAt  time.Time           `json:"created_at"`
	StartedAt  time.Time           `json:"started_at,omitzero"`
	EndedAt    time.Time           `json:"ended_at,omitzero"`
	Summary    *domain.Summary     `json:"summary,omitempty"`
}

// JoinResult is returned by JoinGame and JoinRoom.
type JoinResult struct {
	Room        domain.Room        `json:"room"`
	Session     Info               `json:"session"`
	Participant domain.Participant `json:"participant"`
	IsHost      bool               `json:"is_host"`
	Reconnected bool               `json:"reconnected,omitempty"`

	extraSeat bool
}

// Snapshot is the full state a client needs to rebuild its view.
type Snapshot struct {
	Room         domain.Room          `json:"room"`
	Session      Info                 `json:"session"`
	Participants []domain.Participant `json:"participants"`
	Board        *board.View          `json:"board,omitempty"`
	LastSeq      uint64               `json:"last_seq"`
}

type member struct {
	id        string
	name      string
	joinedAt  time.Time
	connected bool
	left      bool
}

// session is owned by exactly one room actor and never shared.
type session struct {
	id         string
	roomID     string
	generation uint64
	difficulty domain.Difficulty
	capacity   int
	state      domain.SessionState
	hostID     string
	members    []*member // join order, departed members included
	board      *board.Board
	scores     *scoreboard.Scoreboard
	createdAt  time.Time
	startedAt  time.Time
	endedAt    time.Time
	summary    *domain.Summary
	discarded  bool
}

func (s *session) member(id string) *member {
	for _, m := range s.members {
		if m.id == id {
			return m
		}
	}
	return nil
}

// present returns the members still on the roster.
func (s *session) present() []*member {
	out := make([]*member, 0, len(s.members))
	for _, m := range s.members {
		if !m.left {
			out = append(out, m)
		}
	}
	return out
}

func (s *session) anyConnected() bool {
	for _, m := range s.members {
		if !m.left && m.connected {
			return true
		}
	}
	return false
}

// electHost picks the earliest-joined connected member other than skip,
// falling back to the earliest-joined member still present.
func (s *session) electHost(skip string) string {
	var fallback string
	for _, m := range s.members {
		if m.left || m.id == skip {
			continue
		}
		if m.connected {
			return m.id
		}
		if fallback == "" {
			fallback = m.id
		}
	}
	return fallback
}

func (s *session) participant(m *member) domain.Participant {
	p, ok := s.scores.Get(m.id)
	if !ok {
		p = domain.Participant{ID: m.id, Name: m.name, JoinedAt: m.joinedAt}
	}
	p.Connected = m.connected
	p.Left = m.left
	return p
}

func (s *session) roster() []domain.Participant {
	present := s.present()
	out := make([]domain.Participant, 0, len(present))
	for _, m := range present {
		out = append(out, s.participant(m))
	}
	return out
}

func (s *session) info() Info {
	return Info{
		ID:         s.id,
		RoomID:     s.roomID,
		Generation: s.generation,
		Difficulty: s.difficulty,
		State:      s.state,
		HostID:     s.hostID,
		Occupants:  len(s.present()),
		CreatedAt:  s.createdAt,
		StartedAt:  s.startedAt,
		EndedAt:    s.endedAt,
		Summary:    s.summary,
	}
}

// room is the actor's view of the room this session occupies.
func (s *session) room() domain.Room {
	state := domain.RoomOpen
	if s.state == domain.SessionActive {
		state = domain.RoomInGame
	}
	return domain.Room{
		ID:         s.roomID,
		Difficulty: s.difficulty,
		Capacity:   s.capacity,
		Occupancy:  len(s.present()),
		State:      state,
		Generation: s.generation,
	}
}

func (s *session) snapshot(lastSeq uint64) Snapshot {
	snap := Snapshot{
		Room:         s.room(),
		Session:      s.info(),
		Participants: s.roster(),
		LastSeq:      lastSeq,
	}
	if s.state == domain.SessionEnded {
		snap.Room.Occupancy = 0
		snap.Room.State = domain.RoomOpen
	}
	if s.board != nil {
		v := s.board.View()
		snap.Board = &v
	}
	return snap
}
