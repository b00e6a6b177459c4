package domain

import "time"

// RoomState is the lifecycle flag of a perpetual room.
type RoomState string

const (
	RoomOpen   RoomState = "open"
	RoomInGame RoomState = "in_game"
)

// Room is a reusable slot holding one game's worth of players.
type Room struct {
	ID         string     `json:"id"`
	Difficulty Difficulty `json:"difficulty"`
	Capacity   int        `json:"capacity"`
	Occupancy  int        `json:"occupancy"`
	State      RoomState  `json:"state"`
	Generation uint64     `json:"generation"`
	// Node is the process whose room actor hosts the room's sessions.
	Node string `json:"node,omitempty"`
}

// HasSeat reports whether the room can take one more joiner right now.
func (r Room) HasSeat() bool { return r.State == RoomOpen && r.Occupancy < r.Capacity }

// SessionState is the lifecycle of one game bound to a room.
type SessionState string

const (
	SessionForming SessionState = "forming"
	SessionActive  SessionState = "active"
	SessionEnded   SessionState = "ended"
)

// CanTransition enforces forming→active→ended with no reverse or skipped step.
func (s SessionState) CanTransition(to SessionState) bool {
	switch s {
	case SessionForming:
		return to == SessionActive
	case SessionActive:
		return to == SessionEnded
	default:
		return false
	}
}

// EndReason records why a session reached SessionEnded.
type EndReason string

const (
	EndCompleted EndReason = "completed"
	EndHost      EndReason = "host_ended"
	EndAbandoned EndReason = "abandoned"
)

// Identity is the opaque id/name pair supplied by the identity provider.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Participant is one player within a session together with its scoreboard.
type Participant struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	JoinedAt     time.Time `json:"joined_at"`
	Connected    bool      `json:"connected"`
	Left         bool      `json:"left,omitempty"`
	XP           int       `json:"xp"`
	PairsMatched int       `json:"pairs_matched"`
	Streak       int       `json:"streak"`
	MaxStreak    int       `json:"max_streak"`
}

// Standing is one line of the final summary.
type Standing struct {
	Rank          int       `json:"rank"`
	ParticipantID string    `json:"participant_id"`
	Name          string    `json:"name"`
	XP            int       `json:"xp"`
	PairsMatched  int       `json:"pairs_matched"`
	MaxStreak     int       `json:"max_streak"`
	JoinedAt      time.Time `json:"joined_at"`
	Left          bool      `json:"left,omitempty"`
}

// Summary is the frozen result of an ended session.
type Summary struct {
	SessionID  string     `json:"session_id"`
	RoomID     string     `json:"room_id"`
	Generation uint64     `json:"generation"`
	Difficulty Difficulty `json:"difficulty"`
	Reason     EndReason  `json:"reason"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    time.Time  `json:"ended_at"`
	Standings  []Standing `json:"standings"`
}

// TotalPairs sums pairs matched over all standings.
func (s *Summary) TotalPairs() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, st := range s.Standings {
		n += st.PairsMatched
	}
	return n
}
