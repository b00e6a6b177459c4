package domain

import "time"

// EventKind names a room-scoped event.
type EventKind string

const (
	EventPlayerJoined EventKind = "player_joined"
	EventPlayerLeft   EventKind = "player_left"
	EventGameStarted  EventKind = "game_started"
	EventCardFlipped  EventKind = "card_flipped"
	EventMatchFound   EventKind = "match_found"
	EventGameEnded    EventKind = "game_ended"
	EventStateResync  EventKind = "state_resync"
)

// Event is one message on a room's channel. Seq is strictly increasing per
// room; Generation identifies the room incarnation that produced it.
type Event struct {
	Seq        uint64    `json:"seq"`
	RoomID     string    `json:"room_id"`
	Generation uint64    `json:"generation"`
	Kind       EventKind `json:"kind"`
	At         time.Time `json:"at"`
	Origin     string    `json:"origin,omitempty"`
	Payload    any       `json:"payload,omitempty"`
}

// PlayerPayload accompanies player_joined and player_left.
type PlayerPayload struct {
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
	HostID        string `json:"host_id"`
	Occupants     int    `json:"occupants"`
	Reason        string `json:"reason,omitempty"`
	// Hidden lists a departed participant's pending card turned face down.
	Hidden []int `json:"hidden,omitempty"`
}

// GameStartedPayload accompanies game_started.
type GameStartedPayload struct {
	SessionID    string        `json:"session_id"`
	HostID       string        `json:"host_id"`
	Difficulty   Difficulty    `json:"difficulty"`
	CardCount    int           `json:"card_count"`
	Participants []Participant `json:"participants"`
}

// CardFlippedPayload accompanies card_flipped.
type CardFlippedPayload struct {
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
	Index         int    `json:"index"`
	PairID        int    `json:"pair_id"`
	Result        string `json:"result"`
	Hidden        []int  `json:"hidden,omitempty"`
}

// MatchFoundPayload accompanies match_found.
type MatchFoundPayload struct {
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
	PairID        int    `json:"pair_id"`
	Indices       [2]int `json:"indices"`
	XP            int    `json:"xp"`
	Streak        int    `json:"streak"`
	PairsLeft     int    `json:"pairs_left"`
}

// GameEndedPayload accompanies game_ended.
type GameEndedPayload struct {
	Summary *Summary `json:"summary"`
}

// ResyncPayload accompanies state_resync.
type ResyncPayload struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}
