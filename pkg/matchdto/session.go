package matchdto

// The types below mirror the server's reply data for clients that do not
// link the engine. Unknown fields are ignored on decode.

type Room struct {
	ID         string `json:"id"`
	Difficulty string `json:"difficulty"`
	Capacity   int    `json:"capacity"`
	Occupancy  int    `json:"occupancy"`
	State      string `json:"state"`
	Generation uint64 `json:"generation"`
	Node       string `json:"node,omitempty"`
}

type Session struct {
	ID         string `json:"id"`
	RoomID     string `json:"room_id"`
	Generation uint64 `json:"generation"`
	Difficulty string `json:"difficulty"`
	State      string `json:"state"`
	HostID     string `json:"host_id"`
	Occupants  int    `json:"occupants"`
}

type Participant struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Connected    bool   `json:"connected"`
	Left         bool   `json:"left,omitempty"`
	XP           int    `json:"xp"`
	PairsMatched int    `json:"pairs_matched"`
	MaxStreak    int    `json:"max_streak"`
}

// JoinData is the data of a join or join_room reply.
type JoinData struct {
	Room        Room        `json:"room"`
	Session     Session     `json:"session"`
	Participant Participant `json:"participant"`
	IsHost      bool        `json:"is_host"`
	Reconnected bool        `json:"reconnected,omitempty"`
}

// FlipData is the data of a flip reply.
type FlipData struct {
	Kind      string `json:"kind"`
	Index     int    `json:"index"`
	PairID    int    `json:"pair_id"`
	Indices   [2]int `json:"indices"`
	PairsLeft int    `json:"pairs_left"`
	Complete  bool   `json:"complete"`
	Released  []int  `json:"released,omitempty"`
}

// Card faces; a hidden card reports PairID -1.
type Card struct {
	PairID int    `json:"pair_id"`
	Face   string `json:"face"`
}

type Board struct {
	Difficulty string `json:"difficulty"`
	Cards      []Card `json:"cards"`
	PairsLeft  int    `json:"pairs_left"`
}

type Snapshot struct {
	Room         Room          `json:"room"`
	Session      Session       `json:"session"`
	Participants []Participant `json:"participants"`
	Board        *Board        `json:"board,omitempty"`
	LastSeq      uint64        `json:"last_seq"`
}
