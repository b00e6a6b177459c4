package matchdto

import "encoding/json"

// Client operations accepted on the socket.
const (
	OpJoin         = "join"
	OpJoinRoom     = "join_room"
	OpStart        = "start"
	OpFlip         = "flip"
	OpLeave        = "leave"
	OpEnd          = "end"
	OpParticipants = "participants"
	OpSnapshot     = "snapshot"
	OpRooms        = "rooms"
	OpHistory      = "history"
)

// Command is one client request. Fields not used by Op are ignored.
type Command struct {
	ID         string `json:"id"`
	Op         string `json:"op"`
	Difficulty string `json:"difficulty,omitempty"`
	RoomID     string `json:"room_id,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	Index      *int   `json:"index,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// Response answers the Command with the same ID. Exactly one of Data and
// Error is set.
type Response struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	Op    string          `json:"op"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *ErrorBody      `json:"error,omitempty"`
}

type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Notice    string `json:"notice,omitempty"`
}

func (e *ErrorBody) Error() string {
	if e.Message != "" {
		return e.Code + ": " + e.Message
	}
	return e.Code
}
