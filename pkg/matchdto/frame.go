package matchdto

import "encoding/json"

// Frame types pushed by the server.
const (
	FrameResponse = "response"
	FrameEvent    = "event"
	FrameResync   = "resync"
	FrameHello    = "hello"
)

// Envelope is decoded first to learn the frame type.
type Envelope struct {
	Type string `json:"type"`
}

// Hello is sent once after the socket is accepted.
type Hello struct {
	Type        string `json:"type"`
	Participant string `json:"participant_id"`
	Name        string `json:"name"`
	Node        string `json:"node,omitempty"`
}

// EventFrame carries one room event. Event keeps the server's encoding so
// clients can decode only the payloads they care about.
type EventFrame struct {
	Type   string          `json:"type"`
	Event  json.RawMessage `json:"event"`
	Notice string          `json:"notice,omitempty"`
}

// ResyncFrame replaces the client's view after missed events.
type ResyncFrame struct {
	Type     string          `json:"type"`
	Reason   string          `json:"reason"`
	Snapshot json.RawMessage `json:"snapshot"`
}

// EventHeader is the subset of an event every client needs for ordering.
type EventHeader struct {
	Seq        uint64          `json:"seq"`
	RoomID     string          `json:"room_id"`
	Generation uint64          `json:"generation"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}
