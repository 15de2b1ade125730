// Package protocol holds the event names and payload shapes exchanged over the
// room websocket.
package protocol

import "encoding/json"

// Client to server.
const (
	EventCreateRoom = "create-room"
	EventJoinRoom   = "join-room"
	EventLeaveRoom  = "leave-room"
	EventSyncTime   = "sync-time"
	EventPlay       = "play"
	EventPause      = "pause"
)

// Server to client.
const (
	EventRoomCreated = "room-created"
	EventRoomJoined  = "room-joined"
	EventUserJoined  = "user-joined"
	EventUserLeft    = "user-left"
	EventBecameHost  = "became-host"
	EventError       = "error"
	EventSyncUpdate  = "sync-update"
	EventPlayVideo   = "play-video"
	EventPauseVideo  = "pause-video"
)

// Output is the envelope written to a connection.
type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Input is the envelope as read back by a client.
type Input struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type Participant struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsHost   bool   `json:"isHost"`
}

type Empty struct{}

type CreateRoomPayload struct {
	VideoURL string `json:"videoUrl" validate:"required,max=2048"`
	Username string `json:"username" validate:"required,max=32"`
}

type JoinRoomPayload struct {
	RoomCode string `json:"roomCode" validate:"required,len=6,alphanum"`
	Username string `json:"username" validate:"required,max=32"`
}

type SyncTimePayload struct {
	RoomCode    string  `json:"roomCode" validate:"required"`
	CurrentTime float64 `json:"currentTime" validate:"gte=0"`
	Seq         uint64  `json:"seq,omitempty"`
}

type PlayPausePayload struct {
	RoomCode string `json:"roomCode" validate:"required"`
}

type RoomCreatedPayload struct {
	RoomCode string `json:"roomCode"`
	VideoID  string `json:"videoId"`
	Platform string `json:"platform"`
}

type RoomJoinedPayload struct {
	RoomCode     string        `json:"roomCode"`
	VideoID      string        `json:"videoId"`
	Platform     string        `json:"platform"`
	Participants []Participant `json:"participants"`
	IsHost       bool          `json:"isHost"`
	CurrentTime  float64       `json:"currentTime"`
	IsPlaying    bool          `json:"isPlaying"`
}

type MembershipPayload struct {
	Username     string        `json:"username"`
	Participants []Participant `json:"participants"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type SyncUpdatePayload struct {
	CurrentTime float64 `json:"currentTime"`
	Seq         uint64  `json:"seq,omitempty"`
}
