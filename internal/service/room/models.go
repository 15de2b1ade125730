package room

import (
	"github.com/sharetube/watchparty/internal/repository/room"
	"github.com/sharetube/watchparty/pkg/wsconn"
)

type Participant struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsHost   bool   `json:"isHost"`
}

type Room struct {
	Code         string        `json:"roomCode"`
	Platform     string        `json:"platform"`
	VideoID      string        `json:"videoId"`
	HostID       string        `json:"-"`
	Participants []Participant `json:"participants"`
	CurrentTime  float64       `json:"currentTime"`
	IsPlaying    bool          `json:"isPlaying"`
}

func participantsOf(ps []room.Participant) []Participant {
	result := make([]Participant, 0, len(ps))
	for _, p := range ps {
		result = append(result, Participant{
			ID:       p.ID,
			Username: p.Username,
			IsHost:   p.IsHost,
		})
	}

	return result
}

func roomOf(r room.Room) Room {
	return Room{
		Code:         r.Code,
		Platform:     string(r.Ref.Platform),
		VideoID:      r.Ref.VideoID,
		HostID:       r.HostID,
		Participants: participantsOf(r.Participants),
		CurrentTime:  r.CurrentTime,
		IsPlaying:    r.IsPlaying,
	}
}

func connIDs(ps []room.Participant) []string {
	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
	}

	return ids
}

type CreateRoomParams struct {
	ConnID   string
	VideoURL string
	Username string
}

type CreateRoomResponse struct {
	Room Room
	// Left is set when the connection had to leave another room first.
	Left *LeaveRoomResponse
}

type JoinRoomParams struct {
	ConnID   string
	RoomCode string
	Username string
}

type JoinRoomResponse struct {
	Room     Room
	IsHost   bool
	Username string
	// Conns are the other members to notify.
	Conns []*wsconn.Conn
	Left  *LeaveRoomResponse
}

type LeaveRoomParams struct {
	ConnID string
}

type LeaveRoomResponse struct {
	RoomCode      string
	Username      string
	Participants  []Participant
	Conns         []*wsconn.Conn
	NewHostConn   *wsconn.Conn
	IsRoomDeleted bool
}

type SyncTimeParams struct {
	SenderID    string
	RoomCode    string
	CurrentTime float64
	Seq         uint64
}

type SyncTimeResponse struct {
	CurrentTime float64
	Seq         uint64
	Conns       []*wsconn.Conn
}

type UpdatePlayStateParams struct {
	SenderID  string
	RoomCode  string
	IsPlaying bool
}

type UpdatePlayStateResponse struct {
	Conns []*wsconn.Conn
}

type Stats struct {
	Rooms        int
	Participants int
	Connections  int
}
