package room

import (
	"time"

	"github.com/sharetube/watchparty/pkg/videoref"
)

type Participant struct {
	ID       string
	Username string
	IsHost   bool
}

// Room is a point in time copy of a live room. Participants are ordered by
// join time.
type Room struct {
	Code         string
	Ref          videoref.Ref
	HostID       string
	Participants []Participant
	CurrentTime  float64
	IsPlaying    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Others returns every participant except connID.
func (r Room) Others(connID string) []Participant {
	others := make([]Participant, 0, len(r.Participants))
	for _, p := range r.Participants {
		if p.ID != connID {
			others = append(others, p)
		}
	}

	return others
}

func (r Room) Participant(connID string) (Participant, bool) {
	for _, p := range r.Participants {
		if p.ID == connID {
			return p, true
		}
	}

	return Participant{}, false
}

type LeaveResult struct {
	// Room is nil when the leaver was the last participant and the room is gone.
	Room      *Room
	Left      Participant
	NewHostID string
}

// Summary is what other instances can learn about a room.
type Summary struct {
	Code         string    `redis:"code" json:"roomCode"`
	Platform     string    `redis:"platform" json:"platform"`
	VideoID      string    `redis:"video_id" json:"videoId"`
	Participants int       `redis:"participants" json:"participants"`
	IsPlaying    bool      `redis:"is_playing" json:"isPlaying"`
	InstanceID   string    `redis:"instance_id" json:"instanceId"`
	UpdatedAt    time.Time `redis:"-" json:"updatedAt"`
	UpdatedAtMs  int64     `redis:"updated_at" json:"-"`
}

func SummaryOf(r Room, instanceID string) Summary {
	return Summary{
		Code:         r.Code,
		Platform:     string(r.Ref.Platform),
		VideoID:      r.Ref.VideoID,
		Participants: len(r.Participants),
		IsPlaying:    r.IsPlaying,
		InstanceID:   instanceID,
		UpdatedAt:    r.UpdatedAt,
		UpdatedAtMs:  r.UpdatedAt.UnixMilli(),
	}
}
