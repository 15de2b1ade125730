// Package videoref turns user supplied video links into a platform and a
// backend specific resource id.
package videoref

import (
	"errors"
	"regexp"
	"strings"
)

type Platform string

const (
	PlatformYouTube Platform = "youtube"
	PlatformTwitch  Platform = "twitch"
)

const (
	TwitchVideoPrefix   = "video:"
	TwitchChannelPrefix = "channel:"
)

var ErrInvalidReference = errors.New("invalid video reference")

var (
	youtubeURLRe     = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/|youtube\.com/live/)([a-zA-Z0-9_-]{11})`)
	youtubeBareRe    = regexp.MustCompile(`^([a-zA-Z0-9_-]{11})$`)
	twitchVideoRe    = regexp.MustCompile(`(?i)twitch\.tv/videos/(\d+)`)
	twitchChannelRe  = regexp.MustCompile(`(?i)twitch\.tv/([a-zA-Z0-9_]+)`)
	twitchBareNameRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

// Ref identifies a playable resource.
type Ref struct {
	Platform Platform `json:"platform"`
	VideoID  string   `json:"videoId"`
}

// IsTwitchVideo reports whether the ref points to a recorded twitch video.
func (r Ref) IsTwitchVideo() bool {
	return r.Platform == PlatformTwitch && strings.HasPrefix(r.VideoID, TwitchVideoPrefix)
}

// IsTwitchChannel reports whether the ref points to a live twitch channel.
func (r Ref) IsTwitchChannel() bool {
	return r.Platform == PlatformTwitch && !r.IsTwitchVideo()
}

// ResourceID strips the twitch kind prefix.
func (r Ref) ResourceID() string {
	if r.Platform != PlatformTwitch {
		return r.VideoID
	}
	if id, ok := strings.CutPrefix(r.VideoID, TwitchVideoPrefix); ok {
		return id
	}
	id, _ := strings.CutPrefix(r.VideoID, TwitchChannelPrefix)
	return id
}

func (r Ref) String() string {
	return string(r.Platform) + "/" + r.VideoID
}

// Parse accepts youtube watch, short, embed and live links, a bare youtube id,
// twitch video and channel links, or a bare twitch channel name.
func Parse(raw string) (Ref, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Ref{}, ErrInvalidReference
	}

	if m := youtubeURLRe.FindStringSubmatch(s); m != nil {
		return Ref{Platform: PlatformYouTube, VideoID: m[1]}, nil
	}
	if m := youtubeBareRe.FindStringSubmatch(s); m != nil {
		return Ref{Platform: PlatformYouTube, VideoID: m[1]}, nil
	}

	if m := twitchVideoRe.FindStringSubmatch(s); m != nil {
		return Ref{Platform: PlatformTwitch, VideoID: TwitchVideoPrefix + m[1]}, nil
	}
	if m := twitchChannelRe.FindStringSubmatch(s); m != nil {
		return Ref{Platform: PlatformTwitch, VideoID: TwitchChannelPrefix + strings.ToLower(m[1])}, nil
	}
	if twitchBareNameRe.MatchString(s) {
		return Ref{Platform: PlatformTwitch, VideoID: TwitchChannelPrefix + strings.ToLower(s)}, nil
	}

	return Ref{}, ErrInvalidReference
}

// FromWire rebuilds a Ref from the platform and video id the server sends.
func FromWire(platform, videoID string) (Ref, error) {
	switch Platform(platform) {
	case PlatformYouTube:
		if !youtubeBareRe.MatchString(videoID) {
			return Ref{}, ErrInvalidReference
		}
	case PlatformTwitch:
		if !strings.HasPrefix(videoID, TwitchVideoPrefix) && !strings.HasPrefix(videoID, TwitchChannelPrefix) {
			videoID = TwitchChannelPrefix + strings.ToLower(videoID)
		}
	default:
		return Ref{}, ErrInvalidReference
	}

	return Ref{Platform: Platform(platform), VideoID: videoID}, nil
}
