package playback

import "github.com/sharetube/watchparty/pkg/videoref"

// Profile is the playback style of a backend. It is chosen once per loaded
// reference.
type Profile int

const (
	ProfileNone Profile = iota
	ProfileOnDemand
	ProfileRecordedSegment
	ProfileLive
)

func (p Profile) String() string {
	switch p {
	case ProfileOnDemand:
		return "on-demand"
	case ProfileRecordedSegment:
		return "recorded-segment"
	case ProfileLive:
		return "live"
	default:
		return "none"
	}
}

type Capabilities struct {
	SupportsSeek         bool
	SupportsVariableRate bool
	UsesManualClock      bool
}

func (p Profile) Capabilities() Capabilities {
	switch p {
	case ProfileOnDemand:
		return Capabilities{SupportsSeek: true, SupportsVariableRate: true}
	case ProfileRecordedSegment:
		return Capabilities{SupportsSeek: true}
	case ProfileLive:
		return Capabilities{UsesManualClock: true}
	default:
		return Capabilities{}
	}
}

func ProfileFor(ref videoref.Ref) Profile {
	switch {
	case ref.Platform == videoref.PlatformYouTube:
		return ProfileOnDemand
	case ref.IsTwitchVideo():
		return ProfileRecordedSegment
	case ref.Platform == videoref.PlatformTwitch:
		return ProfileLive
	default:
		return ProfileNone
	}
}
