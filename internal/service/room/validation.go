package room

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var UsernameRule = []validation.Rule{
	validation.Required,
	validation.RuneLength(1, 32),
}

var VideoURLRule = []validation.Rule{
	validation.Required,
	validation.Length(1, 2048),
}

var RoomCodeRule = []validation.Rule{
	validation.Required,
	validation.Match(regexp.MustCompile("^[a-zA-Z0-9]{6}$")),
}

var ConnIDRule = []validation.Rule{
	validation.Required,
}

func (p CreateRoomParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ConnID, ConnIDRule...),
		validation.Field(&p.VideoURL, VideoURLRule...),
		validation.Field(&p.Username, UsernameRule...),
	)
}

func (p JoinRoomParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ConnID, ConnIDRule...),
		validation.Field(&p.RoomCode, RoomCodeRule...),
		validation.Field(&p.Username, UsernameRule...),
	)
}
