package room

type CreateRoomParams struct {
	VideoURL string
	HostID   string
	Username string
}

type JoinRoomParams struct {
	Code     string
	ConnID   string
	Username string
}
