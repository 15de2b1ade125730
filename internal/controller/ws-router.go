package controller

import (
	"github.com/sharetube/watchparty/internal/protocol"
	"github.com/sharetube/watchparty/pkg/wsrouter"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(c.wsRequestIdWSMw(), c.loggerWSMw(), c.validateWSMw())
	mux.OnError(c.handleWSError)

	// membership
	wsrouter.Handle(mux, protocol.EventCreateRoom, c.handleCreateRoom)
	wsrouter.Handle(mux, protocol.EventJoinRoom, c.handleJoinRoom)
	wsrouter.Handle(mux, protocol.EventLeaveRoom, c.handleLeaveRoom)

	// host only
	wsrouter.Handle(mux, protocol.EventSyncTime, c.handleSyncTime)
	wsrouter.Handle(mux, protocol.EventPlay, c.handlePlay)
	wsrouter.Handle(mux, protocol.EventPause, c.handlePause)

	return mux
}
