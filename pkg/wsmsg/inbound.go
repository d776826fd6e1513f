package wsmsg

import "encoding/json"

// Inbound message types accepted over the game socket.
const (
	TypeMatchmaking      = "matchmaking"
	TypeLeaveMatchmaking = "leaveMatchmaking"
	TypeCreate           = "create"
	TypeJoin             = "join"
	TypeSyncBoard        = "syncBoard"
	TypeChat             = "chat"
	TypeCheckmate        = "checkmate"
	TypeRematchRequest   = "rematchRequest"
	TypeRematchAccept    = "rematchAccept"
	TypeRematchDecline   = "rematchDecline"
)

// Inbound is the type-tagged envelope for every client message.
// Fields not used by a given type are simply left zero.
type Inbound struct {
	Type        string          `json:"type"`
	RoomID      string          `json:"roomId,omitempty"`
	Board       json.RawMessage `json:"board,omitempty"`
	CurrentTurn Team            `json:"currentTurn,omitempty"`
	Turns       int             `json:"turns,omitempty"`
	Text        string          `json:"text,omitempty"`
	Winner      string          `json:"winner,omitempty"`
}
