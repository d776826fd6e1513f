package wsmsg

import "encoding/json"

// Outbound shapes mirror the client protocol: every payload carries a
// literal "type" field set by its constructor.

type Connected struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

func NewConnected(sessionID string) Connected {
	return Connected{Type: "connected", SessionID: sessionID}
}

type RoomCreated struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

func NewRoomCreated(roomID string) RoomCreated {
	return RoomCreated{Type: "roomCreated", RoomID: roomID}
}

type EnterMatchmaking struct {
	Type     string `json:"type"`
	GameOver bool   `json:"gameOver"`
}

func NewEnterMatchmaking() EnterMatchmaking {
	return EnterMatchmaking{Type: "enterMatchmaking"}
}

type GameStart struct {
	Type              string `json:"type"`
	YourTeam          Team   `json:"yourTeam"`
	OpponentConnected bool   `json:"opponentConnected"`
	RoomID            string `json:"roomId"`
}

func NewGameStart(team Team, opponentConnected bool, roomID string) GameStart {
	return GameStart{Type: "gameStart", YourTeam: team, OpponentConnected: opponentConnected, RoomID: roomID}
}

type SyncBoard struct {
	Type        string          `json:"type"`
	Board       json.RawMessage `json:"board"`
	CurrentTurn Team            `json:"currentTurn"`
	Turns       int             `json:"turns"`
	FromPlayer  string          `json:"fromPlayer"`
}

func NewSyncBoard(board json.RawMessage, currentTurn Team, turns int, fromPlayer string) SyncBoard {
	return SyncBoard{Type: "syncBoard", Board: board, CurrentTurn: currentTurn, Turns: turns, FromPlayer: fromPlayer}
}

type ChatMessage struct {
	Type      string `json:"type"`
	From      string `json:"from"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

func NewChatMessage(from, text string, timestamp int64) ChatMessage {
	return ChatMessage{Type: "chatMessage", From: from, Text: text, Timestamp: timestamp}
}

type GameOver struct {
	Type    string `json:"type"`
	Winner  Team   `json:"winner"`
	Message string `json:"message"`
}

func NewGameOver(winner Team, message string) GameOver {
	return GameOver{Type: "gameOver", Winner: winner, Message: message}
}

type Notice struct {
	Type string `json:"type"`
}

func NewOpponentDisconnected() Notice { return Notice{Type: "opponentDisconnected"} }
func NewOpponentReconnected() Notice  { return Notice{Type: "opponentReconnected"} }
func NewRematchOffer() Notice         { return Notice{Type: "rematchOffer"} }
func NewRematchPending() Notice       { return Notice{Type: "rematchPending"} }
func NewRematchDeclined() Notice      { return Notice{Type: "rematchDeclined"} }

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(message string) Error {
	return Error{Type: "error", Message: message}
}
