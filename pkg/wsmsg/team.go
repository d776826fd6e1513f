package wsmsg

import "strings"

// Team identifies a chess side on the wire.
type Team string

const (
	TeamWhite Team = "WHITE"
	TeamBlack Team = "BLACK"
	TeamDraw  Team = "DRAW"
)

// Opposite returns the other playing side. Draw maps to itself.
func (t Team) Opposite() Team {
	switch t {
	case TeamWhite:
		return TeamBlack
	case TeamBlack:
		return TeamWhite
	}
	return t
}

// NormalizeWinner collapses any client-reported outcome into WHITE, BLACK or DRAW.
// Unrecognized values (stalemate, resign strings, garbage) are treated as DRAW.
func NormalizeWinner(s string) Team {
	switch Team(strings.ToUpper(strings.TrimSpace(s))) {
	case TeamWhite:
		return TeamWhite
	case TeamBlack:
		return TeamBlack
	}
	return TeamDraw
}
