package wsmsg

import "testing"

func TestOpposite(t *testing.T) {
	if TeamWhite.Opposite() != TeamBlack || TeamBlack.Opposite() != TeamWhite {
		t.Fatalf("opposite mapping broken")
	}
	if TeamDraw.Opposite() != TeamDraw {
		t.Fatalf("draw must have no opposite")
	}
}

func TestNormalizeWinner(t *testing.T) {
	cases := []struct {
		in   string
		want Team
	}{
		{"WHITE", TeamWhite},
		{"BLACK", TeamBlack},
		{"DRAW", TeamDraw},
		{"white", TeamWhite},
		{" black ", TeamBlack},
		{"STALEMATE", TeamDraw},
		{"", TeamDraw},
		{"garbage", TeamDraw},
	}
	for _, tc := range cases {
		if got := NormalizeWinner(tc.in); got != tc.want {
			t.Fatalf("NormalizeWinner(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
