package engine

import "math"

// PieceValues is the single weight table shared by evaluation and move
// ordering, in pawn units. The king is never traded.
var PieceValues = [...]float64{
	NoKind: 0,
	Pawn:   1,
	Knight: 3,
	Bishop: 3.1,
	Rook:   5,
	Queen:  9,
	King:   0,
}

// Infinity marks a forced win for the side to move; -Infinity a forced loss.
var Infinity = math.Inf(1)

func Value(k PieceKind) float64 {
	if k < NoKind || int(k) >= len(PieceValues) {
		return 0
	}
	return PieceValues[k]
}
