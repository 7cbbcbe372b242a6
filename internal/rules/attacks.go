package rules

import "github.com/park285/Cheese-chess-agent/internal/engine"

type offset struct{ df, dr int }

var (
	knightJumps = []offset{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingSteps   = []offset{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	straight    = []offset{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	diagonal    = []offset{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

// AttackersOf returns the squares holding pieces of side by that attack sq
// on the current board, regardless of pins.
func (b *Board) AttackersOf(sq engine.Square, by engine.Side) engine.SquareSet {
	var set engine.SquareSet
	if !sq.Valid() {
		return set
	}
	file, rank := sq.File(), sq.Rank()

	is := func(s engine.Square, kinds ...engine.PieceKind) bool {
		p, ok := b.PieceAt(s)
		if !ok || p.Side != by {
			return false
		}
		for _, k := range kinds {
			if p.Kind == k {
				return true
			}
		}
		return false
	}

	// A white pawn attacks upwards, so it stands one rank below.
	pawnRank := rank - 1
	if by == engine.Black {
		pawnRank = rank + 1
	}
	for _, df := range []int{-1, 1} {
		if s := engine.NewSquare(file+df, pawnRank); s.Valid() && is(s, engine.Pawn) {
			set = set.With(s)
		}
	}
	for _, o := range knightJumps {
		if s := engine.NewSquare(file+o.df, rank+o.dr); s.Valid() && is(s, engine.Knight) {
			set = set.With(s)
		}
	}
	for _, o := range kingSteps {
		if s := engine.NewSquare(file+o.df, rank+o.dr); s.Valid() && is(s, engine.King) {
			set = set.With(s)
		}
	}
	for _, o := range straight {
		if s, ok := b.firstPiece(file, rank, o); ok && is(s, engine.Rook, engine.Queen) {
			set = set.With(s)
		}
	}
	for _, o := range diagonal {
		if s, ok := b.firstPiece(file, rank, o); ok && is(s, engine.Bishop, engine.Queen) {
			set = set.With(s)
		}
	}
	return set
}

func (b *Board) firstPiece(file, rank int, o offset) (engine.Square, bool) {
	for f, r := file+o.df, rank+o.dr; ; f, r = f+o.df, r+o.dr {
		s := engine.NewSquare(f, r)
		if !s.Valid() {
			return engine.NoSquare, false
		}
		if _, ok := b.PieceAt(s); ok {
			return s, true
		}
	}
}
