package engine

import "sort"

// MoveOrderer ranks moves by a cheap heuristic so that alpha-beta sees the
// most promising candidates first. It never changes the move set.
type MoveOrderer struct{}

// Guess estimates how good m is for the side to move in pos, which must be
// the position before m is played. Capturing a valuable piece with a cheap
// one scores highest; promotions add the new piece's value; landing on a
// square an enemy pawn guards costs the mover's value.
func (MoveOrderer) Guess(pos Position, m Move) float64 {
	mover, ok := pos.PieceAt(m.From)
	if !ok {
		return 0
	}
	guess := 0.0
	if victim, ok := pos.PieceAt(m.To); ok {
		guess += 10*Value(victim.Kind) - Value(mover.Kind)
	}
	if m.Promotion != NoKind {
		guess += Value(m.Promotion)
	}
	if pawnGuards(pos, m.To, pos.SideToMove().Other()) {
		guess -= Value(mover.Kind)
	}
	return guess
}

// Order returns a new slice with moves sorted by descending guess. Ties
// keep their input order.
func (o MoveOrderer) Order(pos Position, moves []Move) []Move {
	scored := make([]scoredMove, len(moves))
	for i, m := range moves {
		scored[i] = scoredMove{move: m, guess: o.Guess(pos, m)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].guess > scored[j].guess
	})
	out := make([]Move, len(scored))
	for i, s := range scored {
		out[i] = s.move
	}
	return out
}

type scoredMove struct {
	move  Move
	guess float64
}

func pawnGuards(pos Position, sq Square, by Side) bool {
	for _, from := range pos.AttackersOf(sq, by).Squares() {
		if p, ok := pos.PieceAt(from); ok && p.Kind == Pawn && p.Side == by {
			return true
		}
	}
	return false
}
