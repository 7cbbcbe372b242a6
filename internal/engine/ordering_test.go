package engine_test

import (
	"testing"

	"github.com/park285/Cheese-chess-agent/internal/engine"
)

func TestGuessPrioritizesCheapCaptures(t *testing.T) {
	// The e5 pawn and the c6 knight can both take the rook on d4.
	b := mustBoard(t, "4k3/8/2n5/4p3/3R4/8/8/4K3 b - - 0 1")
	var o engine.MoveOrderer
	pawnTakes := o.Guess(b, mustMove(t, "e5d4"))
	knightTakes := o.Guess(b, mustMove(t, "c6d4"))
	quiet := o.Guess(b, mustMove(t, "e8e7"))
	if !(pawnTakes > knightTakes) {
		t.Fatalf("pawn capture %v should beat knight capture %v", pawnTakes, knightTakes)
	}
	if !(knightTakes > quiet) {
		t.Fatalf("knight capture %v should beat quiet move %v", knightTakes, quiet)
	}
}

func TestGuessAvoidsPawnGuardedSquares(t *testing.T) {
	b := mustBoard(t, "r1bqkbnr/pppp1ppp/2n5/4p3/4P3/3P1N2/PPP2PPP/RNBQKB1R b KQkq - 0 3")
	var o engine.MoveOrderer
	if got := o.Guess(b, mustMove(t, "f8a3")); got >= 0 {
		t.Fatalf("Ba3 into pawn guard = %v, want < 0", got)
	}
	if got := o.Guess(b, mustMove(t, "f8b4")); got < 0 {
		t.Fatalf("Bb4 = %v, want >= 0", got)
	}
}

func TestGuessRewardsPromotion(t *testing.T) {
	b := mustBoard(t, "8/4P3/8/8/8/8/k7/4K3 w - - 0 1")
	var o engine.MoveOrderer
	queen := o.Guess(b, mustMove(t, "e7e8q"))
	knight := o.Guess(b, mustMove(t, "e7e8n"))
	if queen != 9 || knight != 3 {
		t.Fatalf("promotion guesses = %v, %v", queen, knight)
	}
}

func TestOrderIsStablePermutation(t *testing.T) {
	b := mustBoard(t, "r1bqkbnr/pppp1ppp/2n5/4p3/3PP3/5N2/PPP2PPP/RNBQKB1R b KQkq d3 0 3")
	var o engine.MoveOrderer
	moves := b.LegalMoves()
	ordered := o.Order(b, moves)
	if len(ordered) != len(moves) {
		t.Fatalf("ordered %d moves, got %d", len(moves), len(ordered))
	}

	seen := make(map[engine.Move]int, len(moves))
	for _, m := range moves {
		seen[m]++
	}
	for _, m := range ordered {
		seen[m]--
	}
	for m, n := range seen {
		if n != 0 {
			t.Fatalf("move %s count off by %d", m, n)
		}
	}

	if ordered[0] != mustMove(t, "e5d4") {
		t.Fatalf("first move = %s, want e5d4", ordered[0])
	}

	index := make(map[engine.Move]int, len(moves))
	for i, m := range moves {
		index[m] = i
	}
	for i := 1; i < len(ordered); i++ {
		prev, cur := ordered[i-1], ordered[i]
		gp, gc := o.Guess(b, prev), o.Guess(b, cur)
		if gp < gc {
			t.Fatalf("not sorted: %s (%v) before %s (%v)", prev, gp, cur, gc)
		}
		if gp == gc && index[prev] > index[cur] {
			t.Fatalf("tie between %s and %s reordered", prev, cur)
		}
	}
}
