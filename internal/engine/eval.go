package engine

// EvalOptions toggles optional evaluation terms.
type EvalOptions struct {
	// MopUp rewards the materially stronger side for driving the weak king
	// to the edge and bringing its own king closer once material is thin.
	MopUp bool
}

const (
	// mopUpMargin is the material lead, in pawns, that activates mop-up.
	mopUpMargin = 2.0
	// endgameMaterialStart is the non-pawn material of both sides at which
	// the endgame weight starts to rise above zero.
	endgameMaterialStart = 2 * (2*5 + 3.1 + 3)

	centreWeight    = 0.1
	proximityWeight = 0.04
)

type Evaluator struct {
	opts EvalOptions
}

func NewEvaluator(opts EvalOptions) *Evaluator {
	return &Evaluator{opts: opts}
}

// Evaluate scores pos from the side to move's perspective. The result
// changes sign exactly when the colours of the position are mirrored.
func (e *Evaluator) Evaluate(pos Position) float64 {
	var counts [2][len(PieceValues)]int
	for sq := Square(0); sq < 64; sq++ {
		p, ok := pos.PieceAt(sq)
		if !ok || p.Kind <= NoKind || int(p.Kind) >= len(PieceValues) {
			continue
		}
		counts[p.Side][p.Kind]++
	}

	// Summing per kind in a fixed order keeps the float result independent
	// of where the pieces stand, so mirrored positions negate exactly.
	var material [2]float64
	nonPawn := 0.0
	for kind := Pawn; kind <= King; kind++ {
		material[White] += float64(counts[White][kind]) * PieceValues[kind]
		material[Black] += float64(counts[Black][kind]) * PieceValues[kind]
		if kind != Pawn {
			nonPawn += float64(counts[White][kind]+counts[Black][kind]) * PieceValues[kind]
		}
	}

	white, black := material[White], material[Black]
	if e.opts.MopUp {
		white += e.mopUp(pos, White, material, nonPawn)
		black += e.mopUp(pos, Black, material, nonPawn)
	}

	score := white - black
	if pos.SideToMove() == Black {
		return -score
	}
	return score
}

func (e *Evaluator) mopUp(pos Position, strong Side, material [2]float64, nonPawn float64) float64 {
	weak := strong.Other()
	if material[strong] <= material[weak]+mopUpMargin {
		return 0
	}
	weight := endgameWeight(nonPawn)
	if weight <= 0 {
		return 0
	}
	weakKing := pos.KingSquare(weak)
	strongKing := pos.KingSquare(strong)
	if !weakKing.Valid() || !strongKing.Valid() {
		return 0
	}
	proximity := float64(14 - manhattan(strongKing, weakKing))
	return weight * (centreWeight*float64(centreDistance(weakKing)) + proximityWeight*proximity)
}

func endgameWeight(nonPawn float64) float64 {
	ratio := nonPawn / endgameMaterialStart
	if ratio > 1 {
		ratio = 1
	}
	return 1 - ratio
}

// centreDistance is the Manhattan distance from sq to the nearest of the
// four centre squares.
func centreDistance(sq Square) int {
	return centreAxis(sq.File()) + centreAxis(sq.Rank())
}

func centreAxis(v int) int {
	if v < 4 {
		return 3 - v
	}
	return v - 4
}

func manhattan(a, b Square) int {
	return abs(a.File()-b.File()) + abs(a.Rank()-b.Rank())
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
