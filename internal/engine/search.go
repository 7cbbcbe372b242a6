package engine

import (
	"fmt"
	"math"
)

// DefaultMaxQuiescencePly bounds the capture-only extension below the
// nominal depth.
const DefaultMaxQuiescencePly = 32

type Options struct {
	MoveOrdering bool
	Quiescence   bool
	// QuiescenceChecks also extends checking moves in quiescence. Checks
	// can repeat indefinitely, so MaxQuiescencePly must stay positive.
	QuiescenceChecks bool
	// MaxQuiescencePly stops quiescence at the stand-pat score once this
	// many plies were searched below the nominal depth. Zero means no cap.
	MaxQuiescencePly int
	Eval             EvalOptions
}

func DefaultOptions() Options {
	return Options{
		MoveOrdering:     true,
		Quiescence:       true,
		MaxQuiescencePly: DefaultMaxQuiescencePly,
		Eval:             EvalOptions{MopUp: true},
	}
}

// Result is the outcome of a search. Move is meaningful only when HasMove
// is set: at fail-low nodes no move improved alpha.
type Result struct {
	Score   float64
	Move    Move
	HasMove bool
}

// Searcher runs fail-hard negamax with alpha-beta pruning. It is not safe
// for concurrent use, and every position it searches must be owned by the
// calling goroutine for the duration of the call.
type Searcher struct {
	opts    Options
	eval    *Evaluator
	orderer MoveOrderer
	stats   *Stats
}

// NewSearcher returns a searcher that records into stats; stats may be nil.
func NewSearcher(opts Options, stats *Stats) *Searcher {
	return &Searcher{
		opts:  opts,
		eval:  NewEvaluator(opts.Eval),
		stats: stats,
	}
}

func (s *Searcher) Evaluator() *Evaluator { return s.eval }

// Search looks depth plies ahead from pos inside the window (alpha, beta)
// and returns the best score for the side to move together with the move
// reaching it. pos is restored to its entry state on every return path.
func (s *Searcher) Search(pos Position, depth int, alpha, beta float64) (Result, error) {
	return s.search(pos, depth, alpha, beta, 0)
}

// Quiesce searches only captures (and checks when enabled) until the
// position is quiet, standing pat on the static evaluation.
func (s *Searcher) Quiesce(pos Position, alpha, beta float64) (Result, error) {
	return s.quiesce(pos, alpha, beta, 0, 0)
}

func (s *Searcher) search(pos Position, depth int, alpha, beta float64, ply int) (Result, error) {
	s.stats.visit(ply)

	if depth <= 0 {
		if s.opts.Quiescence {
			return s.quiesce(pos, alpha, beta, ply, 0)
		}
		return Result{Score: s.eval.Evaluate(pos)}, nil
	}

	moves := pos.LegalMoves()
	if len(moves) == 0 {
		if pos.IsCheckmate() {
			return Result{Score: -Infinity}, nil
		}
		return Result{Score: 0}, nil
	}
	if s.opts.MoveOrdering {
		moves = s.orderer.Order(pos, moves)
	}

	best := Result{Score: alpha}
	for _, m := range moves {
		child, err := s.child(pos, m, func() (Result, error) {
			return s.search(pos, depth-1, -beta, -alpha, ply+1)
		})
		if err != nil {
			return Result{}, err
		}
		score := -child.Score

		if score >= beta {
			// A mate against an open upper bound is reported with its move.
			if math.IsInf(beta, 1) {
				return Result{Score: score, Move: m, HasMove: true}, nil
			}
			return Result{Score: beta}, nil
		}
		if score > alpha || lostAnyway(best, score, alpha) {
			alpha = score
			best = Result{Score: score, Move: m, HasMove: true}
		}
	}
	best.Score = alpha
	return best, nil
}

func (s *Searcher) quiesce(pos Position, alpha, beta float64, ply, qply int) (Result, error) {
	if qply > 0 {
		s.stats.visit(ply)
	}

	standPat := s.eval.Evaluate(pos)
	if standPat >= beta {
		return Result{Score: beta}, nil
	}
	if standPat > alpha {
		alpha = standPat
	}
	if s.opts.MaxQuiescencePly > 0 && qply >= s.opts.MaxQuiescencePly {
		return Result{Score: alpha}, nil
	}

	moves := s.orderer.Order(pos, s.noisyMoves(pos))

	best := Result{Score: alpha}
	for _, m := range moves {
		child, err := s.child(pos, m, func() (Result, error) {
			return s.quiesce(pos, -beta, -alpha, ply+1, qply+1)
		})
		if err != nil {
			return Result{}, err
		}
		score := -child.Score

		if score >= beta {
			return Result{Score: beta}, nil
		}
		if score > alpha {
			alpha = score
			best = Result{Score: score, Move: m, HasMove: true}
		}
	}
	best.Score = alpha
	return best, nil
}

// child plays m, runs next and takes m back, also when next fails or
// panics.
func (s *Searcher) child(pos Position, m Move, next func() (Result, error)) (Result, error) {
	if err := pos.Push(m); err != nil {
		return Result{}, fmt.Errorf("push %s: %w", m, err)
	}
	defer pos.Pop()
	return next()
}

// noisyMoves keeps captures of occupied enemy squares and, when enabled,
// checking moves. En passant is not considered a capture here.
func (s *Searcher) noisyMoves(pos Position) []Move {
	them := pos.SideToMove().Other()
	all := pos.LegalMoves()
	out := make([]Move, 0, len(all))
	for _, m := range all {
		if p, ok := pos.PieceAt(m.To); ok && p.Side == them {
			out = append(out, m)
			continue
		}
		if s.opts.QuiescenceChecks && pos.GivesCheck(m) {
			out = append(out, m)
		}
	}
	return out
}

// lostAnyway lets a node whose every move is mated still name a move, so a
// lost position with legal moves never comes back empty.
func lostAnyway(best Result, score, alpha float64) bool {
	return !best.HasMove && score == alpha && math.IsInf(alpha, -1)
}
