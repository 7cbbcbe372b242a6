// Package rules adapts github.com/corentings/chess/v2 to engine.Position.
// A Board keeps a stack of immutable positions, so Push and Pop are exact
// inverses and a Board can be searched in place.
package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/Cheese-chess-agent/internal/engine"
)

const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// seventyFiveMoveLimit ends the game without a claim, in half-moves.
const seventyFiveMoveLimit = 150

// fivefoldLimit ends the game without a claim.
const fivefoldLimit = 5

var ErrIllegalMove = errors.New("illegal move")

type frame struct {
	pos       *nchess.Position
	moves     []nchess.Move
	generated bool
}

// Board is not safe for concurrent use. Clone it to hand a position to
// another goroutine.
type Board struct {
	stack []frame
	// played counts committed positions by repetitionKey.
	played map[string]int
}

var _ engine.Position = (*Board)(nil)

func NewBoard() *Board {
	b, err := FromFEN(StartFEN)
	if err != nil {
		panic(fmt.Sprintf("rules: start position: %v", err))
	}
	return b
}

func FromFEN(fen string) (*Board, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		fen = StartFEN
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen %q: %w", fen, err)
	}
	game := nchess.NewGame(opt)
	pos := game.Position()
	return &Board{
		stack:  []frame{{pos: pos}},
		played: map[string]int{repetitionKey(pos): 1},
	}, nil
}

// Clone returns an independent board at the current position. Undo history
// is not copied; repetition counts are.
func (b *Board) Clone() *Board {
	played := make(map[string]int, len(b.played))
	for k, v := range b.played {
		played[k] = v
	}
	return &Board{stack: []frame{{pos: b.top().pos}}, played: played}
}

func (b *Board) top() *frame { return &b.stack[len(b.stack)-1] }

func (b *Board) native() []nchess.Move {
	f := b.top()
	if !f.generated {
		f.moves = f.pos.ValidMoves()
		f.generated = true
	}
	return f.moves
}

func (b *Board) find(m engine.Move) (*nchess.Move, bool) {
	moves := b.native()
	for i := range moves {
		if sameMove(&moves[i], m) {
			return &moves[i], true
		}
	}
	return nil, false
}

func (b *Board) LegalMoves() []engine.Move {
	moves := b.native()
	out := make([]engine.Move, len(moves))
	for i := range moves {
		out[i] = fromNative(&moves[i])
	}
	return out
}

func (b *Board) IsLegal(m engine.Move) bool {
	_, ok := b.find(m)
	return ok
}

func (b *Board) Push(m engine.Move) error {
	native, ok := b.find(m)
	if !ok {
		return fmt.Errorf("%w: %s", ErrIllegalMove, m)
	}
	b.stack = append(b.stack, frame{pos: b.top().pos.Update(native)})
	return nil
}

// Pop takes back the last pushed move. Popping the root position is a
// no-op.
func (b *Board) Pop() {
	if len(b.stack) <= 1 {
		return
	}
	b.stack[len(b.stack)-1] = frame{}
	b.stack = b.stack[:len(b.stack)-1]
}

// Depth is the number of moves currently pushed above the root.
func (b *Board) Depth() int { return len(b.stack) - 1 }

// Commit drops the undo history, making the current position the root.
// Positions passed on the way count towards repetition.
func (b *Board) Commit() {
	if b.played == nil {
		b.played = map[string]int{repetitionKey(b.stack[0].pos): 1}
	}
	for _, f := range b.stack[1:] {
		b.played[repetitionKey(f.pos)]++
	}
	cur := *b.top()
	b.stack = append(b.stack[:0], cur)
}

// Repetitions counts how often the current position has occurred,
// including uncommitted moves.
func (b *Board) Repetitions() int {
	key := repetitionKey(b.top().pos)
	n := b.played[key]
	for _, f := range b.stack[1:] {
		if repetitionKey(f.pos) == key {
			n++
		}
	}
	return n
}

// repetitionKey drops the move counters from the FEN.
func repetitionKey(pos *nchess.Position) string {
	fields := strings.Fields(pos.String())
	if len(fields) > 4 {
		fields = fields[:4]
	}
	return strings.Join(fields, " ")
}

func (b *Board) IsCheckmate() bool { return b.top().pos.Status() == nchess.Checkmate }

func (b *Board) IsStalemate() bool { return b.top().pos.Status() == nchess.Stalemate }

// IsGameOver reports checkmate, stalemate, insufficient material, the
// seventy-five-move rule and fivefold repetition. Threefold repetition and
// the fifty-move rule need a claim and do not end the game.
func (b *Board) IsGameOver() bool {
	if len(b.native()) == 0 {
		return true
	}
	return b.InsufficientMaterial() ||
		b.HalfMoveClock() >= seventyFiveMoveLimit ||
		b.Repetitions() >= fivefoldLimit
}

func (b *Board) InCheck() bool {
	side := b.SideToMove()
	king := b.KingSquare(side)
	if !king.Valid() {
		return false
	}
	return b.AttackersOf(king, side.Other()) != 0
}

func (b *Board) GivesCheck(m engine.Move) bool {
	native, ok := b.find(m)
	return ok && native.HasTag(nchess.Check)
}

func (b *Board) PieceAt(sq engine.Square) (engine.Piece, bool) {
	if !sq.Valid() {
		return engine.Piece{}, false
	}
	p := b.top().pos.Board().Piece(nchess.Square(sq))
	if p == nchess.NoPiece {
		return engine.Piece{}, false
	}
	return engine.Piece{Kind: kindFromNative(p.Type()), Side: sideFromNative(p.Color())}, true
}

func (b *Board) KingSquare(side engine.Side) engine.Square {
	for sq := engine.Square(0); sq < 64; sq++ {
		if p, ok := b.PieceAt(sq); ok && p.Kind == engine.King && p.Side == side {
			return sq
		}
	}
	return engine.NoSquare
}

func (b *Board) SideToMove() engine.Side { return sideFromNative(b.top().pos.Turn()) }

// FEN renders the current position.
func (b *Board) FEN() string { return b.top().pos.String() }

// HalfMoveClock reads the half-move counter from the FEN.
func (b *Board) HalfMoveClock() int {
	fields := strings.Fields(b.FEN())
	if len(fields) < 5 {
		return 0
	}
	n, err := strconv.Atoi(fields[4])
	if err != nil {
		return 0
	}
	return n
}

// Outcome reports the result string ("1-0", "0-1", "1/2-1/2") and the
// reason, or "*" while the game is still running.
func (b *Board) Outcome() (result, reason string) {
	switch {
	case b.IsCheckmate():
		if b.SideToMove() == engine.White {
			return "0-1", "checkmate"
		}
		return "1-0", "checkmate"
	case b.IsStalemate():
		return "1/2-1/2", "stalemate"
	case b.InsufficientMaterial():
		return "1/2-1/2", "insufficient material"
	case b.HalfMoveClock() >= seventyFiveMoveLimit:
		return "1/2-1/2", "seventy-five-move rule"
	case b.Repetitions() >= fivefoldLimit:
		return "1/2-1/2", "fivefold repetition"
	}
	return "*", ""
}

// SAN encodes m in standard algebraic notation for the current position.
func (b *Board) SAN(m engine.Move) (string, error) {
	native, ok := b.find(m)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrIllegalMove, m)
	}
	return nchess.AlgebraicNotation{}.Encode(b.top().pos, native), nil
}

// ParseMove accepts coordinate notation ("e2e4") or SAN ("Nf3") and
// returns the matching legal move.
func (b *Board) ParseMove(s string) (engine.Move, error) {
	s = strings.TrimSpace(s)
	if m, err := engine.ParseMove(s); err == nil {
		if b.IsLegal(m) {
			return m, nil
		}
		return engine.Move{}, fmt.Errorf("%w: %s", ErrIllegalMove, s)
	}
	native, err := nchess.AlgebraicNotation{}.Decode(b.top().pos, s)
	if err != nil {
		return engine.Move{}, fmt.Errorf("%w: %s", ErrIllegalMove, s)
	}
	m := fromNative(native)
	if !b.IsLegal(m) {
		return engine.Move{}, fmt.Errorf("%w: %s", ErrIllegalMove, s)
	}
	return m, nil
}

// InsufficientMaterial reports bare kings, kings with a single minor piece
// between them, or only bishops that all stand on one square colour.
func (b *Board) InsufficientMaterial() bool {
	var minors, knights int
	var bishopColors [2]bool
	for sq := engine.Square(0); sq < 64; sq++ {
		p, ok := b.PieceAt(sq)
		if !ok {
			continue
		}
		switch p.Kind {
		case engine.King:
		case engine.Knight:
			minors++
			knights++
		case engine.Bishop:
			minors++
			bishopColors[(sq.File()+sq.Rank())%2] = true
		default:
			return false
		}
	}
	if minors <= 1 {
		return true
	}
	return knights == 0 && !(bishopColors[0] && bishopColors[1])
}

func sameMove(n *nchess.Move, m engine.Move) bool {
	return engine.Square(n.S1()) == m.From &&
		engine.Square(n.S2()) == m.To &&
		kindFromNative(n.Promo()) == m.Promotion
}

func fromNative(n *nchess.Move) engine.Move {
	return engine.Move{
		From:      engine.Square(n.S1()),
		To:        engine.Square(n.S2()),
		Promotion: kindFromNative(n.Promo()),
	}
}

func kindFromNative(t nchess.PieceType) engine.PieceKind {
	switch t {
	case nchess.Pawn:
		return engine.Pawn
	case nchess.Knight:
		return engine.Knight
	case nchess.Bishop:
		return engine.Bishop
	case nchess.Rook:
		return engine.Rook
	case nchess.Queen:
		return engine.Queen
	case nchess.King:
		return engine.King
	default:
		return engine.NoKind
	}
}

func sideFromNative(c nchess.Color) engine.Side {
	if c == nchess.Black {
		return engine.Black
	}
	return engine.White
}
