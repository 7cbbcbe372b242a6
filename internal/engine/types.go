// Package engine implements the move-selection core: a static evaluator, a
// move orderer, a quiescence search and a negamax alpha-beta searcher. The
// rules of the game are reached only through the Position interface.
package engine

import (
	"fmt"
	"math/bits"
	"strings"
)

type Side int8

const (
	White Side = iota
	Black
)

func (s Side) Other() Side { return s ^ 1 }

func (s Side) String() string {
	if s == White {
		return "white"
	}
	return "black"
}

type PieceKind int8

const (
	NoKind PieceKind = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

var kindLetters = [...]byte{NoKind: ' ', Pawn: 'p', Knight: 'n', Bishop: 'b', Rook: 'r', Queen: 'q', King: 'k'}

func (k PieceKind) Letter() byte {
	if k < NoKind || int(k) >= len(kindLetters) {
		return ' '
	}
	return kindLetters[k]
}

func (k PieceKind) String() string {
	switch k {
	case Pawn:
		return "pawn"
	case Knight:
		return "knight"
	case Bishop:
		return "bishop"
	case Rook:
		return "rook"
	case Queen:
		return "queen"
	case King:
		return "king"
	default:
		return "none"
	}
}

type Piece struct {
	Kind PieceKind
	Side Side
}

// Square indexes the board rank-major from a1 (0) to h8 (63).
type Square int8

const NoSquare Square = -1

func NewSquare(file, rank int) Square {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return NoSquare
	}
	return Square(rank*8 + file)
}

func (sq Square) File() int { return int(sq) % 8 }
func (sq Square) Rank() int { return int(sq) / 8 }

func (sq Square) Valid() bool { return sq >= 0 && sq < 64 }

func (sq Square) String() string {
	if !sq.Valid() {
		return "-"
	}
	return string([]byte{byte('a' + sq.File()), byte('1' + sq.Rank())})
}

func ParseSquare(s string) (Square, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return NoSquare, fmt.Errorf("invalid square %q", s)
	}
	return NewSquare(int(s[0]-'a'), int(s[1]-'1')), nil
}

// SquareSet is a bitmask of squares, bit i set for Square(i).
type SquareSet uint64

func (s SquareSet) Has(sq Square) bool {
	return sq.Valid() && s&(1<<uint(sq)) != 0
}

func (s SquareSet) With(sq Square) SquareSet {
	if !sq.Valid() {
		return s
	}
	return s | 1<<uint(sq)
}

func (s SquareSet) Len() int { return bits.OnesCount64(uint64(s)) }

func (s SquareSet) Squares() []Square {
	out := make([]Square, 0, s.Len())
	for rest := uint64(s); rest != 0; rest &= rest - 1 {
		out = append(out, Square(bits.TrailingZeros64(rest)))
	}
	return out
}

// Move is an immutable value compared by origin, destination and promotion.
type Move struct {
	From      Square
	To        Square
	Promotion PieceKind
}

func (m Move) String() string {
	s := m.From.String() + m.To.String()
	if m.Promotion != NoKind {
		s += string(m.Promotion.Letter())
	}
	return s
}

// ParseMove reads coordinate notation such as "e2e4" or "e7e8q".
func ParseMove(s string) (Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 4 && len(s) != 5 {
		return Move{}, fmt.Errorf("invalid move %q", s)
	}
	from, err := ParseSquare(s[0:2])
	if err != nil {
		return Move{}, err
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return Move{}, err
	}
	m := Move{From: from, To: to}
	if len(s) == 5 {
		switch s[4] {
		case 'n':
			m.Promotion = Knight
		case 'b':
			m.Promotion = Bishop
		case 'r':
			m.Promotion = Rook
		case 'q':
			m.Promotion = Queen
		default:
			return Move{}, fmt.Errorf("invalid promotion in move %q", s)
		}
	}
	return m, nil
}

// Position is the contract the search needs from the rules engine.
// Push and Pop must be called in strict LIFO order; the searcher restores
// every position it pushes before returning.
type Position interface {
	LegalMoves() []Move
	Push(m Move) error
	Pop()

	IsCheckmate() bool
	IsStalemate() bool
	IsGameOver() bool
	InCheck() bool
	GivesCheck(m Move) bool

	PieceAt(sq Square) (Piece, bool)
	AttackersOf(sq Square, by Side) SquareSet
	KingSquare(side Side) Square
	SideToMove() Side
}
