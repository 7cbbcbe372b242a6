// Package agent turns the search into a game-playing participant: it owns
// a board, picks moves for the side to move and applies moves from either
// side.
package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-chess-agent/internal/cache"
	"github.com/park285/Cheese-chess-agent/internal/engine"
	"github.com/park285/Cheese-chess-agent/internal/rules"
)

var (
	ErrIllegalMove = errors.New("illegal move")
	ErrNoMoveFound = errors.New("search found no move")
	ErrGameOver    = errors.New("game is over")
)

const DefaultDepth = 4

type Config struct {
	Depth  int
	Search engine.Options
	// Debug logs every decision with its search statistics.
	Debug bool
}

func DefaultConfig() Config {
	return Config{Depth: DefaultDepth, Search: engine.DefaultOptions()}
}

// Decision is one chosen move with the numbers behind it.
type Decision struct {
	Move     engine.Move
	Score    float64
	Stats    engine.Stats
	Duration time.Duration
	Cached   bool
}

type Option func(*Agent)

func WithLogger(l *zap.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithCache lets the agent reuse root results across games and processes.
func WithCache(s cache.Store) Option {
	return func(a *Agent) { a.cache = s }
}

// Agent is not safe for concurrent use; give each game its own.
type Agent struct {
	board    *rules.Board
	cfg      Config
	stats    engine.Stats
	searcher *engine.Searcher
	cache    cache.Store
	logger   *zap.Logger
}

func New(board *rules.Board, cfg Config, opts ...Option) (*Agent, error) {
	if board == nil {
		return nil, errors.New("agent: nil board")
	}
	if cfg.Depth < 1 {
		return nil, fmt.Errorf("agent: depth %d must be at least 1", cfg.Depth)
	}
	a := &Agent{board: board, cfg: cfg, logger: zap.NewNop()}
	for _, o := range opts {
		o(a)
	}
	a.searcher = engine.NewSearcher(cfg.Search, &a.stats)
	return a, nil
}

func (a *Agent) Board() *rules.Board { return a.board }

func (a *Agent) Config() Config { return a.cfg }

// Stats reports the instrumentation of the last search.
func (a *Agent) Stats() engine.Stats { return a.stats }

func (a *Agent) ResetStats() { a.stats.Reset() }

// NextMove picks a move for the side to move, in coordinate notation. The
// board is left unchanged.
func (a *Agent) NextMove(ctx context.Context) (string, error) {
	d, err := a.Decide(ctx)
	if err != nil {
		return "", err
	}
	return d.Move.String(), nil
}

func (a *Agent) Decide(ctx context.Context) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	if a.board.IsGameOver() {
		return Decision{}, ErrGameOver
	}

	fen := a.board.FEN()
	key := cache.Key(fen, a.cfg.Depth, a.cfg.Search)
	if d, ok := a.cached(ctx, key); ok {
		return d, nil
	}

	start := time.Now()
	a.stats.Reset()
	res, err := a.searcher.Search(a.board, a.cfg.Depth, math.Inf(-1), math.Inf(1))
	if err != nil {
		return Decision{}, fmt.Errorf("search %s: %w", fen, err)
	}
	if !res.HasMove {
		a.logger.Warn("search returned no move, searching again",
			zap.String("fen", fen), zap.Int("depth", a.cfg.Depth))
		res, err = a.searcher.Search(a.board, a.cfg.Depth, math.Inf(-1), math.Inf(1))
		if err != nil {
			return Decision{}, fmt.Errorf("search %s: %w", fen, err)
		}
	}
	if !res.HasMove {
		a.logger.Error("no move found", zap.String("fen", fen), zap.Int("legal", len(a.board.LegalMoves())))
		return Decision{}, fmt.Errorf("%w: %s", ErrNoMoveFound, fen)
	}

	d := Decision{Move: res.Move, Score: res.Score, Stats: a.stats, Duration: time.Since(start)}
	if a.cfg.Debug {
		a.logger.Debug("decision",
			zap.String("move", d.Move.String()),
			zap.Float64("score", d.Score),
			zap.Int64("nodes", d.Stats.Nodes),
			zap.Int("max_ply", d.Stats.MaxPly),
			zap.Duration("took", d.Duration))
	}
	if a.cache != nil {
		if err := a.cache.Put(ctx, key, cache.Entry{Move: d.Move.String(), Score: d.Score}); err != nil {
			a.logger.Warn("cache put failed", zap.Error(err))
		}
	}
	return d, nil
}

func (a *Agent) cached(ctx context.Context, key string) (Decision, bool) {
	if a.cache == nil {
		return Decision{}, false
	}
	e, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		a.logger.Warn("cache get failed", zap.Error(err))
		return Decision{}, false
	}
	if !ok {
		return Decision{}, false
	}
	m, err := engine.ParseMove(e.Move)
	if err != nil || !a.board.IsLegal(m) {
		a.logger.Warn("ignoring stale cache entry", zap.String("move", e.Move))
		return Decision{}, false
	}
	a.stats.Reset()
	return Decision{Move: m, Score: e.Score, Cached: true}, true
}

// Play decides and applies a move in one step.
func (a *Agent) Play(ctx context.Context) (Decision, error) {
	d, err := a.Decide(ctx)
	if err != nil {
		return Decision{}, err
	}
	if err := a.board.Push(d.Move); err != nil {
		return Decision{}, fmt.Errorf("apply own move %s: %w", d.Move, err)
	}
	a.board.Commit()
	return d, nil
}

// Apply plays a move for whichever side is to move. It accepts coordinate
// notation or SAN.
func (a *Agent) Apply(move string) error {
	if a.board.IsGameOver() {
		return ErrGameOver
	}
	m, err := a.board.ParseMove(move)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrIllegalMove, move)
	}
	if err := a.board.Push(m); err != nil {
		return fmt.Errorf("%w: %q", ErrIllegalMove, move)
	}
	a.board.Commit()
	return nil
}

// CheckMoveIsLegal reports whether some legal move goes from one square to
// the other. Promotions match any promotion piece.
func (a *Agent) CheckMoveIsLegal(from, to string) bool {
	f, err := engine.ParseSquare(from)
	if err != nil {
		return false
	}
	t, err := engine.ParseSquare(to)
	if err != nil {
		return false
	}
	for _, m := range a.board.LegalMoves() {
		if m.From == f && m.To == t {
			return true
		}
	}
	return false
}
