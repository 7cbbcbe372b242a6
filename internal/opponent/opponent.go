// Package opponent provides move sources the agent can be played against.
package opponent

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-chess-agent/internal/agent"
	"github.com/park285/Cheese-chess-agent/internal/rules"
)

var ErrNoLegalMoves = errors.New("no legal moves")

// Player picks a move for the side to move on b without modifying it.
type Player interface {
	Name() string
	NextMove(ctx context.Context, b *rules.Board) (string, error)
}

type RandomPlayer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomPlayer(seed int64) *RandomPlayer {
	return &RandomPlayer{rng: rand.New(rand.NewSource(seed))}
}

func (p *RandomPlayer) Name() string { return "random" }

func (p *RandomPlayer) NextMove(ctx context.Context, b *rules.Board) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	moves := b.LegalMoves()
	if len(moves) == 0 {
		return "", ErrNoLegalMoves
	}
	p.mu.Lock()
	i := p.rng.Intn(len(moves))
	p.mu.Unlock()
	return moves[i].String(), nil
}

// BestMover is satisfied by *lookup.Client and *uci.Pool.
type BestMover interface {
	BestMove(ctx context.Context, fen string) (string, error)
}

// RemotePlayer plays the remote database's best move and falls back to
// another player when the service times out, fails or has no legal answer.
type RemotePlayer struct {
	name     string
	remote   BestMover
	fallback Player
	timeout  time.Duration
	logger   *zap.Logger
}

func NewRemotePlayer(remote BestMover, fallback Player, timeout time.Duration, logger *zap.Logger) *RemotePlayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemotePlayer{name: "remote", remote: remote, fallback: fallback, timeout: timeout, logger: logger}
}

// NewUCIPlayer plays an external engine's moves with no fallback.
func NewUCIPlayer(engine BestMover, timeout time.Duration, logger *zap.Logger) *RemotePlayer {
	p := NewRemotePlayer(engine, nil, timeout, logger)
	p.name = "uci"
	return p
}

func (p *RemotePlayer) Name() string { return p.name }

func (p *RemotePlayer) NextMove(ctx context.Context, b *rules.Board) (string, error) {
	qctx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	mv, err := p.remote.BestMove(qctx, b.FEN())
	if err == nil {
		if m, perr := b.ParseMove(mv); perr == nil {
			return m.String(), nil
		}
		p.logger.Warn("remote move not legal", zap.String("move", mv), zap.String("fen", b.FEN()))
	} else {
		p.logger.Info("remote lookup failed, using fallback", zap.Error(err))
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.fallback == nil {
		if err == nil {
			err = errors.New("remote returned an illegal move")
		}
		return "", err
	}
	return p.fallback.NextMove(ctx, b)
}

// AgentPlayer searches a private copy of the board.
type AgentPlayer struct {
	cfg  agent.Config
	opts []agent.Option
}

func NewAgentPlayer(cfg agent.Config, opts ...agent.Option) *AgentPlayer {
	return &AgentPlayer{cfg: cfg, opts: opts}
}

func (p *AgentPlayer) Name() string { return "agent" }

func (p *AgentPlayer) NextMove(ctx context.Context, b *rules.Board) (string, error) {
	a, err := agent.New(b.Clone(), p.cfg, p.opts...)
	if err != nil {
		return "", err
	}
	return a.NextMove(ctx)
}
