// Package match plays the agent against an opponent and records every ply
// with the search statistics behind it.
package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/park285/Cheese-chess-agent/internal/agent"
	"github.com/park285/Cheese-chess-agent/internal/domain"
	"github.com/park285/Cheese-chess-agent/internal/engine"
	"github.com/park285/Cheese-chess-agent/internal/opponent"
	"github.com/park285/Cheese-chess-agent/internal/rules"
)

var ErrOpponentMove = errors.New("opponent played an illegal move")

const (
	DefaultMaxPlies  = 300
	MethodMaxPlies   = "max plies"
	unfinishedResult = "*"
)

type Config struct {
	StartFEN   string
	AgentColor engine.Side
	MaxPlies   int
	Agent      agent.Config
	AgentOpts  []agent.Option
	Logger     *zap.Logger
}

// Run plays one game from cfg.StartFEN until it ends or MaxPlies half-moves
// have been played.
func Run(ctx context.Context, cfg Config, opp opponent.Player) (*domain.MatchRecord, error) {
	if opp == nil {
		return nil, errors.New("match: nil opponent")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxPlies := cfg.MaxPlies
	if maxPlies <= 0 {
		maxPlies = DefaultMaxPlies
	}

	board, err := rules.FromFEN(cfg.StartFEN)
	if err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}
	a, err := agent.New(board, cfg.Agent, cfg.AgentOpts...)
	if err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}

	rec := &domain.MatchRecord{
		ID:         uuid.NewString(),
		AgentColor: cfg.AgentColor.String(),
		Opponent:   opp.Name(),
		Depth:      cfg.Agent.Depth,
		StartFEN:   board.FEN(),
		StartedAt:  time.Now(),
	}
	logger = logger.With(zap.String("match_id", rec.ID))

	for len(rec.Plies) < maxPlies && !board.IsGameOver() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var ply domain.Ply
		if board.SideToMove() == cfg.AgentColor {
			ply, err = agentPly(ctx, a)
		} else {
			ply, err = opponentPly(ctx, a, opp)
		}
		if err != nil {
			return nil, err
		}
		ply.Number = len(rec.Plies) + 1
		rec.Plies = append(rec.Plies, ply)
		rec.MovesUCI = append(rec.MovesUCI, ply.UCI)
		rec.MovesSAN = append(rec.MovesSAN, ply.SAN)
		if ply.ByAgent {
			rec.AgentNodes += ply.Nodes
			rec.AgentTime += ply.Duration
		}
		logger.Debug("ply",
			zap.Int("ply", ply.Number),
			zap.String("side", ply.Side),
			zap.String("move", ply.UCI),
			zap.Float64("score", float64(ply.Score)),
			zap.Int64("nodes", ply.Nodes),
			zap.Int("max_ply", ply.MaxPly))
	}

	rec.EndedAt = time.Now()
	rec.Duration = rec.EndedAt.Sub(rec.StartedAt)
	rec.FinalFEN = board.FEN()
	rec.Result, rec.ResultMethod = board.Outcome()
	if rec.Result == unfinishedResult {
		rec.ResultMethod = MethodMaxPlies
	}
	logger.Info("match finished",
		zap.String("result", rec.Result),
		zap.String("method", rec.ResultMethod),
		zap.Int("plies", len(rec.Plies)),
		zap.Int64("agent_nodes", rec.AgentNodes),
		zap.Duration("duration", rec.Duration))
	return rec, nil
}

func agentPly(ctx context.Context, a *agent.Agent) (domain.Ply, error) {
	board := a.Board()
	side := board.SideToMove()
	d, err := a.Decide(ctx)
	if err != nil {
		return domain.Ply{}, err
	}
	san, err := board.SAN(d.Move)
	if err != nil {
		return domain.Ply{}, err
	}
	if err := a.Apply(d.Move.String()); err != nil {
		return domain.Ply{}, err
	}
	return domain.Ply{
		Side:     side.String(),
		UCI:      d.Move.String(),
		SAN:      san,
		ByAgent:  true,
		Score:    domain.Score(d.Score),
		Nodes:    d.Stats.Nodes,
		MaxPly:   d.Stats.MaxPly,
		Cached:   d.Cached,
		Duration: d.Duration,
	}, nil
}

func opponentPly(ctx context.Context, a *agent.Agent, opp opponent.Player) (domain.Ply, error) {
	board := a.Board()
	side := board.SideToMove()
	start := time.Now()
	raw, err := opp.NextMove(ctx, board)
	if err != nil {
		return domain.Ply{}, fmt.Errorf("%s opponent: %w", opp.Name(), err)
	}
	m, err := board.ParseMove(raw)
	if err != nil {
		return domain.Ply{}, fmt.Errorf("%w: %q", ErrOpponentMove, raw)
	}
	san, err := board.SAN(m)
	if err != nil {
		return domain.Ply{}, err
	}
	if err := a.Apply(m.String()); err != nil {
		return domain.Ply{}, err
	}
	return domain.Ply{
		Side:     side.String(),
		UCI:      m.String(),
		SAN:      san,
		Duration: time.Since(start),
	}, nil
}

// RunMany plays games independent games, at most limit at a time, each on
// its own board with its own opponent. The first error cancels the rest.
func RunMany(ctx context.Context, cfg Config, games, limit int, newOpponent func(game int) opponent.Player) ([]*domain.MatchRecord, error) {
	if games <= 0 {
		return nil, nil
	}
	records := make([]*domain.MatchRecord, games)
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i := 0; i < games; i++ {
		g.Go(func() error {
			rec, err := Run(gctx, cfg, newOpponent(i))
			if err != nil {
				return fmt.Errorf("game %d: %w", i+1, err)
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}
