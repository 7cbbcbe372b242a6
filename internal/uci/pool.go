package uci

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var ErrPoolClosed = errors.New("uci pool closed")

type PoolConfig struct {
	BinaryPath string
	Capacity   int
	Options    Options
	Limits     Limits
}

// Pool keeps up to Capacity engine processes and hands them out one search
// at a time.
type Pool struct {
	cfg    PoolConfig
	logger *zap.Logger

	idle chan *Session

	mu     sync.Mutex
	total  int
	closed bool
}

func NewPool(cfg PoolConfig, logger *zap.Logger) (*Pool, error) {
	if strings.TrimSpace(cfg.BinaryPath) == "" {
		return nil, fmt.Errorf("uci binary path is empty")
	}
	if _, err := os.Stat(cfg.BinaryPath); err != nil {
		return nil, fmt.Errorf("uci binary: %w", err)
	}
	if err := validateOptions(cfg.Options); err != nil {
		return nil, err
	}
	if _, err := buildGoTokens(cfg.Limits); err != nil {
		return nil, err
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		cfg:    cfg,
		logger: logger,
		idle:   make(chan *Session, cfg.Capacity),
	}, nil
}

// BestMove searches fen with the pool's limits and returns the engine's move
// in coordinate notation.
func (p *Pool) BestMove(ctx context.Context, fen string) (string, error) {
	s, err := p.Acquire(ctx)
	if err != nil {
		return "", err
	}
	resp, err := s.Search(ctx, SearchRequest{FEN: fen, Limits: p.cfg.Limits})
	if err != nil && !errors.Is(err, ErrNoBestMove) {
		p.Release(s, err)
		return "", err
	}
	p.Release(s, nil)
	return resp.BestMove, err
}

func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	for {
		select {
		case s := <-p.idle:
			if err := s.EnsureReady(ctx); err != nil {
				p.logger.Warn("discarding unhealthy uci session", zap.Error(err))
				p.discard(s)
				continue
			}
			return s, nil
		default:
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		if p.total < p.cfg.Capacity {
			p.total++
			p.mu.Unlock()
			s, err := NewSession(ctx, p.cfg.BinaryPath, p.cfg.Options, p.logger)
			if err != nil {
				p.mu.Lock()
				p.total--
				p.mu.Unlock()
				return nil, err
			}
			return s, nil
		}
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case s := <-p.idle:
			if err := s.EnsureReady(ctx); err != nil {
				p.discard(s)
				continue
			}
			return s, nil
		}
	}
}

// Release returns s to the pool, or kills it when the search that used it
// failed.
func (p *Pool) Release(s *Session, searchErr error) {
	if s == nil {
		return
	}
	if searchErr != nil {
		p.discard(s)
		return
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		p.discard(s)
		return
	}
	select {
	case p.idle <- s:
	default:
		p.discard(s)
	}
}

func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	for {
		select {
		case s := <-p.idle:
			p.discard(s)
		default:
			return nil
		}
	}
}

func (p *Pool) discard(s *Session) {
	_ = s.Close()
	p.mu.Lock()
	p.total--
	p.mu.Unlock()
}
