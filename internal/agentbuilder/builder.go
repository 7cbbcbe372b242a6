package agentbuilder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-chess-agent/internal/agent"
	"github.com/park285/Cheese-chess-agent/internal/cache"
	"github.com/park285/Cheese-chess-agent/internal/config"
	"github.com/park285/Cheese-chess-agent/internal/engine"
	"github.com/park285/Cheese-chess-agent/internal/lookup"
	"github.com/park285/Cheese-chess-agent/internal/match"
	"github.com/park285/Cheese-chess-agent/internal/opponent"
	"github.com/park285/Cheese-chess-agent/internal/render"
	"github.com/park285/Cheese-chess-agent/internal/repository"
	"github.com/park285/Cheese-chess-agent/internal/uci"
	"github.com/park285/Cheese-chess-agent/internal/wsserve"
)

type Deps struct {
	Config   *config.AppConfig
	Cache    cache.Store // nil when neither Redis nor a cache dir is configured
	Repo     repository.Repository
	Lookup   *lookup.Client
	Renderer *render.Renderer
	UCI      *uci.Pool // only for the "uci" opponent
	Logger   *zap.Logger
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{Config: cfg, Logger: logger}

	// Cache (Redis preferred, badger directory otherwise)
	switch {
	case strings.TrimSpace(cfg.Cache.RedisURL) != "":
		store, err := cache.OpenRedis(ctx, cfg.Cache.RedisURL, cfg.Cache.TTL())
		if err != nil {
			return nil, fmt.Errorf("init redis cache: %w", err)
		}
		d.Cache = store
	case strings.TrimSpace(cfg.Cache.Dir) != "":
		store, err := cache.OpenBadger(cfg.Cache.Dir, cfg.Cache.TTL())
		if err != nil {
			return nil, fmt.Errorf("init badger cache: %w", err)
		}
		d.Cache = store
	}

	// Repository (in-memory without DATABASE_URL)
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		repo, err := repository.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("init repository: %w", err)
		}
		d.Repo = repo
	} else {
		logger.Info("DATABASE_URL not set, keeping match records in memory")
		d.Repo = repository.NewMemory()
	}

	d.Lookup = lookup.NewClient(cfg.Lookup.BaseURL,
		lookup.WithTimeout(cfg.Lookup.Timeout()),
		lookup.WithRetry(cfg.Lookup.Retries+1),
		lookup.WithHeaderProvider(func() map[string]string {
			return map[string]string{"User-Agent": "chess-agent"}
		}),
	)
	d.Renderer = render.NewRenderer(cfg.PieceDir)

	if strings.EqualFold(cfg.Match.Opponent, "uci") {
		if err := d.initUCI(); err != nil {
			_ = d.Close()
			return nil, err
		}
	}
	return d, nil
}

func (d *Deps) initUCI() error {
	if d.UCI != nil {
		return nil
	}
	u := d.Config.UCI
	pool, err := uci.NewPool(uci.PoolConfig{
		BinaryPath: u.Path,
		Capacity:   d.Config.MaxConcurrentGames,
		Options:    uci.Options{Threads: u.Threads, HashMB: u.HashMB, SkillLevel: u.Skill, Elo: u.Elo},
		Limits:     uci.Limits{Depth: u.Depth, MoveTimeMillis: u.MoveTimeMS},
	}, d.Logger.Named("uci"))
	if err != nil {
		return fmt.Errorf("init uci pool: %w", err)
	}
	d.UCI = pool
	return nil
}

func (d *Deps) AgentConfig() agent.Config {
	return agent.Config{
		Depth:  d.Config.Search.Depth,
		Search: d.Config.Search.EngineOptions(),
		Debug:  d.Config.Search.Debug,
	}
}

func (d *Deps) AgentOptions() []agent.Option {
	opts := []agent.Option{agent.WithLogger(d.Logger.Named("agent"))}
	if d.Cache != nil {
		opts = append(opts, agent.WithCache(d.Cache))
	}
	return opts
}

// Opponent builds the configured opponent for one game. Random seeds are
// offset by the game number so parallel games differ. The uci pool is
// started on first use, so call Opponent once before handing it to
// concurrent games.
func (d *Deps) Opponent(game int) (opponent.Player, error) {
	mc := d.Config.Match
	random := opponent.NewRandomPlayer(mc.Seed + int64(game))
	switch strings.ToLower(mc.Opponent) {
	case "random":
		return random, nil
	case "remote":
		return opponent.NewRemotePlayer(d.Lookup, random, d.Config.Lookup.Timeout(), d.Logger.Named("remote")), nil
	case "agent":
		cfg := agent.Config{Depth: mc.OpponentDepth, Search: d.Config.Search.EngineOptions()}
		if cfg.Depth < 1 {
			cfg.Depth = 1
		}
		return opponent.NewAgentPlayer(cfg), nil
	case "uci":
		if err := d.initUCI(); err != nil {
			return nil, err
		}
		return opponent.NewUCIPlayer(d.UCI, 0, d.Logger.Named("uci")), nil
	}
	return nil, fmt.Errorf("unknown opponent %q", mc.Opponent)
}

func (d *Deps) MatchConfig() match.Config {
	color := engine.White
	if strings.EqualFold(d.Config.Match.AgentColor, "black") {
		color = engine.Black
	}
	return match.Config{
		StartFEN:   d.Config.Match.StartFEN,
		AgentColor: color,
		MaxPlies:   d.Config.Match.MaxPlies,
		Agent:      d.AgentConfig(),
		AgentOpts:  d.AgentOptions(),
		Logger:     d.Logger.Named("match"),
	}
}

func (d *Deps) Server() *wsserve.Server {
	opts := []wsserve.Option{
		wsserve.WithRenderer(d.Renderer),
		wsserve.WithLogger(d.Logger.Named("ws")),
	}
	if d.Cache != nil {
		opts = append(opts, wsserve.WithCache(d.Cache))
	}
	return wsserve.New(wsserve.Config{
		DefaultDepth:   d.Config.Search.Depth,
		MaxDepth:       d.Config.Search.MaxRequestDepth,
		Search:         d.Config.Search.EngineOptions(),
		MaxConcurrent:  d.Config.MaxConcurrentGames,
		RequestTimeout: 2 * time.Minute,
	}, opts...)
}

func (d *Deps) Close() error {
	var errs []error
	if d.Cache != nil {
		errs = append(errs, d.Cache.Close())
	}
	if d.Repo != nil {
		errs = append(errs, d.Repo.Close())
	}
	if d.UCI != nil {
		errs = append(errs, d.UCI.Close())
	}
	return errors.Join(errs...)
}
