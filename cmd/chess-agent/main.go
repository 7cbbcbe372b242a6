package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/park285/Cheese-chess-agent/internal/agent"
	"github.com/park285/Cheese-chess-agent/internal/agentbuilder"
	appcfg "github.com/park285/Cheese-chess-agent/internal/config"
	"github.com/park285/Cheese-chess-agent/internal/domain"
	"github.com/park285/Cheese-chess-agent/internal/engine"
	"github.com/park285/Cheese-chess-agent/internal/match"
	"github.com/park285/Cheese-chess-agent/internal/obslog"
	"github.com/park285/Cheese-chess-agent/internal/opponent"
	"github.com/park285/Cheese-chess-agent/internal/render"
	"github.com/park285/Cheese-chess-agent/internal/repository"
	"github.com/park285/Cheese-chess-agent/internal/rules"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "play", "serve", "move":
	case "help", "-h", "--help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", cmd, usage)
		os.Exit(2)
	}

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.Init(cfg.Log); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := agentbuilder.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("init error: %v", err)
	}
	defer func() { _ = deps.Close() }()

	switch cmd {
	case "play":
		err = runPlay(ctx, deps, args)
	case "serve":
		err = deps.Server().ListenAndServe(ctx, cfg.ListenAddr)
	case "move":
		err = runMove(ctx, deps, args)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("command failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

const usage = `chess-agent <command> [flags]

  play   play the agent against the configured opponent
  serve  run the WebSocket move service on LISTEN_ADDR
  move   print the agent's move for one position (-fen, -depth)

Settings come from AGENT_CONFIG_FILE and the environment.`

func runPlay(ctx context.Context, deps *agentbuilder.Deps, args []string) error {
	cfg := deps.Config
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	games := fs.Int("games", cfg.Match.Games, "number of independent games")
	opp := fs.String("opponent", cfg.Match.Opponent, "random, remote, agent or uci")
	color := fs.String("color", cfg.Match.AgentColor, "agent colour: white or black")
	snapshot := fs.String("snapshot", cfg.Match.SnapshotPath, "write a PNG of the last game's final position")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.Match.Opponent = strings.ToLower(strings.TrimSpace(*opp))
	cfg.Match.AgentColor = strings.ToLower(strings.TrimSpace(*color))
	if err := cfg.Validate(); err != nil {
		return err
	}

	// every game gets its own opponent; build one up front to surface config errors
	if _, err := deps.Opponent(0); err != nil {
		return err
	}
	records, err := match.RunMany(ctx, deps.MatchConfig(), *games, cfg.MaxConcurrentGames, func(game int) opponent.Player {
		p, _ := deps.Opponent(game)
		return p
	})
	if err != nil {
		return err
	}

	tally := map[string]int{}
	for _, rec := range records {
		tally[rec.AgentOutcome()]++
		if err := deps.Repo.SaveMatch(ctx, rec); err != nil && !errors.Is(err, repository.ErrDuplicateMatch) {
			deps.Logger.Warn("save match failed", zap.String("match_id", rec.ID), zap.Error(err))
		}
		fmt.Printf("%s %s %s (%s) plies=%d agent_nodes=%d\n",
			rec.ID, rec.AgentColor, rec.Result, rec.ResultMethod, len(rec.Plies), rec.AgentNodes)
	}
	fmt.Printf("wins=%d losses=%d draws=%d unfinished=%d\n",
		tally["win"], tally["loss"], tally["draw"], tally["unfinished"])

	if path := strings.TrimSpace(*snapshot); path != "" && len(records) > 0 {
		return writeSnapshot(ctx, deps.Renderer, records[len(records)-1], path)
	}
	return nil
}

func writeSnapshot(ctx context.Context, r *render.Renderer, rec *domain.MatchRecord, path string) error {
	board, err := rules.FromFEN(rec.FinalFEN)
	if err != nil {
		return err
	}
	opts := render.Options{
		Title:  fmt.Sprintf("agent (%s) vs %s", rec.AgentColor, rec.Opponent),
		Status: strings.TrimSpace(rec.Result + " " + rec.ResultMethod),
		Flip:   rec.AgentColor == engine.Black.String(),
	}
	if n := len(rec.MovesUCI); n > 0 {
		if m, err := engine.ParseMove(rec.MovesUCI[n-1]); err == nil {
			opts.LastMove = &m
		}
	}
	png, err := r.RenderPNG(ctx, board, opts)
	if err != nil {
		return fmt.Errorf("render snapshot: %w", err)
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func runMove(ctx context.Context, deps *agentbuilder.Deps, args []string) error {
	fs := flag.NewFlagSet("move", flag.ExitOnError)
	fen := fs.String("fen", rules.StartFEN, "position to move from")
	depth := fs.Int("depth", deps.Config.Search.Depth, "search depth in plies")
	if err := fs.Parse(args); err != nil {
		return err
	}
	board, err := rules.FromFEN(*fen)
	if err != nil {
		return err
	}
	cfg := deps.AgentConfig()
	cfg.Depth = *depth
	a, err := agent.New(board, cfg, deps.AgentOptions()...)
	if err != nil {
		return err
	}
	d, err := a.Decide(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s score=%g nodes=%d max_ply=%d cached=%v took=%s\n",
		d.Move, d.Score, d.Stats.Nodes, d.Stats.MaxPly, d.Cached, d.Duration)
	return nil
}
