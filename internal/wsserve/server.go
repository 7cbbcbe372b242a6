// Package wsserve exposes the agent over a WebSocket: each JSON
// MoveRequest gets one MoveResponse on the same connection.
package wsserve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/Cheese-chess-agent/internal/agent"
	"github.com/park285/Cheese-chess-agent/internal/cache"
	"github.com/park285/Cheese-chess-agent/internal/engine"
	"github.com/park285/Cheese-chess-agent/internal/render"
	"github.com/park285/Cheese-chess-agent/internal/rules"
	"github.com/park285/Cheese-chess-agent/pkg/agentdto"
)

type Config struct {
	DefaultDepth int
	MaxDepth     int
	Search       engine.Options
	// MaxConcurrent bounds searches running at once across connections.
	MaxConcurrent  int
	RequestTimeout time.Duration
}

type Option func(*Server)

func WithCache(s cache.Store) Option {
	return func(srv *Server) { srv.cache = s }
}

func WithRenderer(r *render.Renderer) Option {
	return func(srv *Server) { srv.renderer = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(srv *Server) {
		if l != nil {
			srv.logger = l
		}
	}
}

type Server struct {
	cfg      Config
	cache    cache.Store
	renderer *render.Renderer
	logger   *zap.Logger
	sem      *semaphore.Weighted
}

func New(cfg Config, opts ...Option) *Server {
	if cfg.DefaultDepth <= 0 {
		cfg.DefaultDepth = agent.DefaultDepth
	}
	if cfg.MaxDepth < cfg.DefaultDepth {
		cfg.MaxDepth = cfg.DefaultDepth
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = time.Minute
	}
	s := &Server{
		cfg:      cfg,
		renderer: render.NewRenderer(""),
		logger:   zap.NewNop(),
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.ServeWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- hs.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		s.logger.Warn("ws accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected exit")

	ctx := r.Context()
	for {
		var req agentdto.MoveRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				_ = conn.Close(websocket.StatusNormalClosure, "")
			default:
				s.logger.Debug("ws read ended", zap.Error(err))
			}
			return
		}
		resp := s.Handle(ctx, req)
		if err := wsjson.Write(ctx, conn, resp); err != nil {
			s.logger.Debug("ws write failed", zap.Error(err))
			return
		}
	}
}

// Handle answers one request on its own board and agent.
func (s *Server) Handle(ctx context.Context, req agentdto.MoveRequest) agentdto.MoveResponse {
	resp := agentdto.MoveResponse{ID: req.ID}
	fail := func(code, msg string, retryable bool) agentdto.MoveResponse {
		resp.Error = &agentdto.Error{Code: code, Message: msg, Retryable: retryable}
		return resp
	}

	depth := req.Depth
	if depth == 0 {
		depth = s.cfg.DefaultDepth
	}
	if depth < 1 || depth > s.cfg.MaxDepth {
		return fail(agentdto.CodeDepthExceeded, fmt.Sprintf("depth must be between 1 and %d", s.cfg.MaxDepth), false)
	}
	resp.Depth = depth

	board, err := rules.FromFEN(req.FEN)
	if err != nil {
		return fail(agentdto.CodeBadRequest, err.Error(), false)
	}
	a, err := agent.New(board, agent.Config{Depth: depth, Search: s.cfg.Search},
		agent.WithCache(s.cache), agent.WithLogger(s.logger))
	if err != nil {
		return fail(agentdto.CodeInternal, err.Error(), false)
	}
	for _, mv := range req.Moves {
		if err := a.Apply(mv); err != nil {
			if errors.Is(err, agent.ErrGameOver) {
				return fail(agentdto.CodeGameOver, err.Error(), false)
			}
			return fail(agentdto.CodeIllegalMove, err.Error(), false)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return fail(agentdto.CodeBusy, "no search slot available", true)
	}
	d, err := a.Decide(ctx)
	s.sem.Release(1)
	if err != nil {
		switch {
		case errors.Is(err, agent.ErrGameOver):
			return fail(agentdto.CodeGameOver, err.Error(), false)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return fail(agentdto.CodeBusy, err.Error(), true)
		}
		s.logger.Error("decide failed", zap.String("id", req.ID), zap.Error(err))
		return fail(agentdto.CodeInternal, err.Error(), false)
	}

	san, err := board.SAN(d.Move)
	if err != nil {
		return fail(agentdto.CodeInternal, err.Error(), false)
	}
	if err := a.Apply(d.Move.String()); err != nil {
		return fail(agentdto.CodeInternal, err.Error(), false)
	}

	resp.Move = d.Move.String()
	resp.SAN = san
	resp.Score = strconv.FormatFloat(d.Score, 'g', -1, 64)
	resp.Nodes = d.Stats.Nodes
	resp.MaxPly = d.Stats.MaxPly
	resp.Cached = d.Cached
	resp.DurationMS = d.Duration.Milliseconds()
	resp.FEN = board.FEN()

	if req.Image {
		status := ""
		if result, reason := board.Outcome(); result != "*" {
			status = strings.TrimSpace(result + " " + reason)
		}
		png, err := s.renderer.RenderPNG(ctx, board, render.Options{LastMove: &d.Move, Status: status})
		if err != nil {
			s.logger.Warn("render failed", zap.Error(err))
		} else {
			resp.Image = png
		}
	}

	s.logger.Debug("move served",
		zap.String("id", req.ID),
		zap.String("move", resp.Move),
		zap.String("score", resp.Score),
		zap.Int64("nodes", resp.Nodes),
		zap.Int("depth", depth))
	return resp
}
