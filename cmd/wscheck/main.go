package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-chess-agent/internal/obslog"
	"github.com/park285/Cheese-chess-agent/internal/wsserve"
	"github.com/park285/Cheese-chess-agent/pkg/agentdto"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.Named("wscheck")
	defer func() { _ = logger.Sync() }()

	wsURL := strings.TrimSpace(os.Getenv("AGENT_WS_URL"))
	if wsURL == "" {
		wsURL = "ws://localhost:8088/ws"
	}
	fen := strings.TrimSpace(os.Getenv("AGENT_WS_FEN"))
	if len(os.Args) > 1 {
		fen = strings.Join(os.Args[1:], " ")
	}
	if fen == "" {
		fen = "startpos"
	}
	token := os.Getenv("AGENT_WS_TOKEN")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger.Debug("connecting", zap.String("url", wsURL), zap.String("fen", fen), zap.Bool("auth", token != ""))

	client, err := wsserve.Dial(ctx, wsURL, func() map[string]string {
		m := map[string]string{}
		if token != "" {
			m["Authorization"] = "Bearer " + token
		}
		return m
	})
	if err != nil {
		log.Fatalf("WS connect error: %v", err)
	}
	defer func() { _ = client.Close() }()

	start := time.Now()
	resp, err := client.Move(ctx, agentdto.MoveRequest{ID: "wscheck", FEN: fen})
	if err != nil {
		log.Fatalf("WS move error: %v", err)
	}
	logger.Debug("response", zap.String("id", resp.ID), zap.Int64("duration_ms", resp.DurationMS))
	if resp.Error != nil {
		log.Fatalf("service error code=%s message=%s retryable=%v", resp.Error.Code, resp.Error.Message, resp.Error.Retryable)
	}
	fmt.Printf("move=%s san=%s score=%s depth=%d nodes=%d max_ply=%d cached=%v rtt=%s\n",
		resp.Move, resp.SAN, resp.Score, resp.Depth, resp.Nodes, resp.MaxPly, resp.Cached, time.Since(start).Round(time.Millisecond))
}
