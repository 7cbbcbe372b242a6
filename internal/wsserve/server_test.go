package wsserve

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/park285/Cheese-chess-agent/internal/cache"
	"github.com/park285/Cheese-chess-agent/internal/engine"
	"github.com/park285/Cheese-chess-agent/pkg/agentdto"
)

const hangingQueen = "rnbqkb1r/ppp1pppp/5n2/3p4/2QP4/8/PPP1PPPP/RNB1KBNR b KQkq - 0 1"

func startServer(t *testing.T, opts ...Option) *Client {
	t.Helper()
	srv := New(Config{DefaultDepth: 2, MaxDepth: 3, Search: engine.DefaultOptions()}, opts...)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, "ws"+strings.TrimPrefix(hs.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func move(t *testing.T, c *Client, req agentdto.MoveRequest) agentdto.MoveResponse {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	resp, err := c.Move(ctx, req)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if resp.ID != req.ID {
		t.Fatalf("response id = %q, want %q", resp.ID, req.ID)
	}
	return resp
}

func TestServeMove(t *testing.T) {
	c := startServer(t)
	resp := move(t, c, agentdto.MoveRequest{ID: "1", FEN: hangingQueen})
	if resp.Error != nil {
		t.Fatalf("error = %+v", resp.Error)
	}
	if resp.Move != "d5c4" || resp.SAN != "dxc4" || resp.Depth != 2 || resp.Nodes == 0 {
		t.Fatalf("resp = %+v", resp)
	}
	if !strings.Contains(resp.FEN, " w ") {
		t.Fatalf("fen after move = %q", resp.FEN)
	}

	// same connection, next request
	resp = move(t, c, agentdto.MoveRequest{ID: "2", FEN: "startpos", Moves: []string{"e2e4", "e7e5"}, Depth: 1})
	if resp.Error != nil || resp.Move == "" || resp.Depth != 1 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestServeMate(t *testing.T) {
	c := startServer(t)
	resp := move(t, c, agentdto.MoveRequest{ID: "m", FEN: "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1", Image: true})
	if resp.Move != "a1a8" || resp.Score != "+Inf" {
		t.Fatalf("resp = %+v", resp)
	}
	if !bytes.HasPrefix(resp.Image, []byte("\x89PNG")) {
		t.Fatalf("image missing or not png")
	}
}

func TestServeErrors(t *testing.T) {
	c := startServer(t)
	cases := []struct {
		req  agentdto.MoveRequest
		code string
	}{
		{agentdto.MoveRequest{ID: "d", FEN: "startpos", Depth: 9}, agentdto.CodeDepthExceeded},
		{agentdto.MoveRequest{ID: "n", FEN: "startpos", Depth: -1}, agentdto.CodeDepthExceeded},
		{agentdto.MoveRequest{ID: "f", FEN: "not a position"}, agentdto.CodeBadRequest},
		{agentdto.MoveRequest{ID: "i", FEN: "startpos", Moves: []string{"e2e5"}}, agentdto.CodeIllegalMove},
		{agentdto.MoveRequest{ID: "g", FEN: "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1"}, agentdto.CodeGameOver},
	}
	for _, tc := range cases {
		resp := move(t, c, tc.req)
		if resp.Error == nil || resp.Error.Code != tc.code {
			t.Fatalf("%s: error = %+v, want %s", tc.req.ID, resp.Error, tc.code)
		}
		if resp.Move != "" {
			t.Fatalf("%s: move %q returned with error", tc.req.ID, resp.Move)
		}
	}
}

func TestServeUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := cache.NewRedisStore(rdb, time.Hour)
	t.Cleanup(func() { _ = store.Close() })

	c := startServer(t, WithCache(store))
	first := move(t, c, agentdto.MoveRequest{ID: "a", FEN: hangingQueen})
	second := move(t, c, agentdto.MoveRequest{ID: "b", FEN: hangingQueen})
	if first.Cached || !second.Cached {
		t.Fatalf("cached flags = %v, %v", first.Cached, second.Cached)
	}
	if second.Move != first.Move || second.Nodes != 0 {
		t.Fatalf("second = %+v", second)
	}
}

func TestHealthz(t *testing.T) {
	hs := httptest.NewServer(New(Config{}).Handler())
	defer hs.Close()
	res, err := http.Get(hs.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("healthz = %d %q", res.StatusCode, body)
	}
}

func TestListenAndServeStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(Config{}).ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ListenAndServe: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}
