package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"testing"
)

// The test binary doubles as a minimal UCI engine when fakeEngineEnv is set.
const (
	fakeEngineEnv = "UCI_FAKE_ENGINE"
	fakeMoveEnv   = "UCI_FAKE_MOVE"
)

func TestMain(m *testing.M) {
	if os.Getenv(fakeEngineEnv) == "1" {
		runFakeEngine()
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func runFakeEngine() {
	move := os.Getenv(fakeMoveEnv)
	if move == "" {
		move = "e2e4"
	}
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "uci":
			fmt.Println("id name fake")
			fmt.Println("uciok")
		case line == "isready":
			fmt.Println("readyok")
		case strings.HasPrefix(line, "go"):
			fmt.Println("info depth 1 score cp 31 nodes 20 pv e2e4 e7e5")
			fmt.Println("bestmove " + move)
		case line == "quit":
			return
		}
	}
}

func fakeEngine(t *testing.T, move string) string {
	t.Helper()
	t.Setenv(fakeEngineEnv, "1")
	t.Setenv(fakeMoveEnv, move)
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}
	return exe
}

func TestParseInfo(t *testing.T) {
	info, ok := parseInfo("info depth 12 seldepth 15 score cp -42 nodes 1000 pv g1f3 d7d5")
	if !ok || info.EvalCP != -42 || info.Mate {
		t.Fatalf("info = %+v, ok = %v", info, ok)
	}
	if !reflect.DeepEqual(info.Principal, []string{"g1f3", "d7d5"}) {
		t.Fatalf("pv = %v", info.Principal)
	}

	mate, ok := parseInfo("info depth 5 score mate -3 pv h7h8")
	if !ok || !mate.Mate || mate.EvalCP != -mateValue {
		t.Fatalf("mate info = %+v", mate)
	}

	if _, ok := parseInfo("info string NNUE enabled"); ok {
		t.Fatalf("line without pv should be skipped")
	}
}

func TestBuildCommands(t *testing.T) {
	if _, err := buildGoTokens(Limits{}); err == nil {
		t.Fatalf("expected error without limits")
	}
	got, err := buildGoTokens(Limits{Depth: 8, MoveTimeMillis: 100})
	if err != nil {
		t.Fatalf("buildGoTokens: %v", err)
	}
	if strings.Join(got, " ") != "go depth 8 movetime 100" {
		t.Fatalf("go = %v", got)
	}
	if buildPositionCommand("") != "position startpos\n" {
		t.Fatalf("empty fen should use startpos")
	}
	if buildPositionCommand(" 8/8/8/8/8/8/8/K1k5 w - - 0 1 ") != "position fen 8/8/8/8/8/8/8/K1k5 w - - 0 1\n" {
		t.Fatalf("fen position not trimmed")
	}
}

func TestValidateOptions(t *testing.T) {
	bad := []Options{{SkillLevel: 21}, {SkillLevel: -1}, {HashMB: -1}, {Elo: -5}}
	for _, opt := range bad {
		if err := validateOptions(opt); err == nil {
			t.Fatalf("options %+v should be rejected", opt)
		}
	}
	if err := validateOptions(Options{SkillLevel: 5, HashMB: 16, Elo: 1500}); err != nil {
		t.Fatalf("validateOptions: %v", err)
	}
}

func TestSessionSearch(t *testing.T) {
	bin := fakeEngine(t, "e2e4")
	ctx := context.Background()
	s, err := NewSession(ctx, bin, Options{SkillLevel: 3, Elo: 1400}, nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer s.Close()

	if err := s.NewGame(ctx); err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	resp, err := s.Search(ctx, SearchRequest{Limits: Limits{Depth: 1}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.BestMove != "e2e4" || resp.Info.EvalCP != 31 || len(resp.Info.Principal) != 2 {
		t.Fatalf("response = %+v", resp)
	}
}

func TestPoolReusesSessions(t *testing.T) {
	bin := fakeEngine(t, "g1f3")
	p, err := NewPool(PoolConfig{BinaryPath: bin, Capacity: 2, Limits: Limits{Depth: 1}}, nil)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer p.Close()

	for i := 0; i < 3; i++ {
		mv, err := p.BestMove(context.Background(), "")
		if err != nil || mv != "g1f3" {
			t.Fatalf("BestMove = %q, %v", mv, err)
		}
	}
	p.mu.Lock()
	total := p.total
	p.mu.Unlock()
	if total != 1 {
		t.Fatalf("sessions = %d, want 1", total)
	}
}

func TestPoolNoBestMove(t *testing.T) {
	bin := fakeEngine(t, "(none)")
	p, err := NewPool(PoolConfig{BinaryPath: bin, Limits: Limits{MoveTimeMillis: 10}}, nil)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer p.Close()
	if _, err := p.BestMove(context.Background(), "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1"); !errors.Is(err, ErrNoBestMove) {
		t.Fatalf("err = %v, want ErrNoBestMove", err)
	}
	if len(p.idle) != 1 {
		t.Fatalf("session should be returned to the pool")
	}
}

func TestPoolErrors(t *testing.T) {
	if _, err := NewPool(PoolConfig{BinaryPath: "/nonexistent/engine", Limits: Limits{Depth: 1}}, nil); err == nil {
		t.Fatalf("expected error for missing binary")
	}
	bin := fakeEngine(t, "e2e4")
	if _, err := NewPool(PoolConfig{BinaryPath: bin}, nil); err == nil {
		t.Fatalf("expected error without limits")
	}
	p, err := NewPool(PoolConfig{BinaryPath: bin, Limits: Limits{Depth: 1}}, nil)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	_ = p.Close()
	if _, err := p.BestMove(context.Background(), ""); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("err = %v, want ErrPoolClosed", err)
	}
}
