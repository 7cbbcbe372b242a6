package repository

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/park285/Cheese-chess-agent/internal/domain"
)

func sampleRecord(ended time.Time) *domain.MatchRecord {
	return &domain.MatchRecord{
		ID:           uuid.NewString(),
		AgentColor:   "white",
		Opponent:     "random",
		Depth:        2,
		StartFEN:     "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1",
		FinalFEN:     "R5k1/5ppp/8/8/8/8/8/6K1 b - - 1 1",
		Result:       "1-0",
		ResultMethod: "checkmate",
		MovesUCI:     []string{"a1a8"},
		MovesSAN:     []string{"Ra8#"},
		Plies: []domain.Ply{{
			Number: 1, Side: "white", UCI: "a1a8", SAN: "Ra8#", ByAgent: true,
			Score: domain.Score(math.Inf(1)), Nodes: 120, MaxPly: 3,
		}},
		StartedAt:  ended.Add(-time.Second),
		EndedAt:    ended,
		Duration:   time.Second,
		AgentNodes: 120,
		AgentTime:  500 * time.Millisecond,
	}
}

func exerciseRepository(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	older := sampleRecord(base.Add(-time.Hour))
	newer := sampleRecord(base)
	for _, r := range []*domain.MatchRecord{older, newer} {
		if err := repo.SaveMatch(ctx, r); err != nil {
			t.Fatalf("SaveMatch: %v", err)
		}
	}
	if err := repo.SaveMatch(ctx, newer); !errors.Is(err, ErrDuplicateMatch) {
		t.Fatalf("duplicate err = %v", err)
	}

	got, err := repo.GetMatch(ctx, older.ID)
	if err != nil || got == nil {
		t.Fatalf("GetMatch = %v, %v", got, err)
	}
	if got.Result != "1-0" || len(got.Plies) != 1 || !math.IsInf(float64(got.Plies[0].Score), 1) {
		t.Fatalf("record = %+v", got)
	}
	if got.Duration != time.Second || got.AgentTime != 500*time.Millisecond {
		t.Fatalf("durations = %v %v", got.Duration, got.AgentTime)
	}

	missing, err := repo.GetMatch(ctx, uuid.NewString())
	if err != nil || missing != nil {
		t.Fatalf("missing = %v, %v", missing, err)
	}

	recent, err := repo.RecentMatches(ctx, 1)
	if err != nil {
		t.Fatalf("RecentMatches: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != newer.ID {
		t.Fatalf("recent = %+v", recent)
	}
}

func TestMemoryRepository(t *testing.T) {
	exerciseRepository(t, NewMemory())
}

func TestMemoryRepositoryCopies(t *testing.T) {
	repo := NewMemory()
	rec := sampleRecord(time.Now())
	if err := repo.SaveMatch(context.Background(), rec); err != nil {
		t.Fatalf("SaveMatch: %v", err)
	}
	rec.MovesUCI[0] = "h1h8"
	got, _ := repo.GetMatch(context.Background(), rec.ID)
	if got.MovesUCI[0] != "a1a8" {
		t.Fatalf("stored record aliased caller slice")
	}
}

// Runs against a real database when AGENT_TEST_DATABASE_URL is set.
func TestPostgresRepository(t *testing.T) {
	url := os.Getenv("AGENT_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("AGENT_TEST_DATABASE_URL not set")
	}
	repo, err := Open(context.Background(), url)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer repo.Close()
	exerciseRepository(t, repo)
}
