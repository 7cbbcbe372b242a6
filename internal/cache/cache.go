// Package cache stores finished root search results so that repeated
// queries for the same position and settings skip the search. It is never
// consulted inside the recursion.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/park285/Cheese-chess-agent/internal/engine"
)

const keyPrefix = "agent:result:"

// Entry is a cached root result. Move is in coordinate notation.
type Entry struct {
	Move  string  `json:"move"`
	Score float64 `json:"-"`
}

type wireEntry struct {
	Move  string `json:"move"`
	Score string `json:"score"`
}

// MarshalJSON keeps infinite mate scores, which encoding/json rejects.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEntry{Move: e.Move, Score: strconv.FormatFloat(e.Score, 'g', -1, 64)})
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var w wireEntry
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	score, err := strconv.ParseFloat(w.Score, 64)
	if err != nil {
		return fmt.Errorf("cache entry score %q: %w", w.Score, err)
	}
	e.Move = w.Move
	e.Score = score
	return nil
}

type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, key string, e Entry) error
	Close() error
}

// Key identifies a search by position, depth and every option that can
// change its result.
func Key(fen string, depth int, opts engine.Options) string {
	var sb strings.Builder
	sb.WriteString(keyPrefix)
	sb.WriteString(strings.Join(strings.Fields(fen), " "))
	fmt.Fprintf(&sb, "|d%d|o%s", depth, fingerprint(opts))
	return sb.String()
}

func fingerprint(o engine.Options) string {
	bit := func(b bool) byte {
		if b {
			return '1'
		}
		return '0'
	}
	return fmt.Sprintf("%c%c%c%c%d",
		bit(o.MoveOrdering), bit(o.Quiescence), bit(o.QuiescenceChecks), bit(o.Eval.MopUp), o.MaxQuiescencePly)
}
