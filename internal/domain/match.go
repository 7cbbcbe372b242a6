package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Score is a search score. Mate scores are infinite, so it travels as a
// string in JSON.
type Score float64

func (s Score) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatFloat(float64(s), 'g', -1, 64))
}

func (s *Score) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("score %q: %w", raw, err)
	}
	*s = Score(v)
	return nil
}

// Ply is one half-move of a recorded match. Search fields are zero for
// opponent moves.
type Ply struct {
	Number   int           `json:"ply"`
	Side     string        `json:"side"`
	UCI      string        `json:"uci"`
	SAN      string        `json:"san"`
	ByAgent  bool          `json:"by_agent"`
	Score    Score         `json:"score"`
	Nodes    int64         `json:"nodes"`
	MaxPly   int           `json:"max_ply"`
	Cached   bool          `json:"cached,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

type MatchRecord struct {
	ID           string
	AgentColor   string
	Opponent     string
	Depth        int
	StartFEN     string
	FinalFEN     string
	Result       string
	ResultMethod string
	MovesUCI     []string
	MovesSAN     []string
	Plies        []Ply
	StartedAt    time.Time
	EndedAt      time.Time
	Duration     time.Duration
	AgentNodes   int64
	AgentTime    time.Duration
}

// AgentOutcome reads Result from the agent's side: "win", "loss", "draw"
// or "unfinished".
func (m *MatchRecord) AgentOutcome() string {
	switch m.Result {
	case "1/2-1/2":
		return "draw"
	case "1-0":
		if m.AgentColor == "white" {
			return "win"
		}
		return "loss"
	case "0-1":
		if m.AgentColor == "black" {
			return "win"
		}
		return "loss"
	}
	return "unfinished"
}
