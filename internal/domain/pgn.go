package domain

import (
	"fmt"
	"strings"
)

const standardStartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// PGN renders the record as a PGN game with the agent and opponent as
// players.
func (m *MatchRecord) PGN() string {
	if m == nil {
		return ""
	}
	white, black := "agent", m.Opponent
	if m.AgentColor == "black" {
		white, black = m.Opponent, "agent"
	}
	result := m.Result
	if result == "" {
		result = "*"
	}
	date := m.EndedAt
	if date.IsZero() {
		date = m.StartedAt
	}

	var b strings.Builder
	b.WriteString("[Event \"Agent match\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(white)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(black)))
	if fen := strings.TrimSpace(m.StartFEN); fen != "" && fen != standardStartFEN {
		b.WriteString("[SetUp \"1\"]\n")
		b.WriteString(fmt.Sprintf("[FEN \"%s\"]\n", sanitizePGN(fen)))
	}
	if m.ResultMethod != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(m.ResultMethod)))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", result))

	turn, blackFirst := startTurn(m.StartFEN)
	i := 0
	if blackFirst && len(m.MovesSAN) > 0 {
		b.WriteString(fmt.Sprintf("%d... %s ", turn, strings.TrimSpace(m.MovesSAN[0])))
		turn++
		i = 1
	}
	for ; i < len(m.MovesSAN); i += 2 {
		b.WriteString(fmt.Sprintf("%d. %s", turn, strings.TrimSpace(m.MovesSAN[i])))
		if i+1 < len(m.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(m.MovesSAN[i+1]))
		}
		b.WriteString(" ")
		turn++
	}
	b.WriteString(result)
	return b.String()
}

// startTurn reads the full-move number and side to move from a FEN.
func startTurn(fen string) (turn int, blackFirst bool) {
	fields := strings.Fields(fen)
	turn = 1
	if len(fields) >= 2 {
		blackFirst = fields[1] == "b"
	}
	if len(fields) >= 6 {
		if _, err := fmt.Sscanf(fields[5], "%d", &turn); err != nil || turn < 1 {
			turn = 1
		}
	}
	return turn, blackFirst
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
