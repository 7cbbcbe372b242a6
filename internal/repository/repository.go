// Package repository persists finished match records.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/Cheese-chess-agent/internal/domain"
)

var ErrDuplicateMatch = errors.New("match already exists")

type Repository interface {
	SaveMatch(ctx context.Context, m *domain.MatchRecord) error
	// GetMatch returns nil, nil when no match has the id.
	GetMatch(ctx context.Context, id string) (*domain.MatchRecord, error)
	RecentMatches(ctx context.Context, limit int) ([]*domain.MatchRecord, error)
	Close() error
}

const Schema = `
CREATE TABLE IF NOT EXISTS agent_matches (
	match_id       UUID PRIMARY KEY,
	agent_color    TEXT NOT NULL,
	opponent       TEXT NOT NULL,
	depth          INTEGER NOT NULL,
	start_fen      TEXT NOT NULL,
	final_fen      TEXT NOT NULL,
	result         TEXT NOT NULL,
	result_method  TEXT NOT NULL,
	moves_uci      JSONB NOT NULL,
	moves_san      JSONB NOT NULL,
	plies          JSONB NOT NULL,
	pgn            TEXT NOT NULL,
	started_at     TIMESTAMPTZ NOT NULL,
	ended_at       TIMESTAMPTZ NOT NULL,
	duration_ms    BIGINT NOT NULL,
	agent_nodes    BIGINT NOT NULL,
	agent_time_ms  BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS agent_matches_ended_at_idx ON agent_matches (ended_at DESC);`

type postgres struct {
	db *sql.DB
}

// Open connects to Postgres and creates the table when missing.
func Open(ctx context.Context, databaseURL string) (Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(pctx, Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return NewPostgres(db), nil
}

func NewPostgres(db *sql.DB) Repository {
	return &postgres{db: db}
}

func (r *postgres) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *postgres) SaveMatch(ctx context.Context, m *domain.MatchRecord) error {
	if m == nil {
		return fmt.Errorf("nil match payload")
	}
	movesUCI, err := json.Marshal(nonNil(m.MovesUCI))
	if err != nil {
		return fmt.Errorf("marshal moves_uci: %w", err)
	}
	movesSAN, err := json.Marshal(nonNil(m.MovesSAN))
	if err != nil {
		return fmt.Errorf("marshal moves_san: %w", err)
	}
	plies := m.Plies
	if plies == nil {
		plies = []domain.Ply{}
	}
	pliesJSON, err := json.Marshal(plies)
	if err != nil {
		return fmt.Errorf("marshal plies: %w", err)
	}

	const query = `
		INSERT INTO agent_matches (
			match_id,
			agent_color,
			opponent,
			depth,
			start_fen,
			final_fen,
			result,
			result_method,
			moves_uci,
			moves_san,
			plies,
			pgn,
			started_at,
			ended_at,
			duration_ms,
			agent_nodes,
			agent_time_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10::jsonb, $11::jsonb, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (match_id) DO NOTHING`

	res, err := r.db.ExecContext(
		ctx,
		query,
		m.ID,
		m.AgentColor,
		m.Opponent,
		m.Depth,
		m.StartFEN,
		m.FinalFEN,
		m.Result,
		m.ResultMethod,
		movesUCI,
		movesSAN,
		pliesJSON,
		m.PGN(),
		m.StartedAt,
		m.EndedAt,
		m.Duration.Milliseconds(),
		m.AgentNodes,
		m.AgentTime.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicateMatch
	}
	return nil
}

const selectColumns = `
			match_id,
			agent_color,
			opponent,
			depth,
			start_fen,
			final_fen,
			result,
			result_method,
			moves_uci,
			moves_san,
			plies,
			started_at,
			ended_at,
			duration_ms,
			agent_nodes,
			agent_time_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (*domain.MatchRecord, error) {
	var (
		m            domain.MatchRecord
		movesUCIJSON []byte
		movesSANJSON []byte
		pliesJSON    []byte
		durationMS   sql.NullInt64
		agentTimeMS  sql.NullInt64
	)
	if err := row.Scan(
		&m.ID,
		&m.AgentColor,
		&m.Opponent,
		&m.Depth,
		&m.StartFEN,
		&m.FinalFEN,
		&m.Result,
		&m.ResultMethod,
		&movesUCIJSON,
		&movesSANJSON,
		&pliesJSON,
		&m.StartedAt,
		&m.EndedAt,
		&durationMS,
		&m.AgentNodes,
		&agentTimeMS,
	); err != nil {
		return nil, err
	}
	if durationMS.Valid {
		m.Duration = time.Duration(durationMS.Int64) * time.Millisecond
	}
	if agentTimeMS.Valid {
		m.AgentTime = time.Duration(agentTimeMS.Int64) * time.Millisecond
	}
	if err := json.Unmarshal(movesUCIJSON, &m.MovesUCI); err != nil {
		return nil, fmt.Errorf("unmarshal moves_uci: %w", err)
	}
	if err := json.Unmarshal(movesSANJSON, &m.MovesSAN); err != nil {
		return nil, fmt.Errorf("unmarshal moves_san: %w", err)
	}
	if err := json.Unmarshal(pliesJSON, &m.Plies); err != nil {
		return nil, fmt.Errorf("unmarshal plies: %w", err)
	}
	return &m, nil
}

func (r *postgres) GetMatch(ctx context.Context, id string) (*domain.MatchRecord, error) {
	query := `SELECT` + selectColumns + `
		FROM agent_matches
		WHERE match_id = $1`
	m, err := scanMatch(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select match: %w", err)
	}
	return m, nil
}

func (r *postgres) RecentMatches(ctx context.Context, limit int) ([]*domain.MatchRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT` + selectColumns + `
		FROM agent_matches
		ORDER BY ended_at DESC
		LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select matches: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.MatchRecord, 0, limit)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
