package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/park285/Cheese-chess-agent/internal/engine"
	"github.com/park285/Cheese-chess-agent/internal/obslog"
)

type SearchConfig struct {
	Depth            int  `yaml:"depth"`
	MoveOrdering     bool `yaml:"move_ordering"`
	Quiescence       bool `yaml:"quiescence"`
	QuiescenceChecks bool `yaml:"quiescence_checks"`
	MaxQuiescencePly int  `yaml:"max_quiescence_ply"`
	MopUp            bool `yaml:"mop_up"`
	Debug            bool `yaml:"debug"`
	// MaxRequestDepth caps the depth a remote caller may ask for.
	MaxRequestDepth int `yaml:"max_request_depth"`
}

// EngineOptions converts the search settings for the engine package.
func (s SearchConfig) EngineOptions() engine.Options {
	return engine.Options{
		MoveOrdering:     s.MoveOrdering,
		Quiescence:       s.Quiescence,
		QuiescenceChecks: s.QuiescenceChecks,
		MaxQuiescencePly: s.MaxQuiescencePly,
		Eval:             engine.EvalOptions{MopUp: s.MopUp},
	}
}

type CacheConfig struct {
	RedisURL string `yaml:"redis_url"`
	Dir      string `yaml:"dir"` // badger directory
	TTLSec   int    `yaml:"ttl_sec"`
}

func (c CacheConfig) TTL() time.Duration { return time.Duration(c.TTLSec) * time.Second }

type LookupConfig struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMS int    `yaml:"timeout_ms"`
	Retries   int    `yaml:"retries"`
}

func (l LookupConfig) Timeout() time.Duration { return time.Duration(l.TimeoutMS) * time.Millisecond }

// UCIConfig points at an external engine (e.g. Stockfish) used as the
// "uci" opponent.
type UCIConfig struct {
	Path       string `yaml:"path"`
	Depth      int    `yaml:"depth"`
	MoveTimeMS int    `yaml:"movetime_ms"`
	Skill      int    `yaml:"skill"`
	Elo        int    `yaml:"elo"`
	Threads    int    `yaml:"threads"`
	HashMB     int    `yaml:"hash_mb"`
}

type MatchConfig struct {
	StartFEN      string `yaml:"start_fen"`
	Opponent      string `yaml:"opponent"` // random, remote, agent or uci
	OpponentDepth int    `yaml:"opponent_depth"`
	AgentColor    string `yaml:"agent_color"` // white or black
	MaxPlies      int    `yaml:"max_plies"`
	Games         int    `yaml:"games"`
	Seed          int64  `yaml:"seed"`
	SnapshotPath  string `yaml:"snapshot_path"`
}

type AppConfig struct {
	Log    obslog.Options `yaml:"log"`
	Search SearchConfig   `yaml:"search"`
	Cache  CacheConfig    `yaml:"cache"`
	Lookup LookupConfig   `yaml:"lookup"`
	Match  MatchConfig    `yaml:"match"`
	UCI    UCIConfig      `yaml:"uci"`

	DatabaseURL        string `yaml:"database_url"`
	ListenAddr         string `yaml:"listen_addr"`
	MaxConcurrentGames int    `yaml:"max_concurrent_games"`

	// PieceDir holds optional piece SVGs (wK.svg, bQ.svg, ...) for snapshots.
	PieceDir string `yaml:"piece_dir"`
}

func Default() *AppConfig {
	return &AppConfig{
		Log: obslog.DefaultOptions(),
		Search: SearchConfig{
			Depth:            4,
			MoveOrdering:     true,
			Quiescence:       true,
			MaxQuiescencePly: engine.DefaultMaxQuiescencePly,
			MopUp:            true,
			MaxRequestDepth:  6,
		},
		Cache: CacheConfig{TTLSec: 86400},
		Lookup: LookupConfig{
			BaseURL:   "https://www.chessdb.cn/cdb.php",
			TimeoutMS: 3000,
			Retries:   1,
		},
		Match: MatchConfig{
			Opponent:      "random",
			OpponentDepth: 2,
			AgentColor:    "white",
			MaxPlies:      300,
			Games:         1,
		},
		UCI:                UCIConfig{MoveTimeMS: 100, Threads: 1, HashMB: 16},
		ListenAddr:         ":8088",
		MaxConcurrentGames: 4,
	}
}

// Load applies defaults, then the YAML file named by AGENT_CONFIG_FILE,
// then environment variables, and validates the result.
func Load() (*AppConfig, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("AGENT_CONFIG_FILE")); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *AppConfig) applyEnv() {
	c.Log = obslog.OptionsFromEnv(c.Log)

	envInt("AGENT_DEPTH", &c.Search.Depth)
	envBool("AGENT_MOVE_ORDERING", &c.Search.MoveOrdering)
	envBool("AGENT_QUIESCENCE", &c.Search.Quiescence)
	envBool("AGENT_QUIESCENCE_CHECKS", &c.Search.QuiescenceChecks)
	envInt("AGENT_MAX_QUIESCENCE_PLY", &c.Search.MaxQuiescencePly)
	envBool("AGENT_MOP_UP", &c.Search.MopUp)
	envBool("AGENT_DEBUG", &c.Search.Debug)
	envInt("AGENT_MAX_REQUEST_DEPTH", &c.Search.MaxRequestDepth)

	envString("REDIS_URL", &c.Cache.RedisURL)
	envString("AGENT_CACHE_DIR", &c.Cache.Dir)
	envInt("AGENT_CACHE_TTL", &c.Cache.TTLSec)

	envString("LOOKUP_BASE_URL", &c.Lookup.BaseURL)
	envInt("LOOKUP_TIMEOUT_MS", &c.Lookup.TimeoutMS)
	envInt("LOOKUP_RETRIES", &c.Lookup.Retries)

	envString("MATCH_START_FEN", &c.Match.StartFEN)
	envString("MATCH_OPPONENT", &c.Match.Opponent)
	envInt("MATCH_OPPONENT_DEPTH", &c.Match.OpponentDepth)
	envString("MATCH_AGENT_COLOR", &c.Match.AgentColor)
	envInt("MATCH_MAX_PLIES", &c.Match.MaxPlies)
	envInt("MATCH_GAMES", &c.Match.Games)
	if v := strings.TrimSpace(os.Getenv("MATCH_SEED")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Match.Seed = n
		}
	}
	envString("MATCH_SNAPSHOT_PATH", &c.Match.SnapshotPath)

	envString("UCI_ENGINE_PATH", &c.UCI.Path)
	envInt("UCI_DEPTH", &c.UCI.Depth)
	envInt("UCI_MOVETIME_MS", &c.UCI.MoveTimeMS)
	envInt("UCI_SKILL", &c.UCI.Skill)
	envInt("UCI_ELO", &c.UCI.Elo)

	envString("DATABASE_URL", &c.DatabaseURL)
	envString("LISTEN_ADDR", &c.ListenAddr)
	envInt("MAX_CONCURRENT_GAMES", &c.MaxConcurrentGames)
	envString("AGENT_PIECE_DIR", &c.PieceDir)
}

func (c *AppConfig) Validate() error {
	if c.Search.Depth < 1 {
		return errors.New("search depth must be at least 1")
	}
	if c.Search.MaxQuiescencePly < 0 {
		return errors.New("max quiescence ply must not be negative")
	}
	if c.Search.QuiescenceChecks && c.Search.MaxQuiescencePly == 0 {
		return errors.New("quiescence checks need a positive max quiescence ply")
	}
	if c.Search.MaxRequestDepth < 1 {
		c.Search.MaxRequestDepth = c.Search.Depth
	}
	switch strings.ToLower(c.Match.Opponent) {
	case "random", "remote", "agent":
	case "uci":
		if strings.TrimSpace(c.UCI.Path) == "" {
			return errors.New("uci opponent needs an engine path")
		}
		if c.UCI.Depth <= 0 && c.UCI.MoveTimeMS <= 0 {
			return errors.New("uci opponent needs a depth or movetime limit")
		}
	default:
		return fmt.Errorf("unknown opponent %q", c.Match.Opponent)
	}
	switch strings.ToLower(c.Match.AgentColor) {
	case "white", "black":
	default:
		return fmt.Errorf("unknown agent color %q", c.Match.AgentColor)
	}
	if c.Match.Games < 1 {
		c.Match.Games = 1
	}
	if c.MaxConcurrentGames < 1 {
		c.MaxConcurrentGames = 1
	}
	return nil
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
