package agentdto

// MoveRequest asks the service for the agent's move in FEN, after playing
// Moves (UCI or SAN) from it.
type MoveRequest struct {
	ID    string   `json:"id"`
	FEN   string   `json:"fen"`
	Moves []string `json:"moves,omitempty"`
	// Depth 0 means the server default.
	Depth int  `json:"depth,omitempty"`
	Image bool `json:"image,omitempty"`
}

type MoveResponse struct {
	ID   string `json:"id"`
	Move string `json:"move,omitempty"`
	SAN  string `json:"san,omitempty"`
	// Score is from the mover's point of view, formatted with
	// strconv.FormatFloat so mate scores read "+Inf" and "-Inf".
	Score      string `json:"score,omitempty"`
	Depth      int    `json:"depth,omitempty"`
	Nodes      int64  `json:"nodes"`
	MaxPly     int    `json:"max_ply"`
	Cached     bool   `json:"cached,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	// FEN is the position after the agent's move.
	FEN   string `json:"fen,omitempty"`
	Image []byte `json:"image,omitempty"`
	Error *Error `json:"error,omitempty"`
}
