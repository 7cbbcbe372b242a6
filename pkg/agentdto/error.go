package agentdto

const (
	CodeBadRequest    = "bad_request"
	CodeIllegalMove   = "illegal_move"
	CodeGameOver      = "game_over"
	CodeDepthExceeded = "depth_exceeded"
	CodeBusy          = "busy"
	CodeInternal      = "internal"
)

type Error struct {
	Code      string `json:"code"`
	Message   string `json:"message,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (e Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "agent service error"
}
