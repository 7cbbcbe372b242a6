package wsserve

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/Cheese-chess-agent/pkg/agentdto"
)

// HeaderProvider allows injecting headers at handshake.
type HeaderProvider func() map[string]string

// Client sends MoveRequests over one connection, one at a time.
type Client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func Dial(ctx context.Context, wsURL string, headers HeaderProvider) (*Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      buildHeaders(headers),
	})
	if err != nil {
		return nil, err
	}
	// board images exceed the default read limit
	conn.SetReadLimit(8 << 20)
	return &Client{conn: conn}, nil
}

func (c *Client) Move(ctx context.Context, req agentdto.MoveRequest) (agentdto.MoveResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := wsjson.Write(ctx, c.conn, req); err != nil {
		return agentdto.MoveResponse{}, err
	}
	var resp agentdto.MoveResponse
	if err := wsjson.Read(ctx, c.conn, &resp); err != nil {
		return agentdto.MoveResponse{}, err
	}
	return resp, nil
}

func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "close")
}

func buildHeaders(h HeaderProvider) http.Header {
	hdr := http.Header{}
	if h == nil {
		return hdr
	}
	for k, v := range h() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}
