package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"celestial/internal/body"
)

// wsMessage is sent for every request a client makes. Type is "surface" or
// "error".
type wsMessage struct {
	Type    string          `json:"type"`
	Request Request         `json:"request"`
	Error   string          `json:"error,omitempty"`
	Surface *SurfaceMessage `json:"surface,omitempty"`
}

type wsRequest struct {
	Kind   string  `json:"kind"`
	Seed   *int64  `json:"seed,omitempty"`
	Radius float64 `json:"radius,omitempty"`
}

// wsConn serialises writes; requests are generated concurrently.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(msg wsMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := &wsConn{conn: conn}
	// A client may have at most as many requests in flight as the server has
	// generation slots; further reads wait.
	inFlight := make(chan struct{}, cap(s.generations))
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		var in wsRequest
		if err := conn.ReadJSON(&in); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Printf("websocket read: %v", err)
			}
			cancel()
			return
		}

		req := Request{Kind: body.Kind(in.Kind), Seed: in.Seed, Radius: in.Radius}
		if in.Radius < 0 {
			if err := client.send(wsMessage{Type: "error", Request: req, Error: "invalid radius"}); err != nil {
				cancel()
				return
			}
			continue
		}

		select {
		case inFlight <- struct{}{}:
		case <-ctx.Done():
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-inFlight }()
			surf, cached, err := s.Surface(ctx, req)
			msg := wsMessage{Type: "surface", Request: req}
			if err != nil {
				msg.Type, msg.Error = "error", err.Error()
			} else {
				msg.Surface = &SurfaceMessage{Surface: surf, Cached: cached, Texture: surf.TextureBytes}
			}
			if err := client.send(msg); err != nil {
				s.logger.Printf("websocket write: %v", err)
			}
		}()
	}
}
