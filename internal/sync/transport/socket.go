package transport

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// Socket minimal conn surface the manager needs, satisfied by
// *websocket.Conn and by fakes in tests
type Socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	Close() error
}

// Dialer opens a Socket to the realtime endpoint
type Dialer interface {
	Dial(ctx context.Context, url string) (Socket, error)
}

// websocketDialer Dialer on gorilla websocket
type websocketDialer struct {
	dialer *websocket.Dialer
}

// NewWebsocketDialer create the production Dialer
func NewWebsocketDialer() Dialer {
	return &websocketDialer{
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

func (w *websocketDialer) Dial(ctx context.Context, url string) (Socket, error) {
	conn, _, err := w.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
