package link

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn adapts a websocket to a byte stream. Each text message is one or
// more lines; a message without a trailing terminator is given one.
type wsConn struct {
	ws      *websocket.Conn
	r       io.Reader
	last    byte
	pending bool
}

func (c *wsConn) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if c.pending {
			c.pending = false
			c.last = '\n'
			p[0] = '\n'
			return 1, nil
		}
		if c.r == nil {
			_, r, err := c.ws.NextReader()
			if err != nil {
				return 0, err
			}
			c.r = r
		}
		n, err := c.r.Read(p)
		if n > 0 {
			c.last = p[n-1]
		}
		if errors.Is(err, io.EOF) {
			c.r = nil
			if c.last != '\n' && c.last != '\r' {
				c.pending = true
			}
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	deadline := time.Now().Add(time.Second)
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.ws.Close()
}

// WebSocketHandler returns an HTTP handler that upgrades the request and
// attaches the websocket as the active connection. A second client is
// refused while one is attached.
func (l *Link) WebSocketHandler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.Connected() {
			http.Error(w, ErrAlreadyAttached.Error(), http.StatusConflict)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			l.log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		conn := &wsConn{ws: ws}
		if err := l.Attach(conn); err != nil {
			l.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket refused")
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
				time.Now().Add(time.Second))
			_ = ws.Close()
			return
		}
		l.log.Info().Str("remote", r.RemoteAddr).Msg("websocket attached")
	})
}
