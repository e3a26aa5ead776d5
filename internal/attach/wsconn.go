package attach

import (
	"time"

	"github.com/gorilla/websocket"
)

// pongWait is how long the adapter waits for a client pong at the
// websocket-protocol level (distinct from the attachment's own JSON
// ping/pong control frames) before considering the peer gone.
const pongWait = 60 * time.Second

// wsConn adapts a *websocket.Conn to the Conn interface and runs a
// background ping loop so a half-open TCP connection doesn't pin a
// session's attachment slot forever.
type wsConn struct {
	*websocket.Conn
	stop chan struct{}
}

// NewWSConn adapts c, arming the read deadline and starting the ping
// loop. Close stops the loop.
func NewWSConn(c *websocket.Conn) Conn {
	c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		c.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	wc := &wsConn{Conn: c, stop: make(chan struct{})}
	go wc.pingLoop()
	return wc
}

func (wc *wsConn) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := wc.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-wc.stop:
			return
		}
	}
}

func (wc *wsConn) Close() error {
	close(wc.stop)
	return wc.Conn.Close()
}
