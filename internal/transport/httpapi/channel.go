package httpapi

import (
	"time"

	"github.com/gorilla/websocket"
)

// wsChannel adapts *websocket.Conn to hub.Channel.
type wsChannel struct {
	conn *websocket.Conn
}

func (c *wsChannel) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsChannel) WriteMessage(data []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsChannel) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

func (c *wsChannel) Close() error {
	return c.conn.Close()
}
