package hub

import "time"

// Channel is the bidirectional, text-framed transport a Participant
// drives. Production wiring adapts *websocket.Conn; tests substitute an
// in-memory fake.
type Channel interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}
