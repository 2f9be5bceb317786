// Package hub fans dashboard updates out to websocket clients. Each hub
// carries one stream: state snapshots, log entries or preview frames.
package hub

import "github.com/gofiber/websocket/v2"

// Kind selects the websocket frame type a message is written with.
type Kind int

const (
	Text   Kind = iota // JSON state and log entries
	Binary             // JPEG preview frames
)

// Message is one broadcast payload. Data is shared by every client and
// must not be modified after Broadcast.
type Message struct {
	Kind Kind
	Data []byte
}

func (m Message) frameType() int {
	if m.Kind == Binary {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
