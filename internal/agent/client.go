// Package agent implements the client side of the speech-to-speech
// agent connection: a token-authenticated websocket carrying binary
// audio frames interleaved with JSON control messages.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrMissingAPIKey is returned when no credential is configured. A
// session failing with this never reaches the relay stage.
var ErrMissingAPIKey = errors.New("DEEPGRAM_API_KEY is not set")

const handshakeTimeout = 10 * time.Second

// Client is one live agent connection. Reads are owned by a single
// goroutine; writes are serialized internally because both the audio
// sender and the function-call dispatcher write concurrently.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// Dial opens the agent connection. Authentication rides on the
// websocket subprotocol list: ["token", <api key>].
func Dial(ctx context.Context, url, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	dialer := websocket.Dialer{
		Subprotocols:     []string{"token", apiKey},
		HandshakeTimeout: handshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("agent dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("agent dial failed: %w", err)
	}

	return &Client{conn: conn}, nil
}

// SendSettings transmits the settings document. Must be the first
// message after dialing, before any audio.
func (c *Client) SendSettings(settings json.RawMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, settings)
}

// SendAudio forwards one mu-law audio frame as a binary message.
func (c *Client) SendAudio(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// SendControl marshals and sends a control message as a text frame.
func (c *Client) SendControl(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode control message: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// ReadMessage returns the next frame from the agent. Text frames are
// control messages, binary frames are synthesized audio.
func (c *Client) ReadMessage() (messageType int, data []byte, err error) {
	return c.conn.ReadMessage()
}

// Close tears down the underlying connection. Safe to call more than
// once; later calls return the connection's close error.
func (c *Client) Close() error {
	return c.conn.Close()
}
