// Package telephony defines the wire types for Twilio Media Streams:
// the JSON events arriving on the inbound call websocket and the
// messages this service sends back on the same connection.
package telephony

import "encoding/base64"

// Inbound event discriminators.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventStop      = "stop"
)

// EventClear is the outbound buffer-flush event.
const EventClear = "clear"

// TrackInbound is the caller-side audio track. Outbound-track media
// events (our own playback echoed back) are ignored.
const TrackInbound = "inbound"

// StreamEvent is one message from the Twilio media stream. Only the
// payload matching Event is populated.
type StreamEvent struct {
	Event string        `json:"event"`
	Start *StartPayload `json:"start,omitempty"`
	Media *MediaPayload `json:"media,omitempty"`
}

// StartPayload carries the stream metadata Twilio sends once the call
// media begins flowing.
type StartPayload struct {
	StreamSID  string `json:"streamSid"`
	AccountSID string `json:"accountSid,omitempty"`
	CallSID    string `json:"callSid,omitempty"`
}

// MediaPayload carries one base64-encoded mu-law audio chunk.
type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// DecodeAudio returns the raw mu-law bytes of the payload.
func (m *MediaPayload) DecodeAudio() ([]byte, error) {
	return base64.StdEncoding.DecodeString(m.Payload)
}

// MediaMessage is an outbound media event carrying synthesized agent
// audio, addressed to one call's stream.
type MediaMessage struct {
	Event     string       `json:"event"`
	StreamSID string       `json:"streamSid"`
	Media     MediaPayload `json:"media"`
}

// NewMediaMessage wraps raw mu-law audio for the given stream.
func NewMediaMessage(streamSID string, audio []byte) MediaMessage {
	return MediaMessage{
		Event:     EventMedia,
		StreamSID: streamSID,
		Media: MediaPayload{
			Payload: base64.StdEncoding.EncodeToString(audio),
		},
	}
}

// ClearMessage tells Twilio to drop any audio buffered for playback on
// the stream. Sent on barge-in so the caller is not talked over.
type ClearMessage struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
}

// NewClearMessage builds a clear event for the given stream.
func NewClearMessage(streamSID string) ClearMessage {
	return ClearMessage{Event: EventClear, StreamSID: streamSID}
}
