package relay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/parakeetlabs/voice-bridge/internal/agent"
	"github.com/parakeetlabs/voice-bridge/internal/core/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsFrame struct {
	messageType int
	data        []byte
}

// fakeTelephony scripts the inbound call socket.
type fakeTelephony struct {
	in     chan wsFrame
	closed chan struct{}
	once   sync.Once

	mu     sync.Mutex
	writes [][]byte
}

func newFakeTelephony() *fakeTelephony {
	return &fakeTelephony{
		in:     make(chan wsFrame, 32),
		closed: make(chan struct{}),
	}
}

func (f *fakeTelephony) ReadMessage() (int, []byte, error) {
	select {
	case <-f.closed:
		return 0, nil, net.ErrClosed
	case fr := <-f.in:
		return fr.messageType, fr.data, nil
	}
}

func (f *fakeTelephony) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.writes = append(f.writes, data)
	f.mu.Unlock()
	return nil
}

func (f *fakeTelephony) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTelephony) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeTelephony) written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.writes))
	copy(out, f.writes)
	return out
}

// fakeAgent scripts the agent connection.
type fakeAgent struct {
	in     chan wsFrame
	closed chan struct{}
	once   sync.Once

	audioSeen chan []byte

	mu       sync.Mutex
	settings []json.RawMessage
	controls []agent.FunctionCallResponse
}

func newFakeAgent() *fakeAgent {
	return &fakeAgent{
		in:        make(chan wsFrame, 32),
		closed:    make(chan struct{}),
		audioSeen: make(chan []byte, 32),
	}
}

func (f *fakeAgent) SendSettings(settings json.RawMessage) error {
	f.mu.Lock()
	f.settings = append(f.settings, settings)
	f.mu.Unlock()
	return nil
}

func (f *fakeAgent) SendAudio(frame []byte) error {
	f.audioSeen <- frame
	return nil
}

func (f *fakeAgent) SendControl(v interface{}) error {
	resp, ok := v.(agent.FunctionCallResponse)
	if !ok {
		return errors.New("unexpected control message type")
	}
	f.mu.Lock()
	f.controls = append(f.controls, resp)
	f.mu.Unlock()
	return nil
}

func (f *fakeAgent) ReadMessage() (int, []byte, error) {
	select {
	case <-f.closed:
		return 0, nil, net.ErrClosed
	case fr := <-f.in:
		return fr.messageType, fr.data, nil
	}
}

func (f *fakeAgent) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeAgent) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeAgent) sentControls() []agent.FunctionCallResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]agent.FunctionCallResponse, len(f.controls))
	copy(out, f.controls)
	return out
}

func textFrame(v interface{}) wsFrame {
	data, _ := json.Marshal(v)
	return wsFrame{messageType: websocket.TextMessage, data: data}
}

func startEvent(streamSID string) wsFrame {
	return textFrame(map[string]interface{}{
		"event": "start",
		"start": map[string]string{"streamSid": streamSID},
	})
}

func mediaEvent(track string, audio []byte) wsFrame {
	return textFrame(map[string]interface{}{
		"event": "media",
		"media": map[string]string{
			"track":   track,
			"payload": base64.StdEncoding.EncodeToString(audio),
		},
	})
}

func stopEvent() wsFrame {
	return textFrame(map[string]string{"event": "stop"})
}

func newTestSession(tel *fakeTelephony, ag *fakeAgent, registry *tool.Registry) *Session {
	if registry == nil {
		registry = tool.NewRegistry()
	}
	dial := func(ctx context.Context) (AgentConn, error) { return ag, nil }
	return NewSession(tel, dial, json.RawMessage(`{"type":"Settings"}`), registry)
}

func runSession(t *testing.T, s *Session) chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	return done
}

func waitDone(t *testing.T, done chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("session did not terminate")
		return nil
	}
}

func TestSessionRelaysCallerAudioToAgent(t *testing.T) {
	tel := newFakeTelephony()
	ag := newFakeAgent()
	sess := newTestSession(tel, ag, nil)
	done := runSession(t, sess)

	payload := make([]byte, FrameSize)
	for i := range payload {
		payload[i] = byte(i)
	}

	tel.in <- textFrame(map[string]string{"event": "connected"})
	tel.in <- startEvent("MZ001")
	tel.in <- mediaEvent("inbound", payload)

	select {
	case frame := <-ag.audioSeen:
		assert.Equal(t, payload, frame)
	case <-time.After(5 * time.Second):
		t.Fatal("agent never received the audio frame")
	}

	tel.in <- stopEvent()
	require.NoError(t, waitDone(t, done))

	// Settings precede all audio, and both sockets are torn down.
	require.Len(t, ag.settings, 1)
	assert.JSONEq(t, `{"type":"Settings"}`, string(ag.settings[0]))
	assert.True(t, tel.isClosed())
	assert.True(t, ag.isClosed())
}

func TestSessionIgnoresOutboundTrackAudio(t *testing.T) {
	tel := newFakeTelephony()
	ag := newFakeAgent()
	sess := newTestSession(tel, ag, nil)
	done := runSession(t, sess)

	tel.in <- startEvent("MZ002")
	tel.in <- mediaEvent("outbound", make([]byte, FrameSize))
	tel.in <- stopEvent()
	require.NoError(t, waitDone(t, done))

	select {
	case <-ag.audioSeen:
		t.Fatal("outbound-track audio must not reach the agent")
	default:
	}
}

func TestSessionBargeInAndAudioForwarding(t *testing.T) {
	tel := newFakeTelephony()
	ag := newFakeAgent()
	sess := newTestSession(tel, ag, nil)
	done := runSession(t, sess)

	tel.in <- startEvent("MZ003")

	synthesized := []byte{0x7f, 0x00, 0x12, 0x34}
	ag.in <- textFrame(map[string]string{"type": "UserStartedSpeaking"})
	ag.in <- textFrame(map[string]string{"type": "ConversationText"}) // ignored
	ag.in <- wsFrame{messageType: websocket.BinaryMessage, data: synthesized}

	// Poll until both outbound events landed on the telephony socket.
	require.Eventually(t, func() bool {
		return len(tel.written()) >= 2
	}, 5*time.Second, 10*time.Millisecond)

	writes := tel.written()
	var clear map[string]string
	require.NoError(t, json.Unmarshal(writes[0], &clear))
	assert.Equal(t, "clear", clear["event"])
	assert.Equal(t, "MZ003", clear["streamSid"])

	var media struct {
		Event     string `json:"event"`
		StreamSID string `json:"streamSid"`
		Media     struct {
			Payload string `json:"payload"`
		} `json:"media"`
	}
	require.NoError(t, json.Unmarshal(writes[1], &media))
	assert.Equal(t, "media", media.Event)
	assert.Equal(t, "MZ003", media.StreamSID)
	decoded, err := base64.StdEncoding.DecodeString(media.Media.Payload)
	require.NoError(t, err)
	assert.Equal(t, synthesized, decoded)

	ag.Close()
	require.NoError(t, waitDone(t, done))
}

func TestSessionDispatchesFunctionCallsInOrder(t *testing.T) {
	registry := tool.NewRegistry()
	registry.Register(&tool.ToolDefinition{
		Name: "greet",
		Executor: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return map[string]interface{}{"greeting": "hello " + args["name"].(string)}, nil
		},
	})

	tel := newFakeTelephony()
	ag := newFakeAgent()
	sess := newTestSession(tel, ag, registry)
	done := runSession(t, sess)

	tel.in <- startEvent("MZ004")

	// Arguments arrive as a JSON-encoded string, the agent's encoding.
	ag.in <- textFrame(map[string]interface{}{
		"type": "FunctionCallRequest",
		"functions": []map[string]string{
			{"id": "fc-1", "name": "greet", "arguments": `{"name":"ada"}`},
			{"id": "fc-2", "name": "nope", "arguments": `{}`},
			{"id": "fc-3", "name": "greet", "arguments": `{"name":"lin"}`},
		},
	})

	require.Eventually(t, func() bool {
		return len(ag.sentControls()) == 3
	}, 5*time.Second, 10*time.Millisecond)

	controls := ag.sentControls()
	assert.Equal(t, "fc-1", controls[0].ID)
	assert.Equal(t, "fc-2", controls[1].ID)
	assert.Equal(t, "fc-3", controls[2].ID)
	for _, c := range controls {
		assert.Equal(t, "FunctionCallResponse", c.Type)
	}
	assert.JSONEq(t, `{"greeting":"hello ada"}`, controls[0].Content)
	assert.JSONEq(t, `{"error":"unknown function: nope"}`, controls[1].Content)
	assert.JSONEq(t, `{"greeting":"hello lin"}`, controls[2].Content)

	ag.Close()
	require.NoError(t, waitDone(t, done))
}

func TestSessionSkipsMalformedAgentMessages(t *testing.T) {
	tel := newFakeTelephony()
	ag := newFakeAgent()
	sess := newTestSession(tel, ag, nil)
	done := runSession(t, sess)

	tel.in <- startEvent("MZ005")
	ag.in <- wsFrame{messageType: websocket.TextMessage, data: []byte("{not json")}
	ag.in <- textFrame(map[string]string{"type": "UserStartedSpeaking"})

	require.Eventually(t, func() bool {
		return len(tel.written()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	ag.Close()
	require.NoError(t, waitDone(t, done))
}

func TestSessionAbortsWhenAgentDialFails(t *testing.T) {
	tel := newFakeTelephony()
	dial := func(ctx context.Context) (AgentConn, error) {
		return nil, agent.ErrMissingAPIKey
	}
	sess := NewSession(tel, dial, nil, tool.NewRegistry())

	err := sess.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, agent.ErrMissingAPIKey)
	assert.True(t, tel.isClosed(), "inbound socket must be closed on abort")
}

func TestSessionTearsDownSiblingsWhenOneSideDies(t *testing.T) {
	tel := newFakeTelephony()
	ag := newFakeAgent()
	sess := newTestSession(tel, ag, nil)
	done := runSession(t, sess)

	tel.in <- startEvent("MZ006")
	// Kill the telephony side; the orchestrator must cancel the agent
	// pumps and close the agent socket too.
	tel.Close()

	require.NoError(t, waitDone(t, done))
	assert.True(t, ag.isClosed())
}
