// Package relay implements the per-call bidirectional bridge between a
// Twilio media stream and the speech-to-speech agent connection:
// demultiplexing telephony events into fixed-size audio frames,
// forwarding synthesized audio and barge-in clears back, and
// dispatching agent-issued function calls.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/parakeetlabs/voice-bridge/internal/core/tool"
	"github.com/parakeetlabs/voice-bridge/pkg/logger"
	"go.uber.org/zap"
)

// audioChannelDepth bounds in-flight frames between the telephony
// reader and the agent sender. At 3200 bytes per 400ms frame this is
// far ahead of real time; a full channel just suspends the reader.
const audioChannelDepth = 256

// TelephonyConn is the inbound call socket as the relay sees it.
// *websocket.Conn satisfies it. The reader pump is the only reader
// and the agent receiver is the only writer, so no locking is needed
// on either side.
type TelephonyConn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteJSON(v interface{}) error
	Close() error
}

// AgentConn is the outbound agent connection. agent.Client satisfies
// it; writes must be internally serialized because the sender pump
// and function-call responses interleave.
type AgentConn interface {
	SendSettings(settings json.RawMessage) error
	SendAudio(frame []byte) error
	SendControl(v interface{}) error
	ReadMessage() (messageType int, data []byte, err error)
	Close() error
}

// AgentDialer opens the agent connection for one session.
type AgentDialer func(ctx context.Context) (AgentConn, error)

// Session owns one call's lifecycle: the two sockets, the audio
// channel between them, and the stream-identifier rendezvous.
type Session struct {
	id        string
	log       *zap.Logger
	telephony TelephonyConn
	dialAgent AgentDialer
	settings  json.RawMessage
	tools     *tool.Registry

	agent     AgentConn
	audioCh   chan []byte
	streamSID chan string
	closeOnce sync.Once
}

// NewSession wraps an accepted call connection. Nothing touches the
// network until Run.
func NewSession(conn TelephonyConn, dial AgentDialer, settings json.RawMessage, tools *tool.Registry) *Session {
	id := uuid.New().String()
	return &Session{
		id:        id,
		log:       logger.Base().With(zap.String("session_id", id)),
		telephony: conn,
		dialAgent: dial,
		settings:  settings,
		tools:     tools,
		audioCh:   make(chan []byte, audioChannelDepth),
		streamSID: make(chan string, 1),
	}
}

// ID returns the session identifier used in logs and the call registry.
func (s *Session) ID() string {
	return s.id
}

// Run drives the call to completion. It dials the agent, sends the
// settings document, then runs the three relay pumps as a supervised
// group: the first to exit cancels the context and closes both
// sockets, which unblocks the reads the context cannot interrupt. The
// inbound connection is closed on every path, including a failed
// agent dial.
func (s *Session) Run(ctx context.Context) error {
	agentConn, err := s.dialAgent(ctx)
	if err != nil {
		_ = s.telephony.Close()
		return fmt.Errorf("session aborted before relay start: %w", err)
	}
	s.agent = agentConn

	if err := s.agent.SendSettings(s.settings); err != nil {
		s.shutdown()
		return fmt.Errorf("failed to send agent settings: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.shutdown()

	errCh := make(chan error, 3)
	var wg sync.WaitGroup
	start := func(name string, pump func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pump(ctx)
			if err != nil && !isExpectedClose(err) && !errors.Is(err, context.Canceled) {
				s.log.Warn("relay pump exited", zap.String("pump", name), zap.Error(err))
			} else {
				s.log.Debug("relay pump finished", zap.String("pump", name))
			}
			errCh <- err
			cancel()
			s.shutdown()
		}()
	}

	start("telephony_reader", s.readTelephony)
	start("agent_sender", s.sendAgentAudio)
	start("agent_receiver", s.receiveAgent)

	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil && !isExpectedClose(err) && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}

// shutdown closes both sockets exactly once.
func (s *Session) shutdown() {
	s.closeOnce.Do(func() {
		_ = s.telephony.Close()
		_ = s.agent.Close()
	})
}

// isExpectedClose reports whether err is the ordinary end of a
// websocket: a clean close from the peer, or our own teardown pulling
// the connection out from under a blocked read.
func isExpectedClose(err error) bool {
	if err == nil {
		return true
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) {
		return true
	}
	return errors.Is(err, net.ErrClosed)
}
