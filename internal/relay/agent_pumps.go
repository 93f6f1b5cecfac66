package relay

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"
	"github.com/parakeetlabs/voice-bridge/internal/agent"
	"github.com/parakeetlabs/voice-bridge/internal/telephony"
	"go.uber.org/zap"
)

// sendAgentAudio drains the audio channel into the agent connection,
// preserving frame order.
func (s *Session) sendAgentAudio(ctx context.Context) error {
	for {
		select {
		case frame := <-s.audioCh:
			if err := s.agent.SendAudio(frame); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// receiveAgent consumes the agent's frame stream. It first waits for
// the stream SID rendezvous; outbound events cannot be addressed
// before Twilio assigns the identifier. Text frames are control
// messages, binary frames are synthesized speech relayed straight
// back to the caller.
func (s *Session) receiveAgent(ctx context.Context) error {
	var streamSID string
	select {
	case streamSID = <-s.streamSID:
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		msgType, data, err := s.agent.ReadMessage()
		if err != nil {
			return err
		}

		if msgType == websocket.TextMessage {
			if err := s.handleControlMessage(ctx, streamSID, data); err != nil {
				return err
			}
			continue
		}

		if err := s.telephony.WriteJSON(telephony.NewMediaMessage(streamSID, data)); err != nil {
			return err
		}
	}
}

// handleControlMessage acts on one agent text frame. Unrecognized
// types pass through untouched; a message that fails to parse is
// logged and dropped rather than ending the call.
func (s *Session) handleControlMessage(ctx context.Context, streamSID string, data []byte) error {
	var msg agent.ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.log.Warn("malformed agent message", zap.Error(err))
		return nil
	}

	switch msg.Type {
	case agent.TypeUserStartedSpeaking:
		// Barge-in: flush Twilio's playback buffer so the agent's
		// queued speech stops immediately.
		s.log.Debug("barge-in, clearing buffered playback")
		return s.telephony.WriteJSON(telephony.NewClearMessage(streamSID))

	case agent.TypeFunctionCallRequest:
		return s.dispatchFunctionCalls(ctx, msg.Functions)
	}
	return nil
}

// dispatchFunctionCalls runs the request's entries strictly in order:
// each response is on the wire before the next entry is dispatched.
// Execute never fails — unknown names and handler errors come back as
// error payloads — so every correlation id gets a response and only a
// dead connection ends the loop.
func (s *Session) dispatchFunctionCalls(ctx context.Context, calls []agent.FunctionCall) error {
	for _, call := range calls {
		content := s.tools.Execute(ctx, call.Name, call.ArgumentsJSON())
		s.log.Info("dispatched function call",
			zap.String("name", call.Name),
			zap.String("call_id", call.ID))
		if err := s.agent.SendControl(agent.NewFunctionCallResponse(call, content)); err != nil {
			return err
		}
	}
	return nil
}
