package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/parakeetlabs/voice-bridge/internal/telephony"
	"go.uber.org/zap"
)

// readTelephony consumes the Twilio event stream: publishes the
// stream SID exactly once, accumulates inbound-track audio, and
// emits full frames on the audio channel. A trailing partial frame at
// call end is discarded; with fixed framing there is nothing correct
// to do with it.
func (s *Session) readTelephony(ctx context.Context) error {
	var frames FrameBuffer
	sidSent := false

	for {
		_, data, err := s.telephony.ReadMessage()
		if err != nil {
			return err
		}

		var ev telephony.StreamEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			// One malformed event is recoverable; skip it.
			s.log.Warn("malformed telephony event", zap.Error(err))
			continue
		}

		switch ev.Event {
		case telephony.EventConnected:
			// No payload, nothing to do.

		case telephony.EventStart:
			if ev.Start != nil && !sidSent {
				s.streamSID <- ev.Start.StreamSID
				sidSent = true
				s.log.Info("media stream started",
					zap.String("stream_sid", ev.Start.StreamSID),
					zap.String("call_sid", ev.Start.CallSID))
			}

		case telephony.EventMedia:
			if ev.Media != nil && ev.Media.Track == telephony.TrackInbound {
				chunk, err := ev.Media.DecodeAudio()
				if err != nil {
					return fmt.Errorf("telephony payload decode: %w", err)
				}
				frames.Write(chunk)
			}

		case telephony.EventStop:
			s.log.Info("media stream stopped",
				zap.Int("discarded_bytes", frames.Pending()))
			return nil
		}

		for {
			frame, ok := frames.Next()
			if !ok {
				break
			}
			select {
			case s.audioCh <- frame:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
