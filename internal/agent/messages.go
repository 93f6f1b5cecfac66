package agent

import "encoding/json"

// Control message types the relay acts on. Anything else from the
// agent (conversation text, settings acks, warnings) is passed over.
const (
	TypeUserStartedSpeaking  = "UserStartedSpeaking"
	TypeFunctionCallRequest  = "FunctionCallRequest"
	TypeFunctionCallResponse = "FunctionCallResponse"
)

// ControlMessage is a text frame from the agent connection, tagged by
// Type. Functions is only populated for FunctionCallRequest.
type ControlMessage struct {
	Type      string         `json:"type"`
	Functions []FunctionCall `json:"functions,omitempty"`
}

// FunctionCall is one entry of a FunctionCallRequest. ID correlates
// the eventual response; Arguments is the serialized named-argument
// bundle.
type FunctionCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ArgumentsJSON returns the argument bundle as a JSON object. The
// agent encodes arguments as a JSON-encoded string; a raw object is
// accepted too.
func (f *FunctionCall) ArgumentsJSON() []byte {
	raw := []byte(f.Arguments)
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err == nil {
			return []byte(inner)
		}
	}
	return raw
}

// FunctionCallResponse is sent back over the agent connection after a
// tool is dispatched. Content is the serialized result or error
// object; the agent folds it into the conversation.
type FunctionCallResponse struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// NewFunctionCallResponse builds a response for one dispatched call.
func NewFunctionCallResponse(call FunctionCall, content []byte) FunctionCallResponse {
	return FunctionCallResponse{
		Type:    TypeFunctionCallResponse,
		ID:      call.ID,
		Name:    call.Name,
		Content: string(content),
	}
}
