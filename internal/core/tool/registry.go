package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/parakeetlabs/voice-bridge/pkg/logger"
	"go.uber.org/zap"
)

// ExecutorFunc is the uniform handler contract: a named-argument
// bundle in, a result payload (or error) out. The returned value is
// serialized as the function-call response content.
type ExecutorFunc func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// ToolDefinition describes one callable tool: its name, the schema
// advertised to the agent, and the executor invoked at dispatch time.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
	Executor    ExecutorFunc
}

// Registry is an explicit enumerated mapping from tool name to
// definition. Unregistered names are rejected at dispatch with a
// structured error result; nothing ever raises past Execute.
type Registry struct {
	defs map[string]*ToolDefinition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*ToolDefinition)}
}

// Register adds a tool definition, replacing any previous one with
// the same name.
func (r *Registry) Register(def *ToolDefinition) {
	r.defs[def.Name] = def
	logger.Base().Info("registered tool", zap.String("name", def.Name))
}

// Definitions returns the registered tools in no particular order,
// shaped for inclusion in the agent settings document.
func (r *Registry) Definitions() []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, map[string]interface{}{
			"name":        def.Name,
			"description": def.Description,
			"parameters":  def.Parameters,
		})
	}
	return out
}

// Execute dispatches one function call and returns the serialized
// result. Every failure mode — unknown name, malformed arguments, an
// executor error or panic — comes back as a JSON error object so the
// agent always receives a response for its correlation id.
func (r *Registry) Execute(ctx context.Context, name string, argsJSON []byte) (content []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Base().Error("tool executor panicked",
				zap.String("name", name), zap.Any("panic", rec))
			content = errorResult(fmt.Sprintf("internal error in %s", name))
		}
	}()

	def, ok := r.defs[name]
	if !ok {
		return errorResult(fmt.Sprintf("unknown function: %s", name))
	}

	args := make(map[string]interface{})
	if len(argsJSON) > 0 {
		if err := json.Unmarshal(argsJSON, &args); err != nil {
			return errorResult(fmt.Sprintf("invalid arguments for %s: %v", name, err))
		}
	}

	result, err := def.Executor(ctx, args)
	if err != nil {
		logger.Base().Warn("tool execution failed",
			zap.String("name", name), zap.Error(err))
		return errorResult(err.Error())
	}

	data, err := json.Marshal(result)
	if err != nil {
		return errorResult(fmt.Sprintf("unserializable result from %s", name))
	}
	return data
}

func errorResult(msg string) []byte {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return data
}
