package tools

import (
	"context"
	"fmt"

	"propline/pkg/logx"
)

// Registry holds the tools available to one worker execution. Registries are
// built per turn because most handlers close over the turn's issue and
// landlord records; they are not shared across conversations.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates a registry from the given tools. Later registrations
// with a duplicate name replace earlier ones.
func NewRegistry(ts ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		r.Add(t)
	}
	return r
}

// Add registers a tool, replacing any existing tool of the same name.
func (r *Registry) Add(t Tool) {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Definitions returns backend-facing definitions in registration order.
func (r *Registry) Definitions() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// ExecuteCall runs one requested invocation against the registry. It always
// returns a CallResult: an unknown tool or a handler failure is serialized as
// a structured error result, never surfaced as an error to the caller, so the
// turn driver can keep the conversation alive deterministically.
func ExecuteCall(ctx context.Context, r *Registry, call Call, logger *logx.Logger) CallResult {
	res := CallResult{
		ID:   call.ID,
		Name: call.Name,
		Args: call.Args,
	}

	tool, ok := r.Get(call.Name)
	if !ok {
		if logger != nil {
			logger.Warn("backend requested unknown tool %q", call.Name)
		}
		res.Result = errorResult(fmt.Sprintf("unknown tool: %s", call.Name))
		res.Content = serialize(res.Result)
		res.IsError = true
		return res
	}

	result, err := tool.Exec(ctx, call.Args)
	if err != nil {
		if logger != nil {
			logger.Error("tool %s failed: %v", call.Name, err)
		}
		res.Result = errorResult(err.Error())
		res.Content = serialize(res.Result)
		res.IsError = true
		return res
	}

	res.Result = result
	res.Content = serialize(result)
	res.IsError = isErrorResult(result)
	return res
}

// isErrorResult detects the structured {success:false} failure shape.
func isErrorResult(result any) bool {
	m, ok := result.(map[string]any)
	if !ok {
		return false
	}
	success, ok := m["success"].(bool)
	return ok && !success
}
