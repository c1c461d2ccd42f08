// Package tools provides the capability registry consumed by the
// conversation turn driver: JSON-schema-described tools, per-worker
// allow-lists, and an executor that never lets a handler failure escape.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Property describes one parameter in a tool's input schema.
type Property struct {
	Type        string               `json:"type"`
	Description string               `json:"description,omitempty"`
	Enum        []string             `json:"enum,omitempty"`
	Items       *Property            `json:"items,omitempty"`
	Properties  map[string]*Property `json:"properties,omitempty"`
}

// InputSchema is the JSON-schema object describing a tool's parameters.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// ToolDefinition is the backend-facing description of a tool.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// Tool is a named capability the reasoning backend may invoke.
type Tool interface {
	Name() string
	Definition() ToolDefinition
	PromptDocumentation() string
	Exec(ctx context.Context, args map[string]any) (any, error)
}

// Call is one requested invocation, as decoded from a backend response.
type Call struct {
	ID   string
	Name string
	Args map[string]any
}

// CallResult records one executed (or failed) invocation. Executor always
// produces a value; IsError marks structured failures so the conversation
// can continue with the model informed.
type CallResult struct {
	ID      string
	Name    string
	Args    map[string]any
	Result  any
	Content string
	IsError bool
}

// GenerateDocumentation renders markdown documentation for a tool set,
// used when embedding tool guidance into system prompts.
func GenerateDocumentation(ts []Tool) string {
	if len(ts) == 0 {
		return "No tools available"
	}

	var doc strings.Builder
	doc.WriteString("## Available Tools\n\n")
	for _, t := range ts {
		doc.WriteString(t.PromptDocumentation())
		doc.WriteString("\n")
	}
	return doc.String()
}

// errorResult builds the structured failure map every failing tool returns.
func errorResult(msg string) map[string]any {
	return map[string]any{
		"success": false,
		"error":   msg,
	}
}

// successResult builds a success map with the given extra fields.
func successResult(fields map[string]any) map[string]any {
	out := map[string]any{"success": true}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// serialize renders a tool result as the string content of a tool message.
func serialize(result any) string {
	switch v := result.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		content, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(content)
	}
}

// stringArg extracts an optional string argument.
func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

// intArg extracts an integer argument, tolerating the float64 values JSON
// unmarshalling produces.
func intArg(args map[string]any, key string, defaultVal int) int {
	v, exists := args[key]
	if !exists {
		return defaultVal
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	default:
		return defaultVal
	}
}
