// Package llm defines the backend-agnostic completion API used by workers.
package llm

import (
	"context"

	"propline/pkg/tools"
)

// Role identifies who authored a message in a completion request.
type Role string

const (
	// RoleSystem carries worker instructions and context.
	RoleSystem Role = "system"
	// RoleUser is the person on the other end of the conversation.
	RoleUser Role = "user"
	// RoleAssistant is the model's own prior output.
	RoleAssistant Role = "assistant"
	// RoleTool carries a tool execution result back to the model.
	RoleTool Role = "tool"
)

// DefaultMaxTokens bounds a single completion when the caller does not set
// an explicit limit.
const DefaultMaxTokens = 1024

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	Parameters map[string]any `json:"parameters"`
	ID         string         `json:"id"`
	Name       string         `json:"name"`
}

// ToolResult carries the outcome of one tool call back to the model,
// correlated by the originating call ID.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`
}

// Message is one entry in a completion request's history. Assistant messages
// may carry tool calls; tool messages carry the matching results.
type Message struct {
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// CompletionRequest is a request to generate one assistant turn.
//
//nolint:govet // fieldalignment: value semantics preferred over pointer indirection
type CompletionRequest struct {
	Messages    []Message
	Tools       []tools.ToolDefinition
	ToolChoice  string
	MaxTokens   int
	Temperature float32
}

// CompletionResponse is one assistant turn: text, any tool calls the model
// wants executed, and why generation stopped.
type CompletionResponse struct {
	ToolCalls  []ToolCall
	Content    string
	StopReason string // "end_turn", "tool_use", "max_tokens", ...
}

// Client is implemented by each model backend adapter.
type Client interface {
	// Complete generates a completion synchronously.
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)

	// ModelName returns the backing model's name for logging and metrics.
	ModelName() string
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewToolResultMessage creates a tool message carrying one result.
func NewToolResultMessage(result ToolResult) Message {
	return Message{Role: RoleTool, ToolResults: []ToolResult{result}}
}
