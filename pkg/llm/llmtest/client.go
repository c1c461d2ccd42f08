// Package llmtest provides a scripted backend client for tests.
package llmtest

import (
	"context"
	"sync"

	"propline/pkg/llm"
)

// ScriptedClient replays a fixed sequence of responses. Each Complete call
// consumes the next scripted entry; the last entry repeats once the script
// is exhausted. It records every request for assertions.
type ScriptedClient struct {
	mu        sync.Mutex
	Responses []llm.CompletionResponse
	Errors    []error
	Requests  []llm.CompletionRequest
	calls     int
}

// NewScriptedClient creates a client replaying the given responses in order.
func NewScriptedClient(responses ...llm.CompletionResponse) *ScriptedClient {
	return &ScriptedClient{Responses: responses}
}

// FailWith makes the given call index (0-based) return err instead of a
// response.
func (c *ScriptedClient) FailWith(index int, err error) *ScriptedClient {
	for len(c.Errors) <= index {
		c.Errors = append(c.Errors, nil)
	}
	c.Errors[index] = err
	return c
}

// Complete implements llm.Client.
func (c *ScriptedClient) Complete(_ context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.calls
	c.calls++
	c.Requests = append(c.Requests, in)

	if idx < len(c.Errors) && c.Errors[idx] != nil {
		return llm.CompletionResponse{}, c.Errors[idx]
	}
	if len(c.Responses) == 0 {
		return llm.CompletionResponse{StopReason: "end_turn"}, nil
	}
	if idx >= len(c.Responses) {
		idx = len(c.Responses) - 1
	}
	return c.Responses[idx], nil
}

// ModelName implements llm.Client.
func (c *ScriptedClient) ModelName() string {
	return "scripted-test-model"
}

// Calls returns how many times Complete was invoked.
func (c *ScriptedClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
