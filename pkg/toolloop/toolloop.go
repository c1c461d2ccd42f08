// Package toolloop drives one bounded tool-calling conversation turn against
// a reasoning backend.
package toolloop

import (
	"context"
	"time"

	"propline/pkg/llm"
	"propline/pkg/logx"
	"propline/pkg/tools"
)

// FallbackResponse is the fixed reply sent when the backend fails or the
// iteration ceiling is reached without a final text response. Deliberately
// generic: it must be safe to send to any tenant or landlord.
const FallbackResponse = "Sorry, I'm having a little trouble right now. Please send your message again in a moment, and if it's an emergency call your landlord or the emergency services directly."

// DefaultMaxIterations bounds the number of backend round-trips per turn.
const DefaultMaxIterations = 5

// Options configures one turn.
//
//nolint:govet // fieldalignment: fields ordered for clarity
type Options struct {
	// Registry supplies the tools this turn may invoke.
	Registry *tools.Registry

	// MaxIterations caps backend round-trips; 0 means DefaultMaxIterations.
	MaxIterations int

	// MaxTokens caps each completion; 0 means the backend default.
	MaxTokens int

	// Temperature for every completion in the turn.
	Temperature float32
}

// Outcome is the result of one driven turn.
type Outcome struct {
	// Response is the final assistant text, or FallbackResponse when the
	// turn degraded.
	Response string

	// ToolCalls is every executed invocation across all iterations, in
	// execution order. Callers scan it for handoff and state-update signals.
	ToolCalls []tools.CallResult

	// Iterations is how many backend round-trips were made.
	Iterations int

	// Degraded marks a turn that ended in the fallback response.
	Degraded bool
}

// Driver runs bounded tool-calling turns against a backend client.
type Driver struct {
	client llm.Client
	logger *logx.Logger
}

// New creates a turn driver.
func New(client llm.Client, logger *logx.Logger) *Driver {
	return &Driver{client: client, logger: logger}
}

// Run drives one turn to completion. The backend is called repeatedly; after
// each response every requested tool is executed in order and its result
// appended as a tool message correlated by call ID, as the completion APIs
// require. The loop ends when the backend responds without tool calls. A
// backend error or hitting the iteration ceiling degrades to the fixed
// fallback response rather than surfacing an error: the person on the other
// end always gets a reply.
func (d *Driver) Run(ctx context.Context, messages []llm.Message, opts Options) Outcome {
	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	var defs []tools.ToolDefinition
	if opts.Registry != nil {
		defs = opts.Registry.Definitions()
	}

	outcome := Outcome{}
	history := make([]llm.Message, len(messages))
	copy(history, messages)

	for iteration := 0; iteration < maxIterations; iteration++ {
		outcome.Iterations = iteration + 1

		req := llm.CompletionRequest{
			Messages:    history,
			Tools:       defs,
			MaxTokens:   opts.MaxTokens,
			Temperature: opts.Temperature,
		}

		d.logger.Info("🔄 Backend call to '%s': %d messages, %d tools (iteration %d/%d)",
			d.client.ModelName(), len(history), len(defs), iteration+1, maxIterations)

		start := time.Now()
		resp, err := d.client.Complete(ctx, req)
		if err != nil {
			d.logger.Error("❌ Backend call failed after %.3gs: %v", time.Since(start).Seconds(), err)
			outcome.Response = FallbackResponse
			outcome.Degraded = true
			return outcome
		}

		d.logger.Info("✅ Backend responded in %.3gs: %d chars, %d tool calls",
			time.Since(start).Seconds(), len(resp.Content), len(resp.ToolCalls))

		if len(resp.ToolCalls) == 0 {
			outcome.Response = resp.Content
			return outcome
		}

		// Record the assistant turn, then execute every requested tool in
		// order. Each call gets exactly one correlated result message even
		// when it fails; skipping one would invalidate the history.
		history = append(history, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for i := range resp.ToolCalls {
			call := resp.ToolCalls[i]
			result := tools.ExecuteCall(ctx, opts.Registry, tools.Call{
				ID:   call.ID,
				Name: call.Name,
				Args: call.Parameters,
			}, d.logger)

			outcome.ToolCalls = append(outcome.ToolCalls, result)
			history = append(history, llm.NewToolResultMessage(llm.ToolResult{
				ToolCallID: result.ID,
				Content:    result.Content,
				IsError:    result.IsError,
			}))
		}
	}

	d.logger.Warn("⚠️ Iteration ceiling (%d) reached without final response", maxIterations)
	outcome.Response = FallbackResponse
	outcome.Degraded = true
	return outcome
}
