package toolloop

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propline/pkg/llm"
	"propline/pkg/llm/llmtest"
	"propline/pkg/logx"
	"propline/pkg/tools"
)

type recordingTool struct {
	name  string
	log   *[]string
	fail  bool
	reply any
}

func (t *recordingTool) Name() string { return t.name }

func (t *recordingTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        t.name,
		Description: "test tool",
		InputSchema: tools.InputSchema{Type: "object"},
	}
}

func (t *recordingTool) PromptDocumentation() string { return "- " + t.name }

func (t *recordingTool) Exec(_ context.Context, _ map[string]any) (any, error) {
	*t.log = append(*t.log, t.name)
	if t.fail {
		return nil, fmt.Errorf("%s blew up", t.name)
	}
	if t.reply != nil {
		return t.reply, nil
	}
	return map[string]any{"success": true}, nil
}

func newDriverWith(client llm.Client) *Driver {
	return New(client, logx.NewLogger("toolloop-test"))
}

func userTurn(text string) []llm.Message {
	return []llm.Message{llm.NewUserMessage(text)}
}

func TestRunTerminatesWithoutToolCalls(t *testing.T) {
	client := llmtest.NewScriptedClient(
		llm.CompletionResponse{Content: "All sorted, a plumber is booked.", StopReason: "end_turn"},
	)
	driver := newDriverWith(client)

	outcome := driver.Run(context.Background(), userTurn("my tap is leaking"), Options{
		Registry: tools.NewRegistry(),
	})

	assert.Equal(t, "All sorted, a plumber is booked.", outcome.Response)
	assert.False(t, outcome.Degraded)
	assert.Equal(t, 1, outcome.Iterations)
	assert.Empty(t, outcome.ToolCalls)
}

func TestRunExecutesToolsInOrderWithCorrelatedResults(t *testing.T) {
	var execLog []string
	registry := tools.NewRegistry(
		&recordingTool{name: "first", log: &execLog},
		&recordingTool{name: "second", log: &execLog},
		&recordingTool{name: "third", log: &execLog},
	)

	client := llmtest.NewScriptedClient(
		llm.CompletionResponse{
			StopReason: "tool_use",
			ToolCalls: []llm.ToolCall{
				{ID: "call_a", Name: "first"},
				{ID: "call_b", Name: "second"},
				{ID: "call_c", Name: "third"},
			},
		},
		llm.CompletionResponse{Content: "done", StopReason: "end_turn"},
	)
	driver := newDriverWith(client)

	outcome := driver.Run(context.Background(), userTurn("hello"), Options{Registry: registry})

	assert.Equal(t, []string{"first", "second", "third"}, execLog)
	require.Len(t, outcome.ToolCalls, 3)
	assert.Equal(t, "call_a", outcome.ToolCalls[0].ID)
	assert.Equal(t, "call_b", outcome.ToolCalls[1].ID)
	assert.Equal(t, "call_c", outcome.ToolCalls[2].ID)
	assert.Equal(t, "done", outcome.Response)

	// The second request must carry one tool-result message per call,
	// each correlated to its originating call ID.
	require.Len(t, client.Requests, 2)
	second := client.Requests[1]
	var resultIDs []string
	for _, msg := range second.Messages {
		for _, tr := range msg.ToolResults {
			resultIDs = append(resultIDs, tr.ToolCallID)
		}
	}
	assert.Equal(t, []string{"call_a", "call_b", "call_c"}, resultIDs)
}

func TestRunToolFailureStaysInBand(t *testing.T) {
	var execLog []string
	registry := tools.NewRegistry(
		&recordingTool{name: "broken", log: &execLog, fail: true},
	)

	client := llmtest.NewScriptedClient(
		llm.CompletionResponse{
			StopReason: "tool_use",
			ToolCalls:  []llm.ToolCall{{ID: "call_1", Name: "broken"}},
		},
		llm.CompletionResponse{Content: "I hit a snag but carried on.", StopReason: "end_turn"},
	)
	driver := newDriverWith(client)

	outcome := driver.Run(context.Background(), userTurn("hi"), Options{Registry: registry})

	require.Len(t, outcome.ToolCalls, 1)
	assert.True(t, outcome.ToolCalls[0].IsError)
	assert.False(t, outcome.Degraded)
	assert.Equal(t, "I hit a snag but carried on.", outcome.Response)
}

func TestRunUnknownToolStaysInBand(t *testing.T) {
	client := llmtest.NewScriptedClient(
		llm.CompletionResponse{
			StopReason: "tool_use",
			ToolCalls:  []llm.ToolCall{{ID: "call_1", Name: "no_such_tool"}},
		},
		llm.CompletionResponse{Content: "ok", StopReason: "end_turn"},
	)
	driver := newDriverWith(client)

	outcome := driver.Run(context.Background(), userTurn("hi"), Options{Registry: tools.NewRegistry()})

	require.Len(t, outcome.ToolCalls, 1)
	assert.True(t, outcome.ToolCalls[0].IsError)
	assert.Contains(t, outcome.ToolCalls[0].Content, "unknown tool")
}

func TestRunFallsBackAtIterationCeiling(t *testing.T) {
	var execLog []string
	registry := tools.NewRegistry(&recordingTool{name: "loop", log: &execLog})

	// The model keeps asking for tools forever.
	client := llmtest.NewScriptedClient(
		llm.CompletionResponse{
			StopReason: "tool_use",
			ToolCalls:  []llm.ToolCall{{ID: "call_x", Name: "loop"}},
		},
	)
	driver := newDriverWith(client)

	outcome := driver.Run(context.Background(), userTurn("hi"), Options{
		Registry:      registry,
		MaxIterations: 3,
	})

	assert.True(t, outcome.Degraded)
	assert.Equal(t, FallbackResponse, outcome.Response)
	assert.Equal(t, 3, outcome.Iterations)
	assert.Len(t, outcome.ToolCalls, 3)
}

func TestRunFallsBackOnBackendError(t *testing.T) {
	client := llmtest.NewScriptedClient().FailWith(0, fmt.Errorf("backend down"))
	driver := newDriverWith(client)

	outcome := driver.Run(context.Background(), userTurn("hi"), Options{Registry: tools.NewRegistry()})

	assert.True(t, outcome.Degraded)
	assert.Equal(t, FallbackResponse, outcome.Response)
}
