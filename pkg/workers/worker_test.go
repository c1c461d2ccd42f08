package workers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propline/pkg/llm"
	"propline/pkg/llm/llmtest"
	"propline/pkg/logx"
	"propline/pkg/persistence"
	"propline/pkg/toolloop"
	"propline/pkg/tools"
)

func signalRegistry(_ *Context) *tools.Registry {
	return tools.NewRegistry(
		tools.NewHandoffTool(),
		tools.NewUpdateIssueStateTool(),
		tools.NewEscalateTool(),
	)
}

func testWorker(t *testing.T, client llm.Client) *Worker {
	t.Helper()
	driver := toolloop.New(client, logx.NewLogger("test"))
	worker, err := newWorker(WorkerTenant, tenantPrompt, tenantTemperature, 1024, driver, signalRegistry)
	require.NoError(t, err)
	return worker
}

func tenantContext() *Context {
	return &Context{
		Role:     "tenant",
		Phone:    "+447700900002",
		Tenant:   &persistence.Tenant{ID: "ten-1", Name: "Sam Okafor"},
		Property: &persistence.Property{ID: "prop-1", Address: "12 Garden Row, Leeds"},
		Landlord: &persistence.Landlord{ID: "ll-1", Name: "Priya Shah"},
	}
}

func TestExecuteLastHandoffWins(t *testing.T) {
	client := llmtest.NewScriptedClient(
		llm.CompletionResponse{
			StopReason: "tool_use",
			ToolCalls: []llm.ToolCall{
				{ID: "c1", Name: tools.ToolHandoff, Parameters: map[string]any{"worker": "triage", "reason": "first"}},
				{ID: "c2", Name: tools.ToolHandoff, Parameters: map[string]any{"worker": "dispatch", "reason": "second"}},
			},
		},
		llm.CompletionResponse{Content: "Handing you over now.", StopReason: "end_turn"},
	)
	worker := testWorker(t, client)

	result, err := worker.Execute(context.Background(), "ok all done", tenantContext())
	require.NoError(t, err)
	assert.Equal(t, WorkerDispatch, result.NextWorker)
}

func TestExecuteFailedHandoffIgnored(t *testing.T) {
	client := llmtest.NewScriptedClient(
		llm.CompletionResponse{
			StopReason: "tool_use",
			ToolCalls: []llm.ToolCall{
				// Missing worker argument: the tool returns a structured error.
				{ID: "c1", Name: tools.ToolHandoff, Parameters: map[string]any{"reason": "oops"}},
			},
		},
		llm.CompletionResponse{Content: "Let me ask you one more thing.", StopReason: "end_turn"},
	)
	worker := testWorker(t, client)

	result, err := worker.Execute(context.Background(), "hello", tenantContext())
	require.NoError(t, err)
	assert.Empty(t, result.NextWorker)
}

func TestExecuteStateUpdatesMergeLaterWins(t *testing.T) {
	client := llmtest.NewScriptedClient(
		llm.CompletionResponse{
			StopReason: "tool_use",
			ToolCalls: []llm.ToolCall{
				{ID: "c1", Name: tools.ToolUpdateIssueState, Parameters: map[string]any{
					"issue_description": "tap dripping",
					"urgency":           "low",
				}},
				{ID: "c2", Name: tools.ToolUpdateIssueState, Parameters: map[string]any{
					"urgency": "medium",
					"status":  "awaiting_details",
				}},
			},
		},
		llm.CompletionResponse{Content: "Noted, thanks!", StopReason: "end_turn"},
	)
	worker := testWorker(t, client)

	result, err := worker.Execute(context.Background(), "it's getting worse", tenantContext())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"issue_description": "tap dripping",
		"urgency":           "medium",
		"status":            "awaiting_details",
	}, result.StateUpdates)
}

func TestExecuteEscalationSignal(t *testing.T) {
	client := llmtest.NewScriptedClient(
		llm.CompletionResponse{
			StopReason: "tool_use",
			ToolCalls: []llm.ToolCall{
				{ID: "c1", Name: tools.ToolEscalate, Parameters: map[string]any{
					"reason":  "tenant reports gas smell",
					"urgency": "emergency",
				}},
			},
		},
		llm.CompletionResponse{Content: "Please leave the property now and call 0800 111 999.", StopReason: "end_turn"},
	)
	worker := testWorker(t, client)

	result, err := worker.Execute(context.Background(), "I can smell gas", tenantContext())
	require.NoError(t, err)
	assert.True(t, result.Escalated)
	assert.Equal(t, "tenant reports gas smell", result.EscalationReason)
}

func TestExecuteSystemPromptAndHistoryWindow(t *testing.T) {
	client := llmtest.NewScriptedClient(
		llm.CompletionResponse{Content: "Hi Sam!", StopReason: "end_turn"},
	)
	worker := testWorker(t, client)

	wctx := tenantContext()
	for i := 0; i < 15; i++ {
		direction := persistence.DirectionInbound
		if i%2 == 1 {
			direction = persistence.DirectionOutbound
		}
		wctx.History = append(wctx.History, persistence.Message{
			Direction: direction,
			Body:      "older message",
		})
	}

	_, err := worker.Execute(context.Background(), "hello again", wctx)
	require.NoError(t, err)

	require.Len(t, client.Requests, 1)
	req := client.Requests[0]

	// System prompt first, rendered with the tenant's details.
	require.NotEmpty(t, req.Messages)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "Sam Okafor")
	assert.Contains(t, req.Messages[0].Content, "12 Garden Row, Leeds")

	// History is clipped to the window, plus system + current message.
	assert.Len(t, req.Messages, 1+historyWindow+1)
	assert.Equal(t, "hello again", req.Messages[len(req.Messages)-1].Content)

	// Sampling configuration flows through.
	assert.InDelta(t, tenantTemperature, req.Temperature, 0.001)
}

func TestSetLandlordCanApprovePendingIssue(t *testing.T) {
	client := llmtest.NewScriptedClient(
		llm.CompletionResponse{
			StopReason: "tool_use",
			ToolCalls: []llm.ToolCall{
				{ID: "c1", Name: tools.ToolApproveIssue, Parameters: map[string]any{"approved_by": "landlord"}},
			},
		},
		llm.CompletionResponse{Content: "Done, the plumber is booked.", StopReason: "end_turn"},
	)
	set, err := NewSet(client, &nopStore{}, nopNotifier{}, 1024)
	require.NoError(t, err)

	wctx := &Context{
		Role:     "landlord",
		Phone:    "+447700900001",
		Landlord: &persistence.Landlord{ID: "ll-1", Name: "Priya Shah"},
		Issue: &persistence.Issue{
			ID: "iss-9", LandlordID: "ll-1",
			Status:           persistence.StatusReported,
			DispatchDecision: "request_approval",
		},
	}

	result, err := set.Execute(context.Background(), WorkerLandlord, "yes, approve it", wctx)
	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, tools.ToolApproveIssue, result.ToolCalls[0].Name)
	assert.False(t, result.ToolCalls[0].IsError, "approval must execute, not come back as an unknown tool")
}

func TestSetRejectsInspector(t *testing.T) {
	client := llmtest.NewScriptedClient()
	set, err := NewSet(client, &nopStore{}, nopNotifier{}, 1024)
	require.NoError(t, err)

	_, err = set.Execute(context.Background(), WorkerInspector, "hi", tenantContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not implemented")
}

type nopStore struct{}

func (nopStore) UpdateIssueFields(string, map[string]any) error { return nil }
func (nopStore) SearchCatalog(string) ([]persistence.CatalogItem, error) {
	return nil, nil
}
func (nopStore) GetLandlordSettings(string) (*persistence.LandlordSettings, error) {
	return &persistence.LandlordSettings{}, nil
}
func (nopStore) UpdateLandlordSettings(*persistence.LandlordSettings) error { return nil }
func (nopStore) AddMonthlySpend(string, int) error                          { return nil }

type nopNotifier struct{}

func (nopNotifier) NotifyLandlord(context.Context, string, string, string) error { return nil }
