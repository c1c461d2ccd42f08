package tools

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propline/pkg/dispatch"
	"propline/pkg/logx"
	"propline/pkg/persistence"
)

type failingTool struct{}

func (failingTool) Name() string                { return "failing" }
func (failingTool) PromptDocumentation() string { return "- failing" }

func (failingTool) Definition() ToolDefinition {
	return ToolDefinition{Name: "failing", InputSchema: InputSchema{Type: "object"}}
}

func (failingTool) Exec(context.Context, map[string]any) (any, error) {
	return nil, fmt.Errorf("handler exploded")
}

func TestExecuteCallUnknownTool(t *testing.T) {
	registry := NewRegistry()
	result := ExecuteCall(context.Background(), registry, Call{ID: "c1", Name: "missing"}, logx.NewLogger("test"))

	assert.True(t, result.IsError)
	assert.Equal(t, "c1", result.ID)
	assert.Contains(t, result.Content, "unknown tool")
}

func TestExecuteCallHandlerFailureBecomesStructuredResult(t *testing.T) {
	registry := NewRegistry(failingTool{})
	result := ExecuteCall(context.Background(), registry, Call{ID: "c2", Name: "failing"}, logx.NewLogger("test"))

	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "handler exploded")
	// The failure is in the result, never an error crossing the boundary.
	resultMap, ok := result.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, resultMap["success"])
}

func TestHandoffToolValidatesWorker(t *testing.T) {
	tool := NewHandoffTool()

	result, err := tool.Exec(context.Background(), map[string]any{"worker": "triage", "reason": "details complete"})
	require.NoError(t, err)
	m := result.(map[string]any)
	assert.Equal(t, true, m["success"])
	assert.Equal(t, "triage", m["handoff"])

	result, err = tool.Exec(context.Background(), map[string]any{"worker": "plumber", "reason": "x"})
	require.NoError(t, err)
	m = result.(map[string]any)
	assert.Equal(t, false, m["success"])
}

func TestUpdateIssueStateToolEchoesArgs(t *testing.T) {
	tool := NewUpdateIssueStateTool()
	result, err := tool.Exec(context.Background(), map[string]any{
		"status":            "awaiting_details",
		"issue_description": "leaky tap",
	})
	require.NoError(t, err)

	m := result.(map[string]any)
	updates := m["updates"].(map[string]any)
	assert.Equal(t, "awaiting_details", updates["status"])
	assert.Equal(t, "leaky tap", updates["issue_description"])
}

type stubIssueStore struct {
	updates map[string]any
	err     error
}

func (s *stubIssueStore) UpdateIssueFields(_ string, fields map[string]any) error {
	if s.err != nil {
		return s.err
	}
	s.updates = fields
	return nil
}

type stubCatalog struct {
	items []persistence.CatalogItem
}

func (s *stubCatalog) SearchCatalog(string) ([]persistence.CatalogItem, error) {
	return s.items, nil
}

func TestCategorizeAndPricePersistsEstimateAndDecision(t *testing.T) {
	store := &stubIssueStore{}
	estimator := dispatch.NewEstimator(&stubCatalog{})
	issue := &persistence.Issue{ID: "iss-1", Status: persistence.StatusAwaitingDetails}

	tool := NewCategorizeAndPriceTool(store, estimator, issue, nil)
	result, err := tool.Exec(context.Background(), map[string]any{
		"category":    "plumbing",
		"urgency":     "low",
		"description": "dripping tap in kitchen",
	})
	require.NoError(t, err)

	m := result.(map[string]any)
	assert.Equal(t, true, m["success"])
	assert.Equal(t, "category_table", m["estimate_source"])
	// Table plumbing mid is 14000 at confidence 50: approval required.
	assert.Equal(t, dispatch.DecisionRequestApproval, m["dispatch_decision"])

	require.NotNil(t, store.updates)
	assert.Equal(t, "plumbing", store.updates["category"])
	assert.Equal(t, 14000, store.updates["price_mid_pence"])
	assert.Equal(t, dispatch.DecisionRequestApproval, store.updates["dispatch_decision"])
}

func TestApproveIssueRejectsTerminalIssue(t *testing.T) {
	store := &stubIssueStore{}
	issue := &persistence.Issue{ID: "iss-2", Status: persistence.StatusCancelled}

	tool := NewApproveIssueTool(store, nil, issue)
	result, err := tool.Exec(context.Background(), map[string]any{"approved_by": "landlord"})
	require.NoError(t, err)

	m := result.(map[string]any)
	assert.Equal(t, false, m["success"])
	assert.Nil(t, store.updates)
}

type stubSettingsStore struct {
	settings persistence.LandlordSettings
	saved    *persistence.LandlordSettings
}

func (s *stubSettingsStore) GetLandlordSettings(string) (*persistence.LandlordSettings, error) {
	settings := s.settings
	return &settings, nil
}

func (s *stubSettingsStore) UpdateLandlordSettings(settings *persistence.LandlordSettings) error {
	s.saved = settings
	return nil
}

func TestUpdateLandlordSettingsPartialUpdate(t *testing.T) {
	store := &stubSettingsStore{settings: persistence.LandlordSettings{
		LandlordID:         "ll-1",
		AutoApproveCeiling: 15000,
		ApprovalFloor:      30000,
	}}

	tool := NewUpdateLandlordSettingsTool(store, "ll-1")
	result, err := tool.Exec(context.Background(), map[string]any{
		"auto_approve_ceiling_pence": float64(20000),
		"auto_approve_categories":    []any{"plumbing", "locks"},
	})
	require.NoError(t, err)

	m := result.(map[string]any)
	assert.Equal(t, true, m["success"])
	require.NotNil(t, store.saved)
	assert.Equal(t, 20000, store.saved.AutoApproveCeiling)
	assert.Equal(t, 30000, store.saved.ApprovalFloor)
	assert.Equal(t, []string{"plumbing", "locks"}, store.saved.AutoApproveCategories)
}

func TestUpdateLandlordSettingsRejectsInvertedThresholds(t *testing.T) {
	store := &stubSettingsStore{settings: persistence.LandlordSettings{
		LandlordID:    "ll-1",
		ApprovalFloor: 30000,
	}}

	tool := NewUpdateLandlordSettingsTool(store, "ll-1")
	result, err := tool.Exec(context.Background(), map[string]any{
		"auto_approve_ceiling_pence": float64(40000),
	})
	require.NoError(t, err)

	m := result.(map[string]any)
	assert.Equal(t, false, m["success"])
	assert.Nil(t, store.saved)
}
