package tools

import (
	"context"
	"fmt"

	"propline/pkg/persistence"
)

// SettingsStore is the access the landlord tools need.
type SettingsStore interface {
	GetLandlordSettings(landlordID string) (*persistence.LandlordSettings, error)
	UpdateLandlordSettings(settings *persistence.LandlordSettings) error
}

// UpdateLandlordSettingsTool changes a landlord's auto-approval
// configuration. It is the only writer of LandlordSettings besides the
// spend tracker.
type UpdateLandlordSettingsTool struct {
	store      SettingsStore
	landlordID string
}

// NewUpdateLandlordSettingsTool creates the settings tool for one landlord.
func NewUpdateLandlordSettingsTool(store SettingsStore, landlordID string) *UpdateLandlordSettingsTool {
	return &UpdateLandlordSettingsTool{store: store, landlordID: landlordID}
}

// Name returns the tool identifier.
func (t *UpdateLandlordSettingsTool) Name() string {
	return ToolUpdateLandlordSettings
}

// Definition returns the backend-facing tool definition.
func (t *UpdateLandlordSettingsTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolUpdateLandlordSettings,
		Description: "Change the landlord's auto-approval settings. Only pass the fields being changed. All amounts are in pence.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"auto_approve_ceiling_pence": {
					Type:        "integer",
					Description: "Repairs estimated at or below this amount may be dispatched without asking",
				},
				"approval_floor_pence": {
					Type:        "integer",
					Description: "Repairs estimated above this amount always require approval",
				},
				"auto_approve_categories": {
					Type:        "array",
					Description: "Repair categories that never need approval",
					Items:       &Property{Type: "string"},
				},
				"monthly_budget_pence": {
					Type:        "integer",
					Description: "Monthly maintenance budget ceiling; 0 disables the budget check",
				},
				"notify_on_new_issue": {
					Type:        "boolean",
					Description: "Whether to message the landlord when a tenant reports a new issue",
				},
			},
		},
	}
}

// PromptDocumentation returns markdown documentation for prompts.
func (t *UpdateLandlordSettingsTool) PromptDocumentation() string {
	return `- **update_landlord_settings** - Change auto-approval settings
  - Parameters (all optional): auto_approve_ceiling_pence, approval_floor_pence, auto_approve_categories, monthly_budget_pence, notify_on_new_issue
  - Confirm the change back to the landlord in plain terms (pounds, not pence)`
}

// Exec applies a partial settings update.
func (t *UpdateLandlordSettingsTool) Exec(_ context.Context, args map[string]any) (any, error) {
	settings, err := t.store.GetLandlordSettings(t.landlordID)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to load settings: %v", err)), nil
	}

	if v := intArg(args, "auto_approve_ceiling_pence", -1); v >= 0 {
		settings.AutoApproveCeiling = v
	}
	if v := intArg(args, "approval_floor_pence", -1); v >= 0 {
		settings.ApprovalFloor = v
	}
	if v := intArg(args, "monthly_budget_pence", -1); v >= 0 {
		settings.MonthlyBudget = v
	}
	if v, ok := args["notify_on_new_issue"].(bool); ok {
		settings.NotifyOnNewIssue = v
	}
	if raw, ok := args["auto_approve_categories"].([]any); ok {
		categories := make([]string, 0, len(raw))
		for _, item := range raw {
			if s, ok := item.(string); ok {
				categories = append(categories, s)
			}
		}
		settings.AutoApproveCategories = categories
	}

	if settings.ApprovalFloor > 0 && settings.AutoApproveCeiling > settings.ApprovalFloor {
		return errorResult("auto-approve ceiling cannot exceed the approval floor"), nil
	}

	if err := t.store.UpdateLandlordSettings(settings); err != nil {
		return errorResult(fmt.Sprintf("failed to save settings: %v", err)), nil
	}

	return successResult(map[string]any{
		"auto_approve_ceiling_pence": settings.AutoApproveCeiling,
		"approval_floor_pence":       settings.ApprovalFloor,
		"auto_approve_categories":    settings.AutoApproveCategories,
		"monthly_budget_pence":       settings.MonthlyBudget,
		"notify_on_new_issue":        settings.NotifyOnNewIssue,
	}), nil
}

// SpendingSummaryTool reports the landlord's budget position.
type SpendingSummaryTool struct {
	store      SettingsStore
	landlordID string
}

// NewSpendingSummaryTool creates the spending summary tool for one landlord.
func NewSpendingSummaryTool(store SettingsStore, landlordID string) *SpendingSummaryTool {
	return &SpendingSummaryTool{store: store, landlordID: landlordID}
}

// Name returns the tool identifier.
func (t *SpendingSummaryTool) Name() string {
	return ToolSpendingSummary
}

// Definition returns the backend-facing tool definition.
func (t *SpendingSummaryTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolSpendingSummary,
		Description: "Get the landlord's maintenance spend and remaining budget for the current month.",
		InputSchema: InputSchema{Type: "object", Properties: map[string]Property{}},
	}
}

// PromptDocumentation returns markdown documentation for prompts.
func (t *SpendingSummaryTool) PromptDocumentation() string {
	return `- **get_spending_summary** - Current month's maintenance spend and budget
  - No parameters
  - Report amounts back in pounds`
}

// Exec returns the budget position.
func (t *SpendingSummaryTool) Exec(_ context.Context, _ map[string]any) (any, error) {
	settings, err := t.store.GetLandlordSettings(t.landlordID)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to load settings: %v", err)), nil
	}

	remaining := 0
	if settings.MonthlyBudget > 0 {
		remaining = settings.MonthlyBudget - settings.MonthlySpend
	}
	return successResult(map[string]any{
		"monthly_budget_pence":    settings.MonthlyBudget,
		"monthly_spend_pence":     settings.MonthlySpend,
		"remaining_budget_pence":  remaining,
		"budget_check_configured": settings.MonthlyBudget > 0,
	}), nil
}
