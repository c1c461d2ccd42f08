package tools

import (
	"context"
	"fmt"
	"time"

	"propline/pkg/notify"
	"propline/pkg/persistence"
)

// SpendTracker is the settings write access the approval tool needs.
type SpendTracker interface {
	AddMonthlySpend(landlordID string, pence int) error
}

// ApproveIssueTool marks the current issue approved for dispatch and books
// the estimated cost against the landlord's monthly spend.
type ApproveIssueTool struct {
	store   IssueUpdater
	spend   SpendTracker
	issue   *persistence.Issue
	nowFunc func() time.Time
}

// NewApproveIssueTool creates the approval tool bound to one issue.
func NewApproveIssueTool(store IssueUpdater, spend SpendTracker, issue *persistence.Issue) *ApproveIssueTool {
	return &ApproveIssueTool{store: store, spend: spend, issue: issue, nowFunc: time.Now}
}

// Name returns the tool identifier.
func (t *ApproveIssueTool) Name() string {
	return ToolApproveIssue
}

// Definition returns the backend-facing tool definition.
func (t *ApproveIssueTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolApproveIssue,
		Description: "Approve the repair so a contractor can be booked. Use when the landlord has approved, or when the dispatch decision is auto_dispatch.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"approved_by": {
					Type:        "string",
					Description: "Who approved the work",
					Enum:        []string{"landlord", "auto_dispatch"},
				},
			},
			Required: []string{"approved_by"},
		},
	}
}

// PromptDocumentation returns markdown documentation for prompts.
func (t *ApproveIssueTool) PromptDocumentation() string {
	return `- **approve_issue** - Approve the repair for dispatch
  - Parameters: approved_by (landlord|auto_dispatch, REQUIRED)
  - Only call when the dispatch decision allows it or the landlord has said yes`
}

// Exec approves the issue and records the spend.
func (t *ApproveIssueTool) Exec(_ context.Context, args map[string]any) (any, error) {
	approvedBy := stringArg(args, "approved_by")
	if approvedBy == "" {
		return errorResult("approved_by is required"), nil
	}
	if persistence.IsTerminalStatus(t.issue.Status) {
		return errorResult(fmt.Sprintf("issue is already %s", t.issue.Status)), nil
	}

	now := t.nowFunc()
	if err := t.store.UpdateIssueFields(t.issue.ID, map[string]any{
		"status":               persistence.StatusApproved,
		"landlord_approved_at": now,
	}); err != nil {
		return errorResult(fmt.Sprintf("failed to approve issue: %v", err)), nil
	}

	if t.spend != nil && t.issue.PriceMidPence > 0 {
		if err := t.spend.AddMonthlySpend(t.issue.LandlordID, t.issue.PriceMidPence); err != nil {
			return errorResult(fmt.Sprintf("approved but failed to record spend: %v", err)), nil
		}
	}

	return successResult(map[string]any{
		"status":      persistence.StatusApproved,
		"approved_by": approvedBy,
	}), nil
}

// RejectIssueTool cancels the current issue with a reason.
type RejectIssueTool struct {
	store IssueUpdater
	issue *persistence.Issue
}

// NewRejectIssueTool creates the rejection tool bound to one issue.
func NewRejectIssueTool(store IssueUpdater, issue *persistence.Issue) *RejectIssueTool {
	return &RejectIssueTool{store: store, issue: issue}
}

// Name returns the tool identifier.
func (t *RejectIssueTool) Name() string {
	return ToolRejectIssue
}

// Definition returns the backend-facing tool definition.
func (t *RejectIssueTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolRejectIssue,
		Description: "Reject the repair. Use when the landlord declines the work.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"reason": {
					Type:        "string",
					Description: "Why the work was rejected",
				},
			},
			Required: []string{"reason"},
		},
	}
}

// PromptDocumentation returns markdown documentation for prompts.
func (t *RejectIssueTool) PromptDocumentation() string {
	return `- **reject_issue** - Reject the repair on the landlord's behalf
  - Parameters: reason (REQUIRED)
  - Tell the tenant what happens next after rejecting`
}

// Exec cancels the issue.
func (t *RejectIssueTool) Exec(_ context.Context, args map[string]any) (any, error) {
	reason := stringArg(args, "reason")
	if reason == "" {
		return errorResult("reason is required"), nil
	}
	if persistence.IsTerminalStatus(t.issue.Status) {
		return errorResult(fmt.Sprintf("issue is already %s", t.issue.Status)), nil
	}

	if err := t.store.UpdateIssueFields(t.issue.ID, map[string]any{
		"status":          persistence.StatusCancelled,
		"dispatch_reason": reason,
	}); err != nil {
		return errorResult(fmt.Sprintf("failed to reject issue: %v", err)), nil
	}
	return successResult(map[string]any{
		"status": persistence.StatusCancelled,
		"reason": reason,
	}), nil
}

// NotifyLandlordTool sends the landlord an out-of-band message about the
// current issue and records the notification timestamp.
type NotifyLandlordTool struct {
	store    IssueUpdater
	notifier notify.Notifier
	issue    *persistence.Issue
	landlord *persistence.Landlord
	nowFunc  func() time.Time
}

// NewNotifyLandlordTool creates the notification tool bound to one issue.
func NewNotifyLandlordTool(store IssueUpdater, notifier notify.Notifier, issue *persistence.Issue, landlord *persistence.Landlord) *NotifyLandlordTool {
	return &NotifyLandlordTool{store: store, notifier: notifier, issue: issue, landlord: landlord, nowFunc: time.Now}
}

// Name returns the tool identifier.
func (t *NotifyLandlordTool) Name() string {
	return ToolNotifyLandlord
}

// Definition returns the backend-facing tool definition.
func (t *NotifyLandlordTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolNotifyLandlord,
		Description: "Send the landlord a message about this issue, e.g. an approval request with the price estimate.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"message": {
					Type:        "string",
					Description: "The message to send to the landlord",
				},
			},
			Required: []string{"message"},
		},
	}
}

// PromptDocumentation returns markdown documentation for prompts.
func (t *NotifyLandlordTool) PromptDocumentation() string {
	return `- **notify_landlord** - Message the landlord about this issue
  - Parameters: message (REQUIRED)
  - Include the issue summary and price range when asking for approval`
}

// Exec sends the notification.
func (t *NotifyLandlordTool) Exec(ctx context.Context, args map[string]any) (any, error) {
	message := stringArg(args, "message")
	if message == "" {
		return errorResult("message is required"), nil
	}
	if t.landlord == nil {
		return errorResult("no landlord resolved for this issue"), nil
	}

	if err := t.notifier.NotifyLandlord(ctx, t.landlord.ID, t.landlord.Phone, message); err != nil {
		return errorResult(fmt.Sprintf("failed to notify landlord: %v", err)), nil
	}

	if err := t.store.UpdateIssueFields(t.issue.ID, map[string]any{
		"landlord_notified_at": t.nowFunc(),
	}); err != nil {
		return errorResult(fmt.Sprintf("notified but failed to record timestamp: %v", err)), nil
	}

	return successResult(map[string]any{"notified": true}), nil
}
