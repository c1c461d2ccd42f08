package tools

import (
	"context"
	"fmt"
)

// HandoffTool signals that control of the current turn should pass to a
// different worker. It performs no side effects: the orchestrator scans the
// tool-call log after the worker finishes and acts on the last handoff seen.
type HandoffTool struct{}

// NewHandoffTool creates the handoff signal tool.
func NewHandoffTool() *HandoffTool {
	return &HandoffTool{}
}

// Name returns the tool identifier.
func (t *HandoffTool) Name() string {
	return ToolHandoff
}

// Definition returns the backend-facing tool definition.
func (t *HandoffTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolHandoff,
		Description: "Hand the conversation to a different specialist worker. Use when the current phase of the issue is complete and another worker should take over.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"worker": {
					Type:        "string",
					Description: "The worker that should take over this conversation",
					Enum:        workerNames,
				},
				"reason": {
					Type:        "string",
					Description: "Why the handoff is needed",
				},
			},
			Required: []string{"worker", "reason"},
		},
	}
}

// PromptDocumentation returns markdown documentation for prompts.
func (t *HandoffTool) PromptDocumentation() string {
	return `- **handoff_to_worker** - Pass control of this conversation to another worker
  - Parameters: worker (tenant|triage|dispatch|landlord|inspector, REQUIRED), reason (REQUIRED)
  - The handoff happens after your reply; do not keep responding once you hand off`
}

// Exec echoes the handoff signal back as a successful result.
func (t *HandoffTool) Exec(_ context.Context, args map[string]any) (any, error) {
	worker := stringArg(args, "worker")
	if worker == "" {
		return errorResult("worker is required"), nil
	}
	valid := false
	for _, name := range workerNames {
		if worker == name {
			valid = true
			break
		}
	}
	if !valid {
		return errorResult(fmt.Sprintf("unknown worker: %s", worker)), nil
	}
	return successResult(map[string]any{
		"handoff": worker,
		"reason":  stringArg(args, "reason"),
	}), nil
}

// UpdateIssueStateTool signals a partial issue-state update. Like the handoff
// tool it is a pure signal: the worker merges all invocations' arguments into
// its result and the orchestrator persists the merged delta.
type UpdateIssueStateTool struct{}

// NewUpdateIssueStateTool creates the issue-state signal tool.
func NewUpdateIssueStateTool() *UpdateIssueStateTool {
	return &UpdateIssueStateTool{}
}

// Name returns the tool identifier.
func (t *UpdateIssueStateTool) Name() string {
	return ToolUpdateIssueState
}

// Definition returns the backend-facing tool definition.
func (t *UpdateIssueStateTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolUpdateIssueState,
		Description: "Record new information about the current maintenance issue. Only pass the fields you learned this turn.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"status": {
					Type:        "string",
					Description: "New lifecycle status for the issue",
					Enum:        issueStatuses,
				},
				"urgency": {
					Type:        "string",
					Description: "How urgent the issue is",
					Enum:        urgencyTiers,
				},
				"issue_category": {
					Type:        "string",
					Description: "Maintenance category, e.g. plumbing, electrical, heating",
				},
				"issue_description": {
					Type:        "string",
					Description: "Clear description of the reported problem",
				},
				"tenant_availability": {
					Type:        "string",
					Description: "When the tenant is available for access",
				},
				"access_instructions": {
					Type:        "string",
					Description: "How a contractor gets access to the property",
				},
			},
		},
	}
}

// PromptDocumentation returns markdown documentation for prompts.
func (t *UpdateIssueStateTool) PromptDocumentation() string {
	return `- **update_issue_state** - Record details you learned about the issue
  - Parameters (all optional): status, urgency, issue_category, issue_description, tenant_availability, access_instructions
  - Call whenever the tenant or landlord gives you new information`
}

// Exec echoes the requested updates back as a successful result.
func (t *UpdateIssueStateTool) Exec(_ context.Context, args map[string]any) (any, error) {
	updates := make(map[string]any, len(args))
	for k, v := range args {
		updates[k] = v
	}
	return successResult(map[string]any{"updates": updates}), nil
}

// EscalateTool signals that a human operator should review the conversation.
// Pure audit/alerting signal; the tool-call log carries it to the turn record.
type EscalateTool struct{}

// NewEscalateTool creates the escalation signal tool.
func NewEscalateTool() *EscalateTool {
	return &EscalateTool{}
}

// Name returns the tool identifier.
func (t *EscalateTool) Name() string {
	return ToolEscalate
}

// Definition returns the backend-facing tool definition.
func (t *EscalateTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolEscalate,
		Description: "Flag this conversation for a human operator. Use for safety concerns, repeated failures, or anything outside your remit.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"reason": {
					Type:        "string",
					Description: "Why human attention is needed",
				},
				"urgency": {
					Type:        "string",
					Description: "How quickly a human needs to look at this",
					Enum:        urgencyTiers,
				},
			},
			Required: []string{"reason", "urgency"},
		},
	}
}

// PromptDocumentation returns markdown documentation for prompts.
func (t *EscalateTool) PromptDocumentation() string {
	return `- **escalate_to_human** - Flag the conversation for a human operator
  - Parameters: reason (REQUIRED), urgency (low|medium|high|emergency, REQUIRED)
  - Keep talking to the user after escalating; a human will join when available`
}

// Exec echoes the escalation signal back as a successful result.
func (t *EscalateTool) Exec(_ context.Context, args map[string]any) (any, error) {
	reason := stringArg(args, "reason")
	if reason == "" {
		return errorResult("reason is required"), nil
	}
	return successResult(map[string]any{
		"escalated": true,
		"reason":    reason,
		"urgency":   stringArg(args, "urgency"),
	}), nil
}
