package tools

// Tool name constants - use these instead of magic strings to prevent typos.
const (
	// Common signal tools, available to every worker.
	ToolHandoff          = "handoff_to_worker"
	ToolUpdateIssueState = "update_issue_state"
	ToolEscalate         = "escalate_to_human"

	// Triage tools.
	ToolCategorizeAndPrice = "categorize_and_price"
	ToolSearchCatalog      = "search_catalog"
	ToolCheckAvailability  = "check_availability"

	// Dispatch tools.
	ToolApproveIssue   = "approve_issue"
	ToolRejectIssue    = "reject_issue"
	ToolNotifyLandlord = "notify_landlord"

	// Landlord tools.
	ToolUpdateLandlordSettings = "update_landlord_settings"
	ToolSpendingSummary        = "get_spending_summary"
)

// Worker identifiers accepted by the handoff tool. The workers package owns
// the typed enum; this list only feeds the tool schema shown to the backend.
//
//nolint:gochecknoglobals // Schema enum shared across tool definitions
var workerNames = []string{"tenant", "triage", "dispatch", "landlord", "inspector"}

// Issue status values accepted by update_issue_state.
//
//nolint:gochecknoglobals // Schema enum shared across tool definitions
var issueStatuses = []string{
	"new", "awaiting_details", "reported", "approved",
	"dispatched", "completed", "resolved_diy", "cancelled",
}

// Urgency tiers accepted by triage and escalation tools.
//
//nolint:gochecknoglobals // Schema enum shared across tool definitions
var urgencyTiers = []string{"low", "medium", "high", "emergency"}
