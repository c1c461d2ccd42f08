// Package dispatch decides whether a repair may proceed without landlord
// approval. The evaluator is a pure function over the issue, its price
// estimate, and the landlord's configured thresholds.
package dispatch

import (
	"fmt"

	"propline/pkg/persistence"
)

// Decision values.
const (
	DecisionAutoDispatch    = "auto_dispatch"
	DecisionRequestApproval = "request_approval"
	DecisionEscalate        = "escalate"
)

// Urgency tiers.
const (
	UrgencyLow       = "low"
	UrgencyMedium    = "medium"
	UrgencyHigh      = "high"
	UrgencyEmergency = "emergency"
)

// Default thresholds, used when a landlord has not configured their own.
const (
	// DefaultAutoApproveCeilingPence caps the mid estimate for auto-dispatch.
	DefaultAutoApproveCeilingPence = 15000
	// DefaultApprovalFloorPence is the mid estimate above which approval is
	// always required.
	DefaultApprovalFloorPence = 30000
	// MinAutoDispatchConfidence is the estimate confidence needed to
	// auto-dispatch.
	MinAutoDispatchConfidence = 70
	// MaxLowConfidence is the confidence below which nothing auto-dispatches.
	MaxLowConfidence = 60
)

// emergencyCategories always auto-dispatch regardless of price.
//
//nolint:gochecknoglobals // Fixed safety category set
var emergencyCategories = map[string]bool{
	"plumbing_emergency":   true,
	"electrical_emergency": true,
	"water_leak":           true,
	"security":             true,
}

// Decision is the evaluator's output: what to do and why.
type Decision struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// Evaluate applies the decision ladder in order; the first matching rule wins.
// Safety rules (urgency, emergency category) are checked before any price or
// confidence gate, and those gates before the default.
func Evaluate(issue *persistence.Issue, estimate Estimate, settings *persistence.LandlordSettings) Decision {
	ceiling := DefaultAutoApproveCeilingPence
	floor := DefaultApprovalFloorPence
	if settings != nil && settings.AutoApproveCeiling > 0 {
		ceiling = settings.AutoApproveCeiling
	}
	if settings != nil && settings.ApprovalFloor > 0 {
		floor = settings.ApprovalFloor
	}

	// Rule 1: emergencies dispatch immediately, whatever they cost.
	if issue.Urgency == UrgencyEmergency {
		return Decision{
			Action: DecisionAutoDispatch,
			Reason: "emergency urgency overrides all budget and category gates",
		}
	}

	// Rule 2: safety-critical categories dispatch immediately.
	if emergencyCategories[issue.Category] {
		return Decision{
			Action: DecisionAutoDispatch,
			Reason: fmt.Sprintf("category %s is pre-approved for dispatch", issue.Category),
		}
	}

	// Rule 3: low-confidence or high-value estimates never auto-dispatch.
	// This gate also binds landlord-whitelisted categories: the whitelist
	// waives the price ceiling, not the sanity checks.
	if estimate.Confidence < MaxLowConfidence || estimate.MidPence > floor {
		return Decision{
			Action: DecisionRequestApproval,
			Reason: fmt.Sprintf("estimate needs landlord approval (confidence %d, mid £%.2f)",
				estimate.Confidence, float64(estimate.MidPence)/100),
		}
	}

	// Landlord-whitelisted categories skip the ceiling once the estimate is
	// sane.
	if autoApproveCategory(issue.Category, settings) {
		return Decision{
			Action: DecisionAutoDispatch,
			Reason: fmt.Sprintf("category %s is whitelisted by the landlord", issue.Category),
		}
	}

	// Rule 4: cheap, confident estimates dispatch automatically.
	if estimate.MidPence <= ceiling && estimate.Confidence >= MinAutoDispatchConfidence {
		return Decision{
			Action: DecisionAutoDispatch,
			Reason: fmt.Sprintf("estimate within auto-approve ceiling (mid £%.2f, confidence %d)",
				float64(estimate.MidPence)/100, estimate.Confidence),
		}
	}

	// Rule 5: everything else waits for the landlord.
	return Decision{
		Action: DecisionRequestApproval,
		Reason: "no auto-dispatch rule matched",
	}
}

// EvaluateWithBudget wraps Evaluate with the landlord's monthly budget check.
// An auto-dispatch that would push spend past the budget ceiling escalates
// instead: a human decides whether to overrun or hold the job.
func EvaluateWithBudget(issue *persistence.Issue, estimate Estimate, settings *persistence.LandlordSettings) Decision {
	decision := Evaluate(issue, estimate, settings)
	if decision.Action != DecisionAutoDispatch || settings == nil || settings.MonthlyBudget <= 0 {
		return decision
	}

	// Emergencies still go out; the budget check never blocks safety work.
	if issue.Urgency == UrgencyEmergency || emergencyCategories[issue.Category] {
		return decision
	}

	if settings.MonthlySpend+estimate.MidPence > settings.MonthlyBudget {
		return Decision{
			Action: DecisionEscalate,
			Reason: fmt.Sprintf("auto-dispatch would exceed monthly budget (spend £%.2f + est £%.2f > £%.2f)",
				float64(settings.MonthlySpend)/100, float64(estimate.MidPence)/100, float64(settings.MonthlyBudget)/100),
		}
	}
	return decision
}

func autoApproveCategory(category string, settings *persistence.LandlordSettings) bool {
	if settings == nil {
		return false
	}
	for _, c := range settings.AutoApproveCategories {
		if c == category {
			return true
		}
	}
	return false
}
