package tools

import (
	"context"
	"fmt"
	"time"

	"propline/pkg/dispatch"
	"propline/pkg/persistence"
)

// IssueUpdater is the write access triage and dispatch tools need.
type IssueUpdater interface {
	UpdateIssueFields(id string, fields map[string]any) error
}

// CatalogSearcher is the read access the catalog tools need.
type CatalogSearcher interface {
	SearchCatalog(query string) ([]persistence.CatalogItem, error)
}

// CategorizeAndPriceTool prices the current issue and records the dispatch
// decision. Handlers close over the turn's issue and settings, which is why
// registries are rebuilt per turn.
type CategorizeAndPriceTool struct {
	store     IssueUpdater
	estimator *dispatch.Estimator
	issue     *persistence.Issue
	settings  *persistence.LandlordSettings
}

// NewCategorizeAndPriceTool creates the pricing tool bound to one issue.
func NewCategorizeAndPriceTool(store IssueUpdater, estimator *dispatch.Estimator, issue *persistence.Issue, settings *persistence.LandlordSettings) *CategorizeAndPriceTool {
	return &CategorizeAndPriceTool{store: store, estimator: estimator, issue: issue, settings: settings}
}

// Name returns the tool identifier.
func (t *CategorizeAndPriceTool) Name() string {
	return ToolCategorizeAndPrice
}

// Definition returns the backend-facing tool definition.
func (t *CategorizeAndPriceTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolCategorizeAndPrice,
		Description: "Categorize the issue, estimate a repair price range, and record whether it can be dispatched automatically.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"category": {
					Type:        "string",
					Description: "Maintenance category, e.g. plumbing, electrical, heating, water_leak",
				},
				"urgency": {
					Type:        "string",
					Description: "How urgent the issue is",
					Enum:        urgencyTiers,
				},
				"description": {
					Type:        "string",
					Description: "Concise description of the problem, used to match catalog items",
				},
			},
			Required: []string{"category", "urgency", "description"},
		},
	}
}

// PromptDocumentation returns markdown documentation for prompts.
func (t *CategorizeAndPriceTool) PromptDocumentation() string {
	return `- **categorize_and_price** - Categorize the issue and get a price estimate plus dispatch decision
  - Parameters: category (REQUIRED), urgency (low|medium|high|emergency, REQUIRED), description (REQUIRED)
  - Call once you have enough detail; share the price range with the tenant afterwards`
}

// Exec prices the issue and persists the estimate and decision.
func (t *CategorizeAndPriceTool) Exec(ctx context.Context, args map[string]any) (any, error) {
	category := stringArg(args, "category")
	urgency := stringArg(args, "urgency")
	description := stringArg(args, "description")
	if category == "" || urgency == "" {
		return errorResult("category and urgency are required"), nil
	}

	estimate := t.estimator.EstimatePrice(ctx, category, description)

	// The evaluator reads the issue as it will be after this update.
	priced := *t.issue
	priced.Category = category
	priced.Urgency = urgency
	decision := dispatch.EvaluateWithBudget(&priced, estimate, t.settings)

	if err := t.store.UpdateIssueFields(t.issue.ID, map[string]any{
		"category":          category,
		"urgency":           urgency,
		"price_low_pence":   estimate.LowPence,
		"price_mid_pence":   estimate.MidPence,
		"price_high_pence":  estimate.HighPence,
		"price_confidence":  estimate.Confidence,
		"dispatch_decision": decision.Action,
		"dispatch_reason":   decision.Reason,
	}); err != nil {
		return errorResult(fmt.Sprintf("failed to save estimate: %v", err)), nil
	}

	return successResult(map[string]any{
		"category":          category,
		"urgency":           urgency,
		"estimate_low":      estimate.LowPence,
		"estimate_mid":      estimate.MidPence,
		"estimate_high":     estimate.HighPence,
		"confidence":        estimate.Confidence,
		"estimate_source":   estimate.Source,
		"dispatch_decision": decision.Action,
		"dispatch_reason":   decision.Reason,
	}), nil
}

// SearchCatalogTool looks up known service lines by keyword.
type SearchCatalogTool struct {
	catalog CatalogSearcher
}

// NewSearchCatalogTool creates the catalog search tool.
func NewSearchCatalogTool(catalog CatalogSearcher) *SearchCatalogTool {
	return &SearchCatalogTool{catalog: catalog}
}

// Name returns the tool identifier.
func (t *SearchCatalogTool) Name() string {
	return ToolSearchCatalog
}

// Definition returns the backend-facing tool definition.
func (t *SearchCatalogTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolSearchCatalog,
		Description: "Search the service catalog for known repair types and their price ranges.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"query": {
					Type:        "string",
					Description: "Keywords describing the repair, e.g. 'dripping tap'",
				},
			},
			Required: []string{"query"},
		},
	}
}

// PromptDocumentation returns markdown documentation for prompts.
func (t *SearchCatalogTool) PromptDocumentation() string {
	return `- **search_catalog** - Look up known repair types and their price ranges
  - Parameters: query (REQUIRED)
  - Use to check whether we already have a standard price for this kind of job`
}

// Exec searches the catalog.
func (t *SearchCatalogTool) Exec(_ context.Context, args map[string]any) (any, error) {
	query := stringArg(args, "query")
	if query == "" {
		return errorResult("query is required"), nil
	}

	items, err := t.catalog.SearchCatalog(query)
	if err != nil {
		return errorResult(fmt.Sprintf("catalog search failed: %v", err)), nil
	}

	matches := make([]map[string]any, 0, len(items))
	for _, item := range items {
		matches = append(matches, map[string]any{
			"name":            item.Name,
			"category":        item.Category,
			"min_price_pence": item.MinPricePence,
			"max_price_pence": item.MaxPricePence,
		})
	}
	return successResult(map[string]any{"matches": matches}), nil
}

// CheckAvailabilityTool proposes contractor visit slots. Scheduling against
// real contractor calendars is handled downstream; this returns the next
// working-day slots so the conversation can agree a window.
type CheckAvailabilityTool struct {
	now func() time.Time
}

// NewCheckAvailabilityTool creates the availability tool.
func NewCheckAvailabilityTool() *CheckAvailabilityTool {
	return &CheckAvailabilityTool{now: time.Now}
}

// Name returns the tool identifier.
func (t *CheckAvailabilityTool) Name() string {
	return ToolCheckAvailability
}

// Definition returns the backend-facing tool definition.
func (t *CheckAvailabilityTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolCheckAvailability,
		Description: "Get the next available contractor visit slots.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"days_ahead": {
					Type:        "integer",
					Description: "How many days ahead to look (default 5)",
				},
			},
		},
	}
}

// PromptDocumentation returns markdown documentation for prompts.
func (t *CheckAvailabilityTool) PromptDocumentation() string {
	return `- **check_availability** - Get upcoming contractor visit slots
  - Parameters: days_ahead (optional, default 5)
  - Offer the tenant two or three of the returned slots`
}

// Exec returns morning and afternoon slots on upcoming working days.
func (t *CheckAvailabilityTool) Exec(_ context.Context, args map[string]any) (any, error) {
	daysAhead := intArg(args, "days_ahead", 5)
	if daysAhead < 1 || daysAhead > 14 {
		daysAhead = 5
	}

	var slots []map[string]any
	day := t.now()
	for len(slots) < daysAhead*2 {
		day = day.AddDate(0, 0, 1)
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		date := day.Format("Monday 2 January")
		slots = append(slots,
			map[string]any{"date": date, "window": "08:00-12:00"},
			map[string]any{"date": date, "window": "13:00-17:00"},
		)
	}
	return successResult(map[string]any{"slots": slots}), nil
}
