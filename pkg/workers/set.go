package workers

import (
	"context"
	"fmt"

	"propline/pkg/dispatch"
	"propline/pkg/llm"
	"propline/pkg/logx"
	"propline/pkg/notify"
	"propline/pkg/persistence"
	"propline/pkg/toolloop"
	"propline/pkg/tools"
)

// Store is the persistence access the worker tool sets need.
type Store interface {
	UpdateIssueFields(id string, fields map[string]any) error
	SearchCatalog(query string) ([]persistence.CatalogItem, error)
	GetLandlordSettings(landlordID string) (*persistence.LandlordSettings, error)
	UpdateLandlordSettings(settings *persistence.LandlordSettings) error
	AddMonthlySpend(landlordID string, pence int) error
}

// Set holds the implemented workers, each with its own tool subset. Tool
// registries are built per turn because domain tool handlers close over the
// turn's issue and landlord records.
type Set struct {
	workers map[Name]*Worker
	logger  *logx.Logger
}

// NewSet builds the worker set against one backend client and store.
func NewSet(client llm.Client, store Store, notifier notify.Notifier, maxTokens int) (*Set, error) {
	driver := toolloop.New(client, logx.NewLogger("toolloop"))
	estimator := dispatch.NewEstimator(store)

	commonTools := func() []tools.Tool {
		return []tools.Tool{
			tools.NewHandoffTool(),
			tools.NewUpdateIssueStateTool(),
			tools.NewEscalateTool(),
		}
	}

	tenantTools := func(_ *Context) *tools.Registry {
		return tools.NewRegistry(commonTools()...)
	}

	triageTools := func(wctx *Context) *tools.Registry {
		registry := tools.NewRegistry(commonTools()...)
		if wctx.Issue != nil {
			registry.Add(tools.NewCategorizeAndPriceTool(store, estimator, wctx.Issue, wctx.Settings))
		}
		registry.Add(tools.NewSearchCatalogTool(store))
		registry.Add(tools.NewCheckAvailabilityTool())
		return registry
	}

	dispatchTools := func(wctx *Context) *tools.Registry {
		registry := tools.NewRegistry(commonTools()...)
		if wctx.Issue != nil {
			registry.Add(tools.NewApproveIssueTool(store, store, wctx.Issue))
			registry.Add(tools.NewRejectIssueTool(store, wctx.Issue))
			registry.Add(tools.NewNotifyLandlordTool(store, notifier, wctx.Issue, wctx.Landlord))
		}
		return registry
	}

	landlordTools := func(wctx *Context) *tools.Registry {
		registry := tools.NewRegistry(commonTools()...)
		if wctx.Landlord != nil {
			registry.Add(tools.NewUpdateLandlordSettingsTool(store, wctx.Landlord.ID))
			registry.Add(tools.NewSpendingSummaryTool(store, wctx.Landlord.ID))
		}
		if wctx.Issue != nil {
			registry.Add(tools.NewApproveIssueTool(store, store, wctx.Issue))
			registry.Add(tools.NewRejectIssueTool(store, wctx.Issue))
		}
		return registry
	}

	specs := []struct {
		name        Name
		prompt      string
		temperature float32
		buildTools  func(*Context) *tools.Registry
	}{
		{WorkerTenant, tenantPrompt, tenantTemperature, tenantTools},
		{WorkerTriage, triagePrompt, triageTemperature, triageTools},
		{WorkerDispatch, dispatchPrompt, dispatchTemperature, dispatchTools},
		{WorkerLandlord, landlordPrompt, landlordTemperature, landlordTools},
	}

	set := &Set{
		workers: make(map[Name]*Worker, len(specs)),
		logger:  logx.NewLogger("workers"),
	}
	for _, spec := range specs {
		worker, err := newWorker(spec.name, spec.prompt, spec.temperature, maxTokens, driver, spec.buildTools)
		if err != nil {
			return nil, err
		}
		set.workers[spec.name] = worker
	}
	return set, nil
}

// Execute runs the named worker for one turn. Handing off to a declared but
// unimplemented worker (inspector) is an error the caller must handle.
func (s *Set) Execute(ctx context.Context, name Name, message string, wctx *Context) (*Result, error) {
	worker, ok := s.workers[name]
	if !ok {
		return nil, fmt.Errorf("worker %q is not implemented", name)
	}
	return worker.Execute(ctx, message, wctx)
}
