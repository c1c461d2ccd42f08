// Package workers implements the specialist conversation workers. Each
// worker wraps a fixed system prompt, a tool subset, and sampling
// configuration around the turn driver, then post-processes the turn for
// handoff and state-update signals.
package workers

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"propline/pkg/llm"
	"propline/pkg/logx"
	"propline/pkg/persistence"
	"propline/pkg/toolloop"
	"propline/pkg/tools"
)

// Name identifies a worker.
type Name string

// The five worker identifiers. Inspector is declared for the handoff schema
// but has no implementation yet.
const (
	WorkerTenant    Name = "tenant"
	WorkerTriage    Name = "triage"
	WorkerDispatch  Name = "dispatch"
	WorkerLandlord  Name = "landlord"
	WorkerInspector Name = "inspector"
)

// ValidName reports whether s names a known worker.
func ValidName(s string) bool {
	switch Name(s) {
	case WorkerTenant, WorkerTriage, WorkerDispatch, WorkerLandlord, WorkerInspector:
		return true
	default:
		return false
	}
}

// Sampling temperatures per worker. Triage and dispatch must be consistent
// run to run; tenant and landlord conversations read better with some warmth.
const (
	tenantTemperature   = 0.7
	landlordTemperature = 0.6
	triageTemperature   = 0.2
	dispatchTemperature = 0.2
)

// historyWindow is how many recent conversation messages each worker sees.
const historyWindow = 10

// Context is the ephemeral per-turn read model a worker executes against.
// Assembled fresh on every call; never persisted.
type Context struct {
	Role     string // "tenant" or "landlord"
	Phone    string
	Tenant   *persistence.Tenant
	Property *persistence.Property
	Landlord *persistence.Landlord
	Settings *persistence.LandlordSettings
	Issue    *persistence.Issue
	History  []persistence.Message
}

// Result is a worker's post-processed turn outcome.
type Result struct {
	// Response is the text to send back over the transport.
	Response string

	// NextWorker is set when the turn's tool calls contained a successful
	// handoff signal; the last one wins.
	NextWorker Name

	// StateUpdates is the merged arguments of every successful
	// update_issue_state call, later calls overwriting earlier ones
	// field by field.
	StateUpdates map[string]any

	// Escalated is set when the worker flagged the conversation for a human.
	Escalated        bool
	EscalationReason string

	// Degraded marks a turn that fell back to the apology response.
	Degraded bool

	// ToolCalls is the raw execution log, kept for auditing.
	ToolCalls []tools.CallResult
}

// Worker executes one conversation phase.
type Worker struct {
	name        Name
	prompt      *template.Template
	temperature float32
	maxTokens   int
	driver      *toolloop.Driver
	buildTools  func(wctx *Context) *tools.Registry
	logger      *logx.Logger
}

type promptData struct {
	TenantName        string
	PropertyAddress   string
	LandlordName      string
	IssueDescription  string
	IssueStatus       string
	DispatchDecision  string
	DispatchReason    string
	EstimateMidPounds string
	HasIssue          bool
	ToolDocs          string
}

func newWorker(name Name, promptText string, temperature float32, maxTokens int, driver *toolloop.Driver, buildTools func(*Context) *tools.Registry) (*Worker, error) {
	tmpl, err := template.New(string(name)).Parse(promptText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s prompt template: %w", name, err)
	}
	return &Worker{
		name:        name,
		prompt:      tmpl,
		temperature: temperature,
		maxTokens:   maxTokens,
		driver:      driver,
		buildTools:  buildTools,
		logger:      logx.NewLogger(fmt.Sprintf("worker.%s", name)),
	}, nil
}

// Name returns the worker identifier.
func (w *Worker) Name() Name {
	return w.name
}

// Execute runs one turn: render the system prompt, replay recent history,
// drive the tool loop, then extract the handoff and state-update signals
// from the tool-call log.
func (w *Worker) Execute(ctx context.Context, message string, wctx *Context) (*Result, error) {
	registry := w.buildTools(wctx)

	systemPrompt, err := w.renderPrompt(wctx, registry)
	if err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, historyWindow+2)
	messages = append(messages, llm.NewSystemMessage(systemPrompt))
	messages = append(messages, historyMessages(wctx.History)...)
	messages = append(messages, llm.NewUserMessage(message))

	outcome := w.driver.Run(ctx, messages, toolloop.Options{
		Registry:      registry,
		MaxTokens:     w.maxTokens,
		Temperature:   w.temperature,
		MaxIterations: toolloop.DefaultMaxIterations,
	})

	result := &Result{
		Response:  outcome.Response,
		Degraded:  outcome.Degraded,
		ToolCalls: outcome.ToolCalls,
	}
	w.extractSignals(outcome.ToolCalls, result)

	w.logger.Info("Turn complete: %d tool calls, handoff=%q, %d state updates",
		len(outcome.ToolCalls), result.NextWorker, len(result.StateUpdates))
	return result, nil
}

func (w *Worker) renderPrompt(wctx *Context, registry *tools.Registry) (string, error) {
	data := promptData{
		ToolDocs: tools.GenerateDocumentation(registry.Tools()),
	}
	if wctx.Tenant != nil {
		data.TenantName = wctx.Tenant.Name
	}
	if wctx.Property != nil {
		data.PropertyAddress = wctx.Property.Address
	}
	if wctx.Landlord != nil {
		data.LandlordName = wctx.Landlord.Name
	}
	if wctx.Issue != nil {
		data.HasIssue = true
		data.IssueDescription = wctx.Issue.Description
		data.IssueStatus = wctx.Issue.Status
		data.DispatchDecision = wctx.Issue.DispatchDecision
		data.DispatchReason = wctx.Issue.DispatchReason
		data.EstimateMidPounds = fmt.Sprintf("%.2f", float64(wctx.Issue.PriceMidPence)/100)
	}

	var sb strings.Builder
	if err := w.prompt.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", w.name, err)
	}
	return sb.String(), nil
}

// historyMessages maps the most recent stored messages into completion
// messages: inbound becomes user, outbound becomes assistant.
func historyMessages(history []persistence.Message) []llm.Message {
	start := 0
	if len(history) > historyWindow {
		start = len(history) - historyWindow
	}

	out := make([]llm.Message, 0, len(history)-start)
	for _, msg := range history[start:] {
		if msg.Body == "" {
			continue
		}
		if msg.Direction == persistence.DirectionInbound {
			out = append(out, llm.NewUserMessage(msg.Body))
		} else {
			out = append(out, llm.NewAssistantMessage(msg.Body))
		}
	}
	return out
}

// extractSignals scans the execution log for the signal tools. Only
// successful invocations count; a failed handoff must not move the
// conversation.
func (w *Worker) extractSignals(calls []tools.CallResult, result *Result) {
	for i := range calls {
		call := &calls[i]
		if call.IsError {
			continue
		}
		switch call.Name {
		case tools.ToolHandoff:
			if worker, ok := call.Args["worker"].(string); ok && ValidName(worker) {
				result.NextWorker = Name(worker)
			}
		case tools.ToolUpdateIssueState:
			if result.StateUpdates == nil {
				result.StateUpdates = make(map[string]any)
			}
			for k, v := range call.Args {
				result.StateUpdates[k] = v
			}
		case tools.ToolEscalate:
			result.Escalated = true
			if reason, ok := call.Args["reason"].(string); ok {
				result.EscalationReason = reason
			}
		}
	}
}
