// Package orchestrator routes inbound WhatsApp messages: it resolves the
// sender, assembles the per-turn context, selects and runs workers, follows
// handoff chains, and persists the turn.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"propline/pkg/logx"
	"propline/pkg/metrics"
	"propline/pkg/persistence"
	"propline/pkg/tools"
	"propline/pkg/workers"
)

// OnboardingReply is the fixed response for senders we cannot resolve. A
// deliberate terminal fast-path, not an error: no worker runs for it.
const OnboardingReply = "Hi! I don't recognise this number yet. Could you reply with your full name and the address of the property you're renting (or letting out), and I'll get you set up."

// WorkerUnknownSender marks responses produced by the onboarding fast-path,
// where no worker runs at all.
const WorkerUnknownSender workers.Name = "unknown_sender"

// maxHandoffHops caps how many additional workers one inbound message may
// chain through after the entry worker. The safety net against handoff
// cycles; chains are expected to be acyclic in practice.
const maxHandoffHops = 3

// historyFetch is how many stored messages the context carries.
const historyFetch = 20

// Sender roles.
const (
	RoleTenant   = "tenant"
	RoleLandlord = "landlord"
)

// InboundMessage is one message received from the transport.
type InboundMessage struct {
	From     string `json:"from"`
	Type     string `json:"type"` // text, audio, image, video
	Content  string `json:"content"`
	MediaURL string `json:"media_url,omitempty"`
}

// Response is what the transport should deliver back to the sender.
type Response struct {
	Message       string         `json:"message"`
	IssueID       string         `json:"issue_id,omitempty"`
	StateUpdates  map[string]any `json:"state_updates,omitempty"`
	WorkerUsed    workers.Name   `json:"worker_used,omitempty"`
	ToolsExecuted []string       `json:"tools_executed,omitempty"`
}

// Store is the persistence access routing needs.
type Store interface {
	GetTenantByPhone(phone string) (*persistence.Tenant, *persistence.Property, *persistence.Landlord, error)
	GetLandlordByPhone(phone string) (*persistence.Landlord, error)
	EnsureConversation(id string) error
	AppendMessage(m *persistence.Message) error
	RecentMessages(conversationID string, limit int) ([]persistence.Message, error)
	GetOpenIssue(tenantID, conversationID string) (*persistence.Issue, error)
	GetPendingIssueForLandlord(landlordID string) (*persistence.Issue, error)
	CreateIssue(issue *persistence.Issue) error
	UpdateIssueFields(id string, fields map[string]any) error
	AppendIssueMedia(id, mediaURL string) error
	GetLandlordSettings(landlordID string) (*persistence.LandlordSettings, error)
}

// WorkerSet executes a named worker for one turn.
type WorkerSet interface {
	Execute(ctx context.Context, name workers.Name, message string, wctx *workers.Context) (*workers.Result, error)
}

// Orchestrator is the routing core.
type Orchestrator struct {
	store       Store
	workers     WorkerSet
	recorder    *metrics.Recorder
	countryCode string
	logger      *logx.Logger
}

// New creates an orchestrator. recorder may be nil.
func New(store Store, workerSet WorkerSet, recorder *metrics.Recorder, countryCode string) *Orchestrator {
	return &Orchestrator{
		store:       store,
		workers:     workerSet,
		recorder:    recorder,
		countryCode: countryCode,
		logger:      logx.NewLogger("orchestrator"),
	}
}

// Route processes one inbound message end to end and always returns a
// user-facing response. Persistence failures after the workers have run are
// logged but do not block the reply: delivering the conversational answer
// outranks guaranteed write-through in this subsystem.
func (o *Orchestrator) Route(ctx context.Context, incoming InboundMessage) *Response {
	start := time.Now()

	// Step 1: identify the sender. Tenant lookup first, then landlord.
	phone := NormalizePhone(incoming.From, o.countryCode)
	wctx, conversationID, err := o.resolveSender(phone)
	if err != nil {
		o.logger.Error("sender resolution failed for %s: %v", phone, err)
		return &Response{Message: OnboardingReply, WorkerUsed: WorkerUnknownSender}
	}
	if wctx == nil {
		o.logger.Info("unknown sender %s, returning onboarding prompt", phone)
		o.recorder.RecordTurn(string(WorkerUnknownSender), "unknown_sender", time.Since(start).Seconds())
		return &Response{Message: OnboardingReply, WorkerUsed: WorkerUnknownSender}
	}

	// Step 2: build the rest of the context.
	if err := o.buildContext(wctx, conversationID, &incoming); err != nil {
		o.logger.Error("context assembly failed for %s: %v", conversationID, err)
		return &Response{Message: OnboardingReply, WorkerUsed: WorkerUnknownSender}
	}

	// Step 3: entry routing. The only data-driven worker selection; every
	// later transition comes from explicit handoff signals.
	entry := o.selectWorker(wctx)

	// Step 4: execute and follow handoffs.
	workerMessage := incoming.Content
	if workerMessage == "" && incoming.MediaURL != "" {
		workerMessage = fmt.Sprintf("[%s received]", incoming.Type)
	}
	finalWorker, result := o.runChain(ctx, entry, workerMessage, wctx)
	if result == nil {
		o.recorder.RecordTurn(string(entry), "error", time.Since(start).Seconds())
		return &Response{Message: OnboardingReply, WorkerUsed: entry}
	}

	// Step 5: apply accumulated state updates to the open issue.
	if len(result.StateUpdates) > 0 && wctx.Issue != nil {
		if err := o.store.UpdateIssueFields(wctx.Issue.ID, result.StateUpdates); err != nil {
			o.logger.Error("failed to persist state updates for issue %s: %v", wctx.Issue.ID, err)
		}
	}

	// Step 6: persist the turn.
	o.persistTurn(conversationID, &incoming, result.Response, finalWorker)

	outcome := "ok"
	if result.Degraded {
		outcome = "degraded"
	}
	o.recorder.RecordTurn(string(finalWorker), outcome, time.Since(start).Seconds())
	for i := range result.ToolCalls {
		call := &result.ToolCalls[i]
		o.recorder.RecordTool(call.Name, call.IsError)
		if call.Name == tools.ToolCategorizeAndPrice && !call.IsError {
			if fields, ok := call.Result.(map[string]any); ok {
				if decision, ok := fields["dispatch_decision"].(string); ok {
					o.recorder.RecordDispatchDecision(decision)
				}
			}
		}
	}

	resp := &Response{
		Message:      result.Response,
		StateUpdates: result.StateUpdates,
		WorkerUsed:   finalWorker,
	}
	if wctx.Issue != nil {
		resp.IssueID = wctx.Issue.ID
	}
	for i := range result.ToolCalls {
		resp.ToolsExecuted = append(resp.ToolsExecuted, result.ToolCalls[i].Name)
	}
	return resp
}

// resolveSender looks the phone up as tenant, then as landlord-segment lead.
// Returns a nil context when neither matches.
func (o *Orchestrator) resolveSender(phone string) (*workers.Context, string, error) {
	tenant, property, landlord, err := o.store.GetTenantByPhone(phone)
	if err != nil {
		return nil, "", err
	}
	if tenant != nil {
		wctx := &workers.Context{
			Role:     RoleTenant,
			Phone:    phone,
			Tenant:   tenant,
			Property: property,
			Landlord: landlord,
		}
		return wctx, fmt.Sprintf("%s_%s", RoleTenant, tenant.ID), nil
	}

	landlord, err = o.store.GetLandlordByPhone(phone)
	if err != nil {
		return nil, "", err
	}
	if landlord != nil {
		wctx := &workers.Context{
			Role:     RoleLandlord,
			Phone:    phone,
			Landlord: landlord,
		}
		return wctx, fmt.Sprintf("%s_%s", RoleLandlord, landlord.ID), nil
	}

	return nil, "", nil
}

// buildContext loads history, settings, and (for tenants) the open issue,
// lazily creating the conversation row and a fresh issue when needed.
func (o *Orchestrator) buildContext(wctx *workers.Context, conversationID string, incoming *InboundMessage) error {
	// Conversation row first: messages and issues reference it.
	if err := o.store.EnsureConversation(conversationID); err != nil {
		return err
	}

	history, err := o.store.RecentMessages(conversationID, historyFetch)
	if err != nil {
		return err
	}
	wctx.History = clipHistoryToBudget(history)

	if wctx.Landlord != nil {
		settings, err := o.store.GetLandlordSettings(wctx.Landlord.ID)
		if err != nil {
			o.logger.Warn("failed to load settings for landlord %s: %v", wctx.Landlord.ID, err)
		} else {
			wctx.Settings = settings
		}
	}

	if wctx.Role != RoleTenant {
		// Landlords act on their most recent issue awaiting a decision, so
		// the approval tools have something to bind to.
		if wctx.Landlord != nil {
			pending, err := o.store.GetPendingIssueForLandlord(wctx.Landlord.ID)
			if err != nil {
				return err
			}
			wctx.Issue = pending
		}
		return nil
	}

	issue, err := o.store.GetOpenIssue(wctx.Tenant.ID, conversationID)
	if err != nil {
		return err
	}
	if issue == nil {
		issue = &persistence.Issue{
			TenantID:       wctx.Tenant.ID,
			PropertyID:     wctx.Tenant.PropertyID,
			LandlordID:     wctx.Tenant.LandlordID,
			ConversationID: conversationID,
			Status:         persistence.StatusNew,
		}
		if err := o.store.CreateIssue(issue); err != nil {
			return err
		}
		o.logger.Info("📋 Opened issue %s for tenant %s", issue.ID, wctx.Tenant.ID)
	}
	wctx.Issue = issue

	if incoming.MediaURL != "" {
		if err := o.store.AppendIssueMedia(issue.ID, incoming.MediaURL); err != nil {
			o.logger.Warn("failed to attach media to issue %s: %v", issue.ID, err)
		} else {
			issue.MediaURLs = append(issue.MediaURLs, incoming.MediaURL)
		}
	}
	return nil
}

// selectWorker is the entry router: landlords always get the landlord
// worker; tenants route on the open issue's status.
func (o *Orchestrator) selectWorker(wctx *workers.Context) workers.Name {
	if wctx.Role == RoleLandlord {
		return workers.WorkerLandlord
	}

	issue := wctx.Issue
	if issue == nil {
		return workers.WorkerTenant
	}
	switch issue.Status {
	case persistence.StatusAwaitingDetails:
		if issue.Description != "" && len(issue.MediaURLs) > 0 && issue.TenantAvailability != "" {
			return workers.WorkerTriage
		}
		return workers.WorkerTenant
	case persistence.StatusReported:
		return workers.WorkerDispatch
	default:
		return workers.WorkerTenant
	}
}

// runChain executes the entry worker and follows handoff signals, re-running
// each target with the same original message and context. Tool-call logs
// accumulate and state updates shallow-merge at every hop, the later
// worker's keys winning. Returns the last good result; a nil result means
// even the entry worker failed.
func (o *Orchestrator) runChain(ctx context.Context, entry workers.Name, message string, wctx *workers.Context) (workers.Name, *workers.Result) {
	current := entry
	result, err := o.workers.Execute(ctx, current, message, wctx)
	if err != nil {
		o.logger.Error("worker %s failed: %v", current, err)
		return current, nil
	}

	for hop := 0; result.NextWorker != ""; hop++ {
		if hop >= maxHandoffHops {
			o.logger.Warn("⚠️ Handoff depth cap (%d) reached at worker %s; returning last result", maxHandoffHops, current)
			break
		}

		next := result.NextWorker
		o.logger.Info("🔁 Handoff %s → %s", current, next)
		o.recorder.RecordHandoff(string(current), string(next))

		nextResult, err := o.workers.Execute(ctx, next, message, wctx)
		if err != nil {
			o.logger.Error("handoff target %s failed: %v; keeping result from %s", next, err, current)
			result.NextWorker = ""
			break
		}

		// Accumulate logs and merge updates into the newest result so its
		// response and handoff signal drive the next step.
		nextResult.ToolCalls = append(result.ToolCalls, nextResult.ToolCalls...)
		nextResult.StateUpdates = mergeUpdates(result.StateUpdates, nextResult.StateUpdates)
		if result.Escalated && !nextResult.Escalated {
			nextResult.Escalated = true
			nextResult.EscalationReason = result.EscalationReason
		}
		result = nextResult
		current = next
	}
	return current, result
}

func mergeUpdates(earlier, later map[string]any) map[string]any {
	if len(earlier) == 0 {
		return later
	}
	merged := make(map[string]any, len(earlier)+len(later))
	for k, v := range earlier {
		merged[k] = v
	}
	for k, v := range later {
		merged[k] = v
	}
	return merged
}

// persistTurn appends the inbound message (when it carried text) and the
// outbound reply, updating the conversation pointer. Failures are logged
// only; the reply still goes out.
func (o *Orchestrator) persistTurn(conversationID string, incoming *InboundMessage, reply string, worker workers.Name) {
	if incoming.Content != "" || incoming.MediaURL != "" {
		err := o.store.AppendMessage(&persistence.Message{
			ConversationID: conversationID,
			Direction:      persistence.DirectionInbound,
			Body:           incoming.Content,
			MediaURL:       incoming.MediaURL,
		})
		if err != nil {
			o.logger.Error("failed to persist inbound message on %s: %v", conversationID, err)
		}
	}

	err := o.store.AppendMessage(&persistence.Message{
		ConversationID: conversationID,
		Direction:      persistence.DirectionOutbound,
		Body:           reply,
		WorkerName:     string(worker),
	})
	if err != nil {
		o.logger.Error("failed to persist outbound message on %s: %v", conversationID, err)
	}
}
