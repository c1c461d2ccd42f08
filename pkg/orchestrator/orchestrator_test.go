package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propline/pkg/persistence"
	"propline/pkg/tools"
	"propline/pkg/workers"
)

// memStore is an in-memory Store double that records the calls routing makes.
type memStore struct {
	tenant   *persistence.Tenant
	property *persistence.Property
	landlord *persistence.Landlord

	openIssue     *persistence.Issue
	pendingIssue  *persistence.Issue
	createdIssues []*persistence.Issue
	updatedFields map[string]any
	messages      []persistence.Message
	media         []string
	conversations []string
}

func (m *memStore) GetTenantByPhone(phone string) (*persistence.Tenant, *persistence.Property, *persistence.Landlord, error) {
	if m.tenant != nil && m.tenant.Phone == phone {
		return m.tenant, m.property, m.landlord, nil
	}
	return nil, nil, nil, nil
}

func (m *memStore) GetLandlordByPhone(phone string) (*persistence.Landlord, error) {
	if m.landlord != nil && m.landlord.Phone == phone {
		return m.landlord, nil
	}
	return nil, nil
}

func (m *memStore) EnsureConversation(id string) error {
	m.conversations = append(m.conversations, id)
	return nil
}

func (m *memStore) AppendMessage(msg *persistence.Message) error {
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *memStore) RecentMessages(string, int) ([]persistence.Message, error) {
	return nil, nil
}

func (m *memStore) GetOpenIssue(string, string) (*persistence.Issue, error) {
	return m.openIssue, nil
}

func (m *memStore) GetPendingIssueForLandlord(string) (*persistence.Issue, error) {
	return m.pendingIssue, nil
}

func (m *memStore) CreateIssue(issue *persistence.Issue) error {
	issue.ID = persistence.NewID()
	m.createdIssues = append(m.createdIssues, issue)
	return nil
}

func (m *memStore) UpdateIssueFields(_ string, fields map[string]any) error {
	m.updatedFields = fields
	return nil
}

func (m *memStore) AppendIssueMedia(_ string, mediaURL string) error {
	m.media = append(m.media, mediaURL)
	return nil
}

func (m *memStore) GetLandlordSettings(landlordID string) (*persistence.LandlordSettings, error) {
	return &persistence.LandlordSettings{LandlordID: landlordID}, nil
}

// scriptedWorkers returns canned results keyed by worker name and records
// the execution order.
type scriptedWorkers struct {
	results  map[workers.Name]*workers.Result
	errs     map[workers.Name]error
	executed []workers.Name
}

func (s *scriptedWorkers) Execute(_ context.Context, name workers.Name, _ string, _ *workers.Context) (*workers.Result, error) {
	s.executed = append(s.executed, name)
	if err := s.errs[name]; err != nil {
		return nil, err
	}
	if result, ok := s.results[name]; ok {
		copied := *result
		return &copied, nil
	}
	return &workers.Result{Response: fmt.Sprintf("reply from %s", name)}, nil
}

func tenantStore() *memStore {
	return &memStore{
		tenant:   &persistence.Tenant{ID: "ten-1", Name: "Sam", Phone: "+447700900002", PropertyID: "prop-1", LandlordID: "ll-1"},
		property: &persistence.Property{ID: "prop-1", Address: "12 Garden Row"},
		landlord: &persistence.Landlord{ID: "ll-1", Name: "Priya", Phone: "+447700900001", Segment: persistence.SegmentLandlord},
	}
}

func TestRouteUnknownSenderGetsOnboardingReply(t *testing.T) {
	set := &scriptedWorkers{}
	o := New(&memStore{}, set, nil, "+44")

	resp := o.Route(context.Background(), InboundMessage{From: "+15550001111", Content: "hello?"})

	assert.Equal(t, OnboardingReply, resp.Message)
	assert.Equal(t, WorkerUnknownSender, resp.WorkerUsed)
	assert.Empty(t, set.executed, "no worker should run for an unknown sender")
}

func TestRouteNewTenantMessageOpensIssueAndRoutesToTenantWorker(t *testing.T) {
	store := tenantStore()
	set := &scriptedWorkers{}
	o := New(store, set, nil, "+44")

	resp := o.Route(context.Background(), InboundMessage{From: "07700 900002", Type: "text", Content: "my tap is leaking"})

	assert.Equal(t, []workers.Name{workers.WorkerTenant}, set.executed)
	require.Len(t, store.createdIssues, 1)
	assert.Equal(t, persistence.StatusNew, store.createdIssues[0].Status)
	assert.Equal(t, store.createdIssues[0].ID, resp.IssueID)
	assert.Contains(t, store.conversations, "tenant_ten-1")
	assert.Equal(t, workers.WorkerTenant, resp.WorkerUsed)
}

func TestRouteEntryRoutingByIssueStatus(t *testing.T) {
	tests := []struct {
		name  string
		issue *persistence.Issue
		want  workers.Name
	}{
		{
			name:  "awaiting details but incomplete stays with tenant",
			issue: &persistence.Issue{ID: "iss-1", Status: persistence.StatusAwaitingDetails, Description: "leak"},
			want:  workers.WorkerTenant,
		},
		{
			name: "awaiting details with full evidence goes to triage",
			issue: &persistence.Issue{
				ID: "iss-1", Status: persistence.StatusAwaitingDetails,
				Description:        "leak under sink",
				MediaURLs:          []string{"https://cdn.example.com/a.jpg"},
				TenantAvailability: "weekday mornings",
			},
			want: workers.WorkerTriage,
		},
		{
			name:  "reported goes to dispatch",
			issue: &persistence.Issue{ID: "iss-1", Status: persistence.StatusReported},
			want:  workers.WorkerDispatch,
		},
		{
			name:  "approved falls back to tenant",
			issue: &persistence.Issue{ID: "iss-1", Status: persistence.StatusApproved},
			want:  workers.WorkerTenant,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := tenantStore()
			store.openIssue = tc.issue
			set := &scriptedWorkers{}
			o := New(store, set, nil, "+44")

			o.Route(context.Background(), InboundMessage{From: "+447700900002", Content: "any update?"})
			assert.Equal(t, []workers.Name{tc.want}, set.executed)
		})
	}
}

func TestRouteLandlordAlwaysGetsLandlordWorker(t *testing.T) {
	store := &memStore{
		landlord: &persistence.Landlord{ID: "ll-1", Phone: "+447700900001", Segment: persistence.SegmentLandlord},
	}
	set := &scriptedWorkers{}
	o := New(store, set, nil, "+44")

	resp := o.Route(context.Background(), InboundMessage{From: "+447700900001", Content: "set my budget"})

	assert.Equal(t, []workers.Name{workers.WorkerLandlord}, set.executed)
	assert.Contains(t, store.conversations, "landlord_ll-1")
	assert.Empty(t, resp.IssueID, "nothing pending, so no issue binds to the turn")
}

func TestRouteLandlordTurnBindsPendingIssue(t *testing.T) {
	store := &memStore{
		landlord: &persistence.Landlord{ID: "ll-1", Phone: "+447700900001", Segment: persistence.SegmentLandlord},
		pendingIssue: &persistence.Issue{
			ID: "iss-9", LandlordID: "ll-1",
			Status:           persistence.StatusReported,
			DispatchDecision: "request_approval",
		},
	}
	set := &scriptedWorkers{
		results: map[workers.Name]*workers.Result{
			workers.WorkerLandlord: {
				Response:     "Approved, I'll book it in.",
				StateUpdates: map[string]any{"status": persistence.StatusApproved},
			},
		},
	}
	o := New(store, set, nil, "+44")

	resp := o.Route(context.Background(), InboundMessage{From: "+447700900001", Content: "yes, approve it"})

	assert.Equal(t, "iss-9", resp.IssueID, "the pending issue binds so approval tools can act on it")
	assert.Equal(t, resp.StateUpdates, store.updatedFields)
}

func TestRouteFollowsHandoffChainAndMergesResults(t *testing.T) {
	store := tenantStore()
	store.openIssue = &persistence.Issue{
		ID: "iss-1", Status: persistence.StatusAwaitingDetails,
		Description: "boiler dead", MediaURLs: []string{"x"}, TenantAvailability: "anytime",
	}
	set := &scriptedWorkers{
		results: map[workers.Name]*workers.Result{
			workers.WorkerTriage: {
				Response:     "triaged",
				NextWorker:   workers.WorkerDispatch,
				StateUpdates: map[string]any{"urgency": "high", "status": "reported"},
				ToolCalls:    []tools.CallResult{{Name: "categorize_and_price"}},
			},
			workers.WorkerDispatch: {
				Response:     "Engineer booked for tomorrow.",
				StateUpdates: map[string]any{"status": "dispatched"},
				ToolCalls:    []tools.CallResult{{Name: "notify_landlord"}},
			},
		},
	}
	o := New(store, set, nil, "+44")

	resp := o.Route(context.Background(), InboundMessage{From: "+447700900002", Content: "I'm free anytime"})

	assert.Equal(t, []workers.Name{workers.WorkerTriage, workers.WorkerDispatch}, set.executed)
	assert.Equal(t, "Engineer booked for tomorrow.", resp.Message)
	assert.Equal(t, workers.WorkerDispatch, resp.WorkerUsed)
	assert.Equal(t, []string{"categorize_and_price", "notify_landlord"}, resp.ToolsExecuted)
	// Later hop's status wins; earlier hop's urgency survives.
	assert.Equal(t, "dispatched", resp.StateUpdates["status"])
	assert.Equal(t, "high", resp.StateUpdates["urgency"])
	assert.Equal(t, resp.StateUpdates, store.updatedFields)
}

func TestRouteHandoffDepthCap(t *testing.T) {
	store := tenantStore()
	// Every worker hands off to itself forever.
	loop := &workers.Result{Response: "looping", NextWorker: workers.WorkerTenant}
	set := &scriptedWorkers{
		results: map[workers.Name]*workers.Result{workers.WorkerTenant: loop},
	}
	o := New(store, set, nil, "+44")

	resp := o.Route(context.Background(), InboundMessage{From: "+447700900002", Content: "hi"})

	// Entry execution plus at most three handoff hops.
	assert.Len(t, set.executed, 1+maxHandoffHops)
	assert.Equal(t, "looping", resp.Message)
}

func TestRouteHandoffTargetFailureKeepsPriorResult(t *testing.T) {
	store := tenantStore()
	set := &scriptedWorkers{
		results: map[workers.Name]*workers.Result{
			workers.WorkerTenant: {Response: "from tenant", NextWorker: workers.WorkerInspector},
		},
		errs: map[workers.Name]error{
			workers.WorkerInspector: errors.New(`worker "inspector" is not implemented`),
		},
	}
	o := New(store, set, nil, "+44")

	resp := o.Route(context.Background(), InboundMessage{From: "+447700900002", Content: "hi"})

	assert.Equal(t, "from tenant", resp.Message)
	assert.Equal(t, workers.WorkerTenant, resp.WorkerUsed)
}

func TestRoutePersistsTurnMessages(t *testing.T) {
	store := tenantStore()
	set := &scriptedWorkers{
		results: map[workers.Name]*workers.Result{
			workers.WorkerTenant: {Response: "Got it, sorry to hear that."},
		},
	}
	o := New(store, set, nil, "+44")

	o.Route(context.Background(), InboundMessage{From: "+447700900002", Type: "text", Content: "the heating is broken"})

	require.Len(t, store.messages, 2)
	assert.Equal(t, persistence.DirectionInbound, store.messages[0].Direction)
	assert.Equal(t, "the heating is broken", store.messages[0].Body)
	assert.Equal(t, persistence.DirectionOutbound, store.messages[1].Direction)
	assert.Equal(t, "Got it, sorry to hear that.", store.messages[1].Body)
	assert.Equal(t, string(workers.WorkerTenant), store.messages[1].WorkerName)
}

func TestRouteMediaOnlyMessageAttachesAndSynthesizesText(t *testing.T) {
	store := tenantStore()
	store.openIssue = &persistence.Issue{ID: "iss-1", Status: persistence.StatusAwaitingDetails}
	set := &scriptedWorkers{
		results: map[workers.Name]*workers.Result{
			workers.WorkerTenant: {Response: "Thanks for the photo!"},
		},
	}
	o := New(store, set, nil, "+44")

	o.Route(context.Background(), InboundMessage{
		From:     "+447700900002",
		Type:     "image",
		MediaURL: "https://cdn.example.com/leak.jpg",
	})

	assert.Equal(t, []string{"https://cdn.example.com/leak.jpg"}, store.media)
	require.NotEmpty(t, store.messages)
	assert.Equal(t, "https://cdn.example.com/leak.jpg", store.messages[0].MediaURL)
}
