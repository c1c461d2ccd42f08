package persistence

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedTenancy(t *testing.T, store *Store) (*Landlord, *Property, *Tenant) {
	t.Helper()
	landlord := &Landlord{ID: "ll-1", Name: "Priya Shah", Phone: "+447700900001", Segment: SegmentLandlord}
	require.NoError(t, store.UpsertLandlord(landlord))

	property := &Property{ID: "prop-1", Address: "12 Garden Row, Leeds", Postcode: "LS1 1AA", LandlordID: landlord.ID}
	require.NoError(t, store.UpsertProperty(property))

	tenant := &Tenant{ID: "ten-1", Name: "Sam Okafor", Phone: "+447700900002", PropertyID: property.ID, LandlordID: landlord.ID}
	require.NoError(t, store.UpsertTenant(tenant))

	return landlord, property, tenant
}

func TestGetTenantByPhone(t *testing.T) {
	store := newTestStore(t)
	_, _, seeded := seedTenancy(t, store)

	tenant, property, landlord, err := store.GetTenantByPhone(seeded.Phone)
	require.NoError(t, err)
	require.NotNil(t, tenant)
	assert.Equal(t, "ten-1", tenant.ID)
	assert.Equal(t, "12 Garden Row, Leeds", property.Address)
	assert.Equal(t, "Priya Shah", landlord.Name)
}

func TestGetTenantByPhoneUnknown(t *testing.T) {
	store := newTestStore(t)
	seedTenancy(t, store)

	tenant, property, landlord, err := store.GetTenantByPhone("+447700999999")
	require.NoError(t, err)
	assert.Nil(t, tenant)
	assert.Nil(t, property)
	assert.Nil(t, landlord)
}

func TestGetLandlordByPhoneSegmentFilter(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.UpsertLandlord(&Landlord{
		ID: "ll-agency", Name: "Acme Lettings", Phone: "+447700900010", Segment: SegmentLettingsAgency,
	}))
	require.NoError(t, store.UpsertLandlord(&Landlord{
		ID: "ll-other", Name: "Vendor Lead", Phone: "+447700900011", Segment: "contractor",
	}))

	agency, err := store.GetLandlordByPhone("+447700900010")
	require.NoError(t, err)
	require.NotNil(t, agency)
	assert.Equal(t, "ll-agency", agency.ID)

	// A lead outside the landlord segments never resolves as a landlord.
	other, err := store.GetLandlordByPhone("+447700900011")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestConversationAndMessages(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.EnsureConversation("tenant_ten-1"))
	// Idempotent.
	require.NoError(t, store.EnsureConversation("tenant_ten-1"))

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		require.NoError(t, store.AppendMessage(&Message{
			ConversationID: "tenant_ten-1",
			Direction:      DirectionInbound,
			Body:           fmt.Sprintf("message %d", i),
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}))
	}

	msgs, err := store.RecentMessages("tenant_ten-1", 20)
	require.NoError(t, err)
	require.Len(t, msgs, 20)
	// Oldest-first window over the 20 newest messages.
	assert.Equal(t, "message 5", msgs[0].Body)
	assert.Equal(t, "message 24", msgs[19].Body)
}

func TestGetPendingIssueForLandlord(t *testing.T) {
	store := newTestStore(t)
	landlord, property, tenant := seedTenancy(t, store)
	require.NoError(t, store.EnsureConversation("tenant_ten-1"))

	base := Issue{
		TenantID: tenant.ID, PropertyID: property.ID, LandlordID: landlord.ID,
		ConversationID: "tenant_ten-1",
	}

	approvedAt := time.Now()
	alreadyApproved := base
	alreadyApproved.Status = StatusApproved
	alreadyApproved.DispatchDecision = "request_approval"
	alreadyApproved.LandlordApprovedAt = &approvedAt
	require.NoError(t, store.CreateIssue(&alreadyApproved))

	autoDispatched := base
	autoDispatched.Status = StatusDispatched
	autoDispatched.DispatchDecision = "auto_dispatch"
	require.NoError(t, store.CreateIssue(&autoDispatched))

	cancelled := base
	cancelled.Status = StatusCancelled
	cancelled.DispatchDecision = "request_approval"
	require.NoError(t, store.CreateIssue(&cancelled))

	pending, err := store.GetPendingIssueForLandlord(landlord.ID)
	require.NoError(t, err)
	assert.Nil(t, pending, "approved, auto-dispatched, and cancelled issues are not pending")

	awaiting := base
	awaiting.Status = StatusReported
	awaiting.DispatchDecision = "request_approval"
	require.NoError(t, store.CreateIssue(&awaiting))

	pending, err = store.GetPendingIssueForLandlord(landlord.ID)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, awaiting.ID, pending.ID)
}

func TestGetOpenIssueSkipsTerminal(t *testing.T) {
	store := newTestStore(t)
	landlord, property, tenant := seedTenancy(t, store)
	require.NoError(t, store.EnsureConversation("tenant_ten-1"))

	closed := &Issue{
		TenantID: tenant.ID, PropertyID: property.ID, LandlordID: landlord.ID,
		ConversationID: "tenant_ten-1", Status: StatusCompleted,
		CreatedAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, store.CreateIssue(closed))

	open, err := store.GetOpenIssue(tenant.ID, "tenant_ten-1")
	require.NoError(t, err)
	assert.Nil(t, open)

	active := &Issue{
		TenantID: tenant.ID, PropertyID: property.ID, LandlordID: landlord.ID,
		ConversationID: "tenant_ten-1", Status: StatusAwaitingDetails,
	}
	require.NoError(t, store.CreateIssue(active))

	open, err = store.GetOpenIssue(tenant.ID, "tenant_ten-1")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, active.ID, open.ID)
}

func TestUpdateIssueFields(t *testing.T) {
	store := newTestStore(t)
	landlord, property, tenant := seedTenancy(t, store)
	require.NoError(t, store.EnsureConversation("tenant_ten-1"))

	issue := &Issue{
		TenantID: tenant.ID, PropertyID: property.ID, LandlordID: landlord.ID,
		ConversationID: "tenant_ten-1", Status: StatusNew,
	}
	require.NoError(t, store.CreateIssue(issue))

	err := store.UpdateIssueFields(issue.ID, map[string]any{
		"status":            StatusAwaitingDetails,
		"issue_category":    "plumbing",
		"issue_description": "Kitchen tap dripping constantly",
		"urgency":           "low",
		"bogus_field":       "ignored",
	})
	require.NoError(t, err)

	got, err := store.GetIssue(issue.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusAwaitingDetails, got.Status)
	assert.Equal(t, "plumbing", got.Category)
	assert.Equal(t, "Kitchen tap dripping constantly", got.Description)
	assert.Equal(t, "low", got.Urgency)
}

func TestAppendIssueMedia(t *testing.T) {
	store := newTestStore(t)
	landlord, property, tenant := seedTenancy(t, store)
	require.NoError(t, store.EnsureConversation("tenant_ten-1"))

	issue := &Issue{
		TenantID: tenant.ID, PropertyID: property.ID, LandlordID: landlord.ID,
		ConversationID: "tenant_ten-1",
	}
	require.NoError(t, store.CreateIssue(issue))

	require.NoError(t, store.AppendIssueMedia(issue.ID, "https://media.example/1.jpg"))
	require.NoError(t, store.AppendIssueMedia(issue.ID, "https://media.example/2.jpg"))

	got, err := store.GetIssue(issue.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://media.example/1.jpg", "https://media.example/2.jpg"}, got.MediaURLs)
}

func TestLandlordSettingsDefaultsAndUpdate(t *testing.T) {
	store := newTestStore(t)
	landlord, _, _ := seedTenancy(t, store)

	settings, err := store.GetLandlordSettings(landlord.ID)
	require.NoError(t, err)
	assert.Equal(t, 15000, settings.AutoApproveCeiling)
	assert.Equal(t, 30000, settings.ApprovalFloor)
	assert.True(t, settings.NotifyOnNewIssue)

	settings.AutoApproveCeiling = 20000
	settings.AutoApproveCategories = []string{"plumbing"}
	settings.MonthlyBudget = 100000
	require.NoError(t, store.UpdateLandlordSettings(settings))

	require.NoError(t, store.AddMonthlySpend(landlord.ID, 4500))

	got, err := store.GetLandlordSettings(landlord.ID)
	require.NoError(t, err)
	assert.Equal(t, 20000, got.AutoApproveCeiling)
	assert.Equal(t, []string{"plumbing"}, got.AutoApproveCategories)
	assert.Equal(t, 4500, got.MonthlySpend)
}

func TestSearchCatalog(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.UpsertCatalogItem(&CatalogItem{
		Name: "Tap washer replacement", Category: "plumbing",
		Keywords: []string{"tap", "drip", "washer"}, MinPricePence: 6000, MaxPricePence: 9000,
	}))
	require.NoError(t, store.UpsertCatalogItem(&CatalogItem{
		Name: "Boiler service", Category: "heating",
		Keywords: []string{"boiler", "heating"}, MinPricePence: 9000, MaxPricePence: 15000,
	}))

	items, err := store.SearchCatalog("dripping tap")
	require.NoError(t, err)
	require.NotEmpty(t, items)
	assert.Equal(t, "Tap washer replacement", items[0].Name)

	none, err := store.SearchCatalog("")
	require.NoError(t, err)
	assert.Empty(t, none)
}
