package persistence

import (
	"time"

	"github.com/google/uuid"
)

// Issue status constants.
const (
	StatusNew             = "new"
	StatusAwaitingDetails = "awaiting_details"
	StatusReported        = "reported"
	StatusApproved        = "approved"
	StatusDispatched      = "dispatched"
	StatusCompleted       = "completed"
	StatusResolvedDIY     = "resolved_diy"
	StatusCancelled       = "cancelled"
)

// TerminalStatuses are the states an issue never leaves. An issue in one of
// these states no longer counts as "open" for its conversation.
func TerminalStatuses() []string {
	return []string{StatusCompleted, StatusResolvedDIY, StatusCancelled}
}

// IsTerminalStatus reports whether the status is terminal.
func IsTerminalStatus(status string) bool {
	for _, s := range TerminalStatuses() {
		if status == s {
			return true
		}
	}
	return false
}

// ValidStatuses returns all valid issue statuses.
func ValidStatuses() []string {
	return []string{
		StatusNew, StatusAwaitingDetails, StatusReported, StatusApproved,
		StatusDispatched, StatusCompleted, StatusResolvedDIY, StatusCancelled,
	}
}

// IsValidStatus checks if a status string is valid.
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses() {
		if status == s {
			return true
		}
	}
	return false
}

// Message directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Tenant is a resident who reports maintenance issues.
type Tenant struct {
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	PropertyID string    `json:"property_id"`
	LandlordID string    `json:"landlord_id"`
}

// Property is a let unit owned by a landlord.
type Property struct {
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	ID         string    `json:"id"`
	Address    string    `json:"address"`
	Postcode   string    `json:"postcode,omitempty"`
	LandlordID string    `json:"landlord_id"`
}

// Landlord segment constants. Landlords are stored as leads; only leads in a
// landlord segment are treated as landlords by sender resolution.
const (
	SegmentLandlord       = "landlord"
	SegmentLettingsAgency = "lettings_agency"
)

// LandlordSegments returns the lead segments treated as landlords.
func LandlordSegments() []string {
	return []string{SegmentLandlord, SegmentLettingsAgency}
}

// Landlord is the account that owns properties and approves work.
type Landlord struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Segment   string    `json:"segment"`
}

// LandlordSettings holds a landlord's auto-approval configuration. All money
// amounts are in pence.
//
//nolint:govet // struct alignment optimization not critical for this type
type LandlordSettings struct {
	UpdatedAt             time.Time `json:"updated_at"`
	LandlordID            string    `json:"landlord_id"`
	AutoApproveCategories []string  `json:"auto_approve_categories"`
	AutoApproveCeiling    int       `json:"auto_approve_ceiling_pence"`
	ApprovalFloor         int       `json:"approval_floor_pence"`
	MonthlyBudget         int       `json:"monthly_budget_pence"`
	MonthlySpend          int       `json:"monthly_spend_pence"`
	NotifyOnNewIssue      bool      `json:"notify_on_new_issue"`
}

// Issue is the tracked unit of a reported maintenance problem. It is never
// deleted, only transitioned; terminal issues are immutable except for audit
// timestamps.
//
//nolint:govet // struct alignment optimization not critical for this type
type Issue struct {
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	LandlordNotifiedAt *time.Time `json:"landlord_notified_at,omitempty"`
	LandlordApprovedAt *time.Time `json:"landlord_approved_at,omitempty"`
	ID                 string     `json:"id"`
	TenantID           string     `json:"tenant_id"`
	PropertyID         string     `json:"property_id"`
	LandlordID         string     `json:"landlord_id"`
	ConversationID     string     `json:"conversation_id"`
	Status             string     `json:"status"`
	Description        string     `json:"description,omitempty"`
	Category           string     `json:"category,omitempty"`
	Urgency            string     `json:"urgency,omitempty"`
	TenantAvailability string     `json:"tenant_availability,omitempty"`
	AccessInstructions string     `json:"access_instructions,omitempty"`
	DispatchDecision   string     `json:"dispatch_decision,omitempty"`
	DispatchReason     string     `json:"dispatch_reason,omitempty"`
	QuoteID            string     `json:"quote_id,omitempty"`
	JobID              string     `json:"job_id,omitempty"`
	MediaURLs          []string   `json:"media_urls,omitempty"`
	PriceLowPence      int        `json:"price_low_pence"`
	PriceMidPence      int        `json:"price_mid_pence"`
	PriceHighPence     int        `json:"price_high_pence"`
	PriceConfidence    int        `json:"price_confidence"`
}

// Conversation is the append-only channel a tenant or landlord talks on.
// Its ID is derived from sender role and identity ({role}_{entityID}).
type Conversation struct {
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	LastMessageAt      time.Time `json:"last_message_at"`
	ID                 string    `json:"id"`
	LastMessagePreview string    `json:"last_message_preview,omitempty"`
}

// Message is one logged turn on a conversation. Messages are never edited
// or removed.
type Message struct {
	CreatedAt      time.Time `json:"created_at"`
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Direction      string    `json:"direction"`
	Body           string    `json:"body"`
	MediaURL       string    `json:"media_url,omitempty"`
	WorkerName     string    `json:"worker_name,omitempty"`
}

// CatalogItem is a known service line used by the price estimator. Prices
// are in pence.
type CatalogItem struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	Category      string   `json:"category,omitempty"`
	Keywords      []string `json:"keywords"`
	MinPricePence int      `json:"min_price_pence"`
	MaxPricePence int      `json:"max_price_pence"`
}

// NewID generates a new entity ID.
func NewID() string {
	return uuid.New().String()
}
