package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// marshalList encodes a string slice for storage in a TEXT column.
func marshalList(items []string) string {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// unmarshalList decodes a TEXT column back into a string slice.
func unmarshalList(data string) []string {
	if data == "" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil
	}
	return items
}

// UpsertLandlord inserts or updates a landlord record.
func (s *Store) UpsertLandlord(l *Landlord) error {
	now := time.Now()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now

	query := `
		INSERT INTO landlords (id, name, phone, segment, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			segment = excluded.segment,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.Exec(query, l.ID, l.Name, l.Phone, l.Segment, l.CreatedAt, l.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert landlord %s: %w", l.ID, err)
	}
	return nil
}

// UpsertProperty inserts or updates a property record.
func (s *Store) UpsertProperty(p *Property) error {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	query := `
		INSERT INTO properties (id, address, postcode, landlord_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			address = excluded.address,
			postcode = excluded.postcode,
			landlord_id = excluded.landlord_id,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.Exec(query, p.ID, p.Address, p.Postcode, p.LandlordID, p.CreatedAt, p.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert property %s: %w", p.ID, err)
	}
	return nil
}

// UpsertTenant inserts or updates a tenant record.
func (s *Store) UpsertTenant(t *Tenant) error {
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	query := `
		INSERT INTO tenants (id, name, phone, property_id, landlord_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			property_id = excluded.property_id,
			landlord_id = excluded.landlord_id,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.Exec(query, t.ID, t.Name, t.Phone, t.PropertyID, t.LandlordID, t.CreatedAt, t.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert tenant %s: %w", t.ID, err)
	}
	return nil
}

// GetTenantByPhone looks up a tenant with its property and landlord joined.
// Returns all nils without error when no tenant matches.
func (s *Store) GetTenantByPhone(phone string) (*Tenant, *Property, *Landlord, error) {
	query := `
		SELECT t.id, t.name, t.phone, t.property_id, t.landlord_id, t.created_at, t.updated_at,
		       p.id, p.address, p.postcode, p.landlord_id, p.created_at, p.updated_at,
		       l.id, l.name, l.phone, l.segment, l.created_at, l.updated_at
		FROM tenants t
		JOIN properties p ON p.id = t.property_id
		JOIN landlords l ON l.id = t.landlord_id
		WHERE t.phone = ?
	`
	var t Tenant
	var p Property
	var l Landlord
	err := s.db.QueryRow(query, phone).Scan(
		&t.ID, &t.Name, &t.Phone, &t.PropertyID, &t.LandlordID, &t.CreatedAt, &t.UpdatedAt,
		&p.ID, &p.Address, &p.Postcode, &p.LandlordID, &p.CreatedAt, &p.UpdatedAt,
		&l.ID, &l.Name, &l.Phone, &l.Segment, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil, nil
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to look up tenant by phone: %w", err)
	}
	return &t, &p, &l, nil
}

// GetLandlordByPhone looks up a landlord-segment lead by phone. Returns nil
// without error when no landlord matches.
func (s *Store) GetLandlordByPhone(phone string) (*Landlord, error) {
	segments := LandlordSegments()
	placeholders := strings.Repeat("?,", len(segments))
	placeholders = placeholders[:len(placeholders)-1]

	query := fmt.Sprintf(`
		SELECT id, name, phone, segment, created_at, updated_at
		FROM landlords
		WHERE phone = ? AND segment IN (%s)
	`, placeholders)

	args := []any{phone}
	for _, seg := range segments {
		args = append(args, seg)
	}

	var l Landlord
	err := s.db.QueryRow(query, args...).Scan(&l.ID, &l.Name, &l.Phone, &l.Segment, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up landlord by phone: %w", err)
	}
	return &l, nil
}

// EnsureConversation creates the conversation row if it does not exist.
// Idempotent; called before any message or issue references the conversation
// so referential ordering always holds.
func (s *Store) EnsureConversation(id string) error {
	now := time.Now()
	query := `
		INSERT INTO conversations (id, last_message_at, last_message_preview, created_at, updated_at)
		VALUES (?, ?, '', ?, ?)
		ON CONFLICT(id) DO NOTHING
	`
	if _, err := s.db.Exec(query, id, now, now, now); err != nil {
		return fmt.Errorf("failed to ensure conversation %s: %w", id, err)
	}
	return nil
}

// AppendMessage appends one message to a conversation and updates the
// conversation's last-message pointer and preview.
func (s *Store) AppendMessage(m *Message) error {
	if m.ID == "" {
		m.ID = NewID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO messages (id, conversation_id, direction, body, media_url, worker_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.Exec(query, m.ID, m.ConversationID, m.Direction, m.Body, m.MediaURL, m.WorkerName, m.CreatedAt); err != nil {
		return fmt.Errorf("failed to append message to %s: %w", m.ConversationID, err)
	}

	preview := m.Body
	if len(preview) > 120 {
		preview = preview[:120]
	}
	update := `
		UPDATE conversations
		SET last_message_at = ?, last_message_preview = ?, updated_at = ?
		WHERE id = ?
	`
	if _, err := s.db.Exec(update, m.CreatedAt, preview, time.Now(), m.ConversationID); err != nil {
		return fmt.Errorf("failed to update conversation %s preview: %w", m.ConversationID, err)
	}
	return nil
}

// RecentMessages returns up to limit messages for a conversation,
// oldest-first.
func (s *Store) RecentMessages(conversationID string, limit int) ([]Message, error) {
	query := `
		SELECT id, conversation_id, direction, body, media_url, worker_name, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.Query(query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages for %s: %w", conversationID, err)
	}
	defer func() { _ = rows.Close() }()

	var newestFirst []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Direction, &m.Body, &m.MediaURL, &m.WorkerName, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		newestFirst = append(newestFirst, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	// Reverse to oldest-first for prompt construction.
	for i, j := 0, len(newestFirst)-1; i < j; i, j = i+1, j-1 {
		newestFirst[i], newestFirst[j] = newestFirst[j], newestFirst[i]
	}
	return newestFirst, nil
}

// CreateIssue inserts a new issue row.
func (s *Store) CreateIssue(issue *Issue) error {
	if issue.ID == "" {
		issue.ID = NewID()
	}
	now := time.Now()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	issue.UpdatedAt = now
	if issue.Status == "" {
		issue.Status = StatusNew
	}

	query := `
		INSERT INTO issues (
			id, tenant_id, property_id, landlord_id, conversation_id, status,
			description, category, urgency, tenant_availability, access_instructions,
			dispatch_decision, dispatch_reason, quote_id, job_id, media_urls,
			price_low_pence, price_mid_pence, price_high_pence, price_confidence,
			landlord_notified_at, landlord_approved_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		issue.ID, issue.TenantID, issue.PropertyID, issue.LandlordID, issue.ConversationID, issue.Status,
		issue.Description, issue.Category, issue.Urgency, issue.TenantAvailability, issue.AccessInstructions,
		issue.DispatchDecision, issue.DispatchReason, issue.QuoteID, issue.JobID, marshalList(issue.MediaURLs),
		issue.PriceLowPence, issue.PriceMidPence, issue.PriceHighPence, issue.PriceConfidence,
		issue.LandlordNotifiedAt, issue.LandlordApprovedAt, issue.CreatedAt, issue.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create issue %s: %w", issue.ID, err)
	}
	return nil
}

// issueColumns is the SELECT column list shared by issue queries.
const issueColumns = `
	id, tenant_id, property_id, landlord_id, conversation_id, status,
	description, category, urgency, tenant_availability, access_instructions,
	dispatch_decision, dispatch_reason, quote_id, job_id, media_urls,
	price_low_pence, price_mid_pence, price_high_pence, price_confidence,
	landlord_notified_at, landlord_approved_at, created_at, updated_at
`

func scanIssue(row interface{ Scan(...any) error }) (*Issue, error) {
	var issue Issue
	var mediaURLs string
	err := row.Scan(
		&issue.ID, &issue.TenantID, &issue.PropertyID, &issue.LandlordID, &issue.ConversationID, &issue.Status,
		&issue.Description, &issue.Category, &issue.Urgency, &issue.TenantAvailability, &issue.AccessInstructions,
		&issue.DispatchDecision, &issue.DispatchReason, &issue.QuoteID, &issue.JobID, &mediaURLs,
		&issue.PriceLowPence, &issue.PriceMidPence, &issue.PriceHighPence, &issue.PriceConfidence,
		&issue.LandlordNotifiedAt, &issue.LandlordApprovedAt, &issue.CreatedAt, &issue.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	issue.MediaURLs = unmarshalList(mediaURLs)
	return &issue, nil
}

// GetIssue fetches an issue by ID. Returns nil without error when absent.
func (s *Store) GetIssue(id string) (*Issue, error) {
	query := fmt.Sprintf("SELECT %s FROM issues WHERE id = ?", issueColumns)
	issue, err := scanIssue(s.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get issue %s: %w", id, err)
	}
	return issue, nil
}

// GetOpenIssue returns the non-terminal issue for a tenant+conversation pair,
// or nil when every issue there has reached a terminal state.
func (s *Store) GetOpenIssue(tenantID, conversationID string) (*Issue, error) {
	terminal := TerminalStatuses()
	placeholders := strings.Repeat("?,", len(terminal))
	placeholders = placeholders[:len(placeholders)-1]

	query := fmt.Sprintf(`
		SELECT %s FROM issues
		WHERE tenant_id = ? AND conversation_id = ? AND status NOT IN (%s)
		ORDER BY created_at DESC
		LIMIT 1
	`, issueColumns, placeholders)

	args := []any{tenantID, conversationID}
	for _, st := range terminal {
		args = append(args, st)
	}

	issue, err := scanIssue(s.db.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open issue for tenant %s: %w", tenantID, err)
	}
	return issue, nil
}

// GetPendingIssueForLandlord returns the landlord's most recent open issue
// waiting on a human decision (approval requested or escalated, not yet
// approved). Returns nil when nothing is pending.
func (s *Store) GetPendingIssueForLandlord(landlordID string) (*Issue, error) {
	terminal := TerminalStatuses()
	placeholders := strings.Repeat("?,", len(terminal))
	placeholders = placeholders[:len(placeholders)-1]

	query := fmt.Sprintf(`
		SELECT %s FROM issues
		WHERE landlord_id = ? AND status NOT IN (%s)
		  AND dispatch_decision IN ('request_approval', 'escalate')
		  AND landlord_approved_at IS NULL
		ORDER BY updated_at DESC
		LIMIT 1
	`, issueColumns, placeholders)

	args := []any{landlordID}
	for _, st := range terminal {
		args = append(args, st)
	}

	issue, err := scanIssue(s.db.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending issue for landlord %s: %w", landlordID, err)
	}
	return issue, nil
}

// issueFieldColumns maps update keys (as emitted by the update_issue_state
// tool and internal callers) to issue table columns. Keys outside this map
// are ignored rather than erroring so a confused model cannot poison a write.
//
//nolint:gochecknoglobals // Column whitelist shared by every issue update
var issueFieldColumns = map[string]string{
	"status":               "status",
	"urgency":              "urgency",
	"issue_category":       "category",
	"category":             "category",
	"issue_description":    "description",
	"description":          "description",
	"tenant_availability":  "tenant_availability",
	"access_instructions":  "access_instructions",
	"dispatch_decision":    "dispatch_decision",
	"dispatch_reason":      "dispatch_reason",
	"quote_id":             "quote_id",
	"job_id":               "job_id",
	"price_low_pence":      "price_low_pence",
	"price_mid_pence":      "price_mid_pence",
	"price_high_pence":     "price_high_pence",
	"price_confidence":     "price_confidence",
	"landlord_notified_at": "landlord_notified_at",
	"landlord_approved_at": "landlord_approved_at",
}

// UpdateIssueFields applies a partial update to an issue. Last-writer-wins:
// there is no optimistic locking in this subsystem because at most one turn
// per conversation is processed at a time. Always touches updated_at.
func (s *Store) UpdateIssueFields(id string, fields map[string]any) error {
	setParts := []string{"updated_at = ?"}
	args := []any{time.Now()}

	for key, value := range fields {
		column, ok := issueFieldColumns[key]
		if !ok {
			s.logger.Debug("ignoring unknown issue field %q", key)
			continue
		}
		setParts = append(setParts, fmt.Sprintf("%s = ?", column))
		args = append(args, value)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE issues SET %s WHERE id = ?", strings.Join(setParts, ", "))
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to update issue %s: %w", id, err)
	}
	return nil
}

// AppendIssueMedia adds a media reference to an issue's collected media.
func (s *Store) AppendIssueMedia(id, mediaURL string) error {
	issue, err := s.GetIssue(id)
	if err != nil {
		return err
	}
	if issue == nil {
		return fmt.Errorf("issue %s not found", id)
	}

	media := append(issue.MediaURLs, mediaURL)
	query := `UPDATE issues SET media_urls = ?, updated_at = ? WHERE id = ?`
	if _, err := s.db.Exec(query, marshalList(media), time.Now(), id); err != nil {
		return fmt.Errorf("failed to append media to issue %s: %w", id, err)
	}
	return nil
}

// GetLandlordSettings fetches a landlord's settings, lazily creating the row
// with defaults on first access.
func (s *Store) GetLandlordSettings(landlordID string) (*LandlordSettings, error) {
	now := time.Now()
	ensure := `
		INSERT INTO landlord_settings (landlord_id, updated_at)
		VALUES (?, ?)
		ON CONFLICT(landlord_id) DO NOTHING
	`
	if _, err := s.db.Exec(ensure, landlordID, now); err != nil {
		return nil, fmt.Errorf("failed to ensure settings for landlord %s: %w", landlordID, err)
	}

	query := `
		SELECT landlord_id, auto_approve_ceiling_pence, approval_floor_pence,
		       auto_approve_categories, monthly_budget_pence, monthly_spend_pence,
		       notify_on_new_issue, updated_at
		FROM landlord_settings
		WHERE landlord_id = ?
	`
	var settings LandlordSettings
	var categories string
	err := s.db.QueryRow(query, landlordID).Scan(
		&settings.LandlordID, &settings.AutoApproveCeiling, &settings.ApprovalFloor,
		&categories, &settings.MonthlyBudget, &settings.MonthlySpend,
		&settings.NotifyOnNewIssue, &settings.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings for landlord %s: %w", landlordID, err)
	}
	settings.AutoApproveCategories = unmarshalList(categories)
	return &settings, nil
}

// UpdateLandlordSettings persists the full settings record.
func (s *Store) UpdateLandlordSettings(settings *LandlordSettings) error {
	settings.UpdatedAt = time.Now()
	query := `
		INSERT INTO landlord_settings (
			landlord_id, auto_approve_ceiling_pence, approval_floor_pence,
			auto_approve_categories, monthly_budget_pence, monthly_spend_pence,
			notify_on_new_issue, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(landlord_id) DO UPDATE SET
			auto_approve_ceiling_pence = excluded.auto_approve_ceiling_pence,
			approval_floor_pence = excluded.approval_floor_pence,
			auto_approve_categories = excluded.auto_approve_categories,
			monthly_budget_pence = excluded.monthly_budget_pence,
			monthly_spend_pence = excluded.monthly_spend_pence,
			notify_on_new_issue = excluded.notify_on_new_issue,
			updated_at = excluded.updated_at
	`
	_, err := s.db.Exec(query,
		settings.LandlordID, settings.AutoApproveCeiling, settings.ApprovalFloor,
		marshalList(settings.AutoApproveCategories), settings.MonthlyBudget, settings.MonthlySpend,
		settings.NotifyOnNewIssue, settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update settings for landlord %s: %w", settings.LandlordID, err)
	}
	return nil
}

// AddMonthlySpend increments a landlord's running monthly spend.
func (s *Store) AddMonthlySpend(landlordID string, pence int) error {
	query := `
		UPDATE landlord_settings
		SET monthly_spend_pence = monthly_spend_pence + ?, updated_at = ?
		WHERE landlord_id = ?
	`
	if _, err := s.db.Exec(query, pence, time.Now(), landlordID); err != nil {
		return fmt.Errorf("failed to add spend for landlord %s: %w", landlordID, err)
	}
	return nil
}

// UpsertCatalogItem inserts or updates a catalog entry.
func (s *Store) UpsertCatalogItem(item *CatalogItem) error {
	if item.ID == "" {
		item.ID = NewID()
	}
	query := `
		INSERT INTO catalog_items (id, name, description, category, keywords, min_price_pence, max_price_pence)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			category = excluded.category,
			keywords = excluded.keywords,
			min_price_pence = excluded.min_price_pence,
			max_price_pence = excluded.max_price_pence
	`
	_, err := s.db.Exec(query, item.ID, item.Name, item.Description, item.Category,
		marshalList(item.Keywords), item.MinPricePence, item.MaxPricePence)
	if err != nil {
		return fmt.Errorf("failed to upsert catalog item %s: %w", item.ID, err)
	}
	return nil
}

// SearchCatalog finds catalog items whose name, description, or keyword list
// contains any of the query's words. Matching is case-insensitive.
func (s *Store) SearchCatalog(query string) ([]CatalogItem, error) {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return nil, nil
	}

	var conditions []string
	var args []any
	for _, word := range words {
		conditions = append(conditions,
			"(LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(keywords) LIKE ?)")
		pattern := "%" + word + "%"
		args = append(args, pattern, pattern, pattern)
	}

	sqlQuery := fmt.Sprintf(`
		SELECT id, name, description, category, keywords, min_price_pence, max_price_pence
		FROM catalog_items
		WHERE %s
	`, strings.Join(conditions, " OR "))

	rows, err := s.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search catalog: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []CatalogItem
	for rows.Next() {
		var item CatalogItem
		var keywords string
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.Category,
			&keywords, &item.MinPricePence, &item.MaxPricePence); err != nil {
			return nil, fmt.Errorf("failed to scan catalog item: %w", err)
		}
		item.Keywords = unmarshalList(keywords)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate catalog items: %w", err)
	}
	return items, nil
}
