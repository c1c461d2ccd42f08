package persistence

import (
	"database/sql"
	"fmt"
)

// schema defines the full database schema. Statements are idempotent so
// initialization can run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS landlords (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	phone TEXT NOT NULL UNIQUE,
	segment TEXT NOT NULL DEFAULT 'landlord',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS properties (
	id TEXT PRIMARY KEY,
	address TEXT NOT NULL,
	postcode TEXT NOT NULL DEFAULT '',
	landlord_id TEXT NOT NULL REFERENCES landlords(id),
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS tenants (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	phone TEXT NOT NULL UNIQUE,
	property_id TEXT NOT NULL REFERENCES properties(id),
	landlord_id TEXT NOT NULL REFERENCES landlords(id),
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS landlord_settings (
	landlord_id TEXT PRIMARY KEY REFERENCES landlords(id),
	auto_approve_ceiling_pence INTEGER NOT NULL DEFAULT 15000,
	approval_floor_pence INTEGER NOT NULL DEFAULT 30000,
	auto_approve_categories TEXT NOT NULL DEFAULT '[]',
	monthly_budget_pence INTEGER NOT NULL DEFAULT 0,
	monthly_spend_pence INTEGER NOT NULL DEFAULT 0,
	notify_on_new_issue INTEGER NOT NULL DEFAULT 1,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	last_message_at TIMESTAMP NOT NULL,
	last_message_preview TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	direction TEXT NOT NULL CHECK (direction IN ('inbound', 'outbound')),
	body TEXT NOT NULL,
	media_url TEXT NOT NULL DEFAULT '',
	worker_name TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation
	ON messages(conversation_id, created_at DESC);

CREATE TABLE IF NOT EXISTS issues (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL REFERENCES tenants(id),
	property_id TEXT NOT NULL REFERENCES properties(id),
	landlord_id TEXT NOT NULL REFERENCES landlords(id),
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	status TEXT NOT NULL DEFAULT 'new',
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	urgency TEXT NOT NULL DEFAULT '',
	tenant_availability TEXT NOT NULL DEFAULT '',
	access_instructions TEXT NOT NULL DEFAULT '',
	dispatch_decision TEXT NOT NULL DEFAULT '',
	dispatch_reason TEXT NOT NULL DEFAULT '',
	quote_id TEXT NOT NULL DEFAULT '',
	job_id TEXT NOT NULL DEFAULT '',
	media_urls TEXT NOT NULL DEFAULT '[]',
	price_low_pence INTEGER NOT NULL DEFAULT 0,
	price_mid_pence INTEGER NOT NULL DEFAULT 0,
	price_high_pence INTEGER NOT NULL DEFAULT 0,
	price_confidence INTEGER NOT NULL DEFAULT 0,
	landlord_notified_at TIMESTAMP,
	landlord_approved_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_issues_tenant_conversation
	ON issues(tenant_id, conversation_id, status);

CREATE TABLE IF NOT EXISTS catalog_items (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	keywords TEXT NOT NULL DEFAULT '[]',
	min_price_pence INTEGER NOT NULL,
	max_price_pence INTEGER NOT NULL
);
`

// initializeSchema creates all tables and indexes if they do not exist.
func initializeSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}
