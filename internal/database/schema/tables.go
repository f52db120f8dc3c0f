package schema

// TableNames lists the managed tables in creation order.
var TableNames = []string{
	"subscriptions",
	"delivery_logs",
}

// TableDefinitions holds the idempotent creation statements. delivery_logs
// keeps no foreign key to subscriptions: deleting a subscription must not
// cascade into its delivery history.
var TableDefinitions = []string{
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id UUID PRIMARY KEY,
		target_url TEXT NOT NULL,
		secret TEXT,
		events JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS delivery_logs (
		id UUID PRIMARY KEY,
		webhook_id UUID NOT NULL,
		subscription_id UUID NOT NULL,
		target_url TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL,
		attempt_number INTEGER NOT NULL,
		outcome VARCHAR(20) NOT NULL,
		status_code INTEGER,
		error TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_delivery_logs_webhook_id ON delivery_logs(webhook_id)`,
	`CREATE INDEX IF NOT EXISTS idx_delivery_logs_subscription_id ON delivery_logs(subscription_id)`,
	`CREATE INDEX IF NOT EXISTS idx_delivery_logs_timestamp ON delivery_logs(timestamp)`,
}
