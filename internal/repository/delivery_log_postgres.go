package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/hookline/hookline/internal/domain"
)

// deliveryLogRepository implements domain.DeliveryLogRepository for PostgreSQL
type deliveryLogRepository struct {
	db *sql.DB
}

// NewDeliveryLogRepository creates a new PostgreSQL delivery log repository
func NewDeliveryLogRepository(db *sql.DB) domain.DeliveryLogRepository {
	return &deliveryLogRepository{db: db}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const deliveryLogColumns = "id, webhook_id, subscription_id, target_url, timestamp, attempt_number, outcome, status_code, error"

// Create appends one attempt row
func (r *deliveryLogRepository) Create(ctx context.Context, log *domain.DeliveryLog) error {
	query := `
		INSERT INTO delivery_logs (
			id, webhook_id, subscription_id, target_url, timestamp,
			attempt_number, outcome, status_code, error
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		log.ID,
		log.WebhookID,
		log.SubscriptionID,
		log.TargetURL,
		log.Timestamp,
		log.AttemptNumber,
		log.Outcome,
		log.StatusCode,
		log.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to create delivery log: %w", err)
	}

	return nil
}

// ListByWebhookID returns all attempt rows for a webhook, in attempt order
func (r *deliveryLogRepository) ListByWebhookID(ctx context.Context, webhookID string) ([]*domain.DeliveryLog, error) {
	query, args, err := psql.
		Select(deliveryLogColumns).
		From("delivery_logs").
		Where(sq.Eq{"webhook_id": webhookID}).
		OrderBy("attempt_number ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	return r.queryLogs(ctx, query, args...)
}

// ListBySubscription returns the most recent attempt rows for a subscription
func (r *deliveryLogRepository) ListBySubscription(ctx context.Context, subscriptionID string, limit int) ([]*domain.DeliveryLog, error) {
	builder := psql.
		Select(deliveryLogColumns).
		From("delivery_logs").
		Where(sq.Eq{"subscription_id": subscriptionID}).
		OrderBy("timestamp DESC")

	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	return r.queryLogs(ctx, query, args...)
}

// DeleteOlderThan bulk-deletes rows past the retention horizon inside one
// transaction and returns the number of rows removed.
func (r *deliveryLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM delivery_logs WHERE timestamp < $1`, cutoff)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to purge delivery logs: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to count purged delivery logs: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit purge: %w", err)
	}

	return deleted, nil
}

func (r *deliveryLogRepository) queryLogs(ctx context.Context, query string, args ...interface{}) ([]*domain.DeliveryLog, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery logs: %w", err)
	}
	defer rows.Close()

	var logs []*domain.DeliveryLog
	for rows.Next() {
		log, err := scanDeliveryLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery log: %w", err)
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating delivery logs: %w", err)
	}

	return logs, nil
}

func scanDeliveryLog(rows *sql.Rows) (*domain.DeliveryLog, error) {
	var log domain.DeliveryLog
	var statusCode sql.NullInt32
	var errMsg sql.NullString

	err := rows.Scan(
		&log.ID,
		&log.WebhookID,
		&log.SubscriptionID,
		&log.TargetURL,
		&log.Timestamp,
		&log.AttemptNumber,
		&log.Outcome,
		&statusCode,
		&errMsg,
	)
	if err != nil {
		return nil, err
	}

	if statusCode.Valid {
		code := int(statusCode.Int32)
		log.StatusCode = &code
	}
	if errMsg.Valid {
		log.Error = &errMsg.String
	}

	return &log, nil
}
