package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/projectinsight/insight/internal/domain"
	"github.com/projectinsight/insight/internal/service/webhook"
)

// WebhookRepo implements webhook.Repository against PostgreSQL. The
// events set is stored as a TEXT[] column; the failure streak moves
// through single-statement increments so concurrent deliveries to one
// webhook never lose a count.
type WebhookRepo struct{ db *sql.DB }

// NewWebhookRepo creates a Postgres-backed webhook repository.
func NewWebhookRepo(db *sql.DB) *WebhookRepo { return &WebhookRepo{db: db} }

const webhookColumns = `
	id, organization_id, name, url, events, secret, is_active,
	failure_count, last_triggered_at, last_failure_at,
	COALESCE(last_failure_reason,''), created_at, updated_at`

func scanWebhook(row interface{ Scan(...any) error }) (*domain.Webhook, error) {
	w := &domain.Webhook{}
	err := row.Scan(
		&w.ID, &w.OrganizationID, &w.Name, &w.URL, pq.Array(&w.Events),
		&w.Secret, &w.IsActive, &w.FailureCount, &w.LastTriggeredAt,
		&w.LastFailureAt, &w.LastFailureReason, &w.CreatedAt, &w.UpdatedAt,
	)
	return w, err
}

func (r *WebhookRepo) GetWebhook(ctx context.Context, orgID, id uuid.UUID) (*domain.Webhook, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+webhookColumns+`
		FROM webhooks
		WHERE id = $1 AND organization_id = $2
	`, id, orgID)
	w, err := scanWebhook(row)
	if err == sql.ErrNoRows {
		return nil, webhook.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get webhook: %w", err)
	}
	return w, nil
}

func (r *WebhookRepo) ListWebhooks(ctx context.Context, orgID uuid.UUID) ([]domain.Webhook, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+webhookColumns+`
		FROM webhooks
		WHERE organization_id = $1
		ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	defer rows.Close()
	return collectWebhooks(rows)
}

func (r *WebhookRepo) ListActiveSubscribed(ctx context.Context, orgID uuid.UUID, eventType string) ([]domain.Webhook, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+webhookColumns+`
		FROM webhooks
		WHERE organization_id = $1 AND is_active AND $2 = ANY(events)
		ORDER BY created_at
	`, orgID, eventType)
	if err != nil {
		return nil, fmt.Errorf("list subscribed webhooks: %w", err)
	}
	defer rows.Close()
	return collectWebhooks(rows)
}

func collectWebhooks(rows *sql.Rows) ([]domain.Webhook, error) {
	var out []domain.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

func (r *WebhookRepo) CountWebhooks(ctx context.Context, orgID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM webhooks WHERE organization_id = $1
	`, orgID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count webhooks: %w", err)
	}
	return n, nil
}

func (r *WebhookRepo) CreateWebhook(ctx context.Context, w *domain.Webhook) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO webhooks
			(id, organization_id, name, url, events, secret, is_active,
			 failure_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, w.ID, w.OrganizationID, w.Name, w.URL, pq.Array(w.Events), w.Secret,
		w.IsActive, w.FailureCount, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}
	return nil
}

func (r *WebhookRepo) DeleteWebhook(ctx context.Context, orgID, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM webhooks WHERE id = $1 AND organization_id = $2
	`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete webhook rows: %w", err)
	}
	if n == 0 {
		return webhook.ErrNotFound
	}
	return nil
}

func (r *WebhookRepo) Reactivate(ctx context.Context, orgID, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE webhooks
		SET is_active = TRUE, failure_count = 0, last_failure_reason = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND organization_id = $2
	`, id, orgID)
	if err != nil {
		return fmt.Errorf("reactivate webhook: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reactivate webhook rows: %w", err)
	}
	if n == 0 {
		return webhook.ErrNotFound
	}
	return nil
}

func (r *WebhookRepo) CreateDelivery(ctx context.Context, d *domain.WebhookDelivery) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO webhook_deliveries
			(id, webhook_id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, d.ID, d.WebhookID, d.EventType, d.Payload, d.Status, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("create delivery: %w", err)
	}
	return nil
}

func (r *WebhookRepo) FinishDelivery(ctx context.Context, d *domain.WebhookDelivery) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE webhook_deliveries
		SET status = $2, status_code = $3, response_body = $4,
		    error_message = $5, delivered_at = $6
		WHERE id = $1
	`, d.ID, d.Status, d.StatusCode, d.ResponseBody, d.ErrorMessage, d.DeliveredAt)
	if err != nil {
		return fmt.Errorf("finish delivery: %w", err)
	}
	return nil
}

func (r *WebhookRepo) RecordSuccess(ctx context.Context, webhookID uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE webhooks
		SET failure_count = 0, last_failure_reason = NULL,
		    last_triggered_at = $2, updated_at = $2
		WHERE id = $1
	`, webhookID, at)
	if err != nil {
		return fmt.Errorf("record webhook success: %w", err)
	}
	return nil
}

func (r *WebhookRepo) RecordFailure(ctx context.Context, webhookID uuid.UUID, reason string, at time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		UPDATE webhooks
		SET failure_count = failure_count + 1, last_failure_reason = $2,
		    last_failure_at = $3, updated_at = $3
		WHERE id = $1
		RETURNING failure_count
	`, webhookID, reason, at).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("record webhook failure: %w", err)
	}
	return count, nil
}

func (r *WebhookRepo) StampTriggered(ctx context.Context, webhookID uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE webhooks SET last_triggered_at = $2, updated_at = $2 WHERE id = $1
	`, webhookID, at)
	if err != nil {
		return fmt.Errorf("stamp webhook triggered: %w", err)
	}
	return nil
}

func (r *WebhookRepo) Disable(ctx context.Context, webhookID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE webhooks SET is_active = FALSE, updated_at = NOW() WHERE id = $1
	`, webhookID)
	if err != nil {
		return fmt.Errorf("disable webhook: %w", err)
	}
	return nil
}

func (r *WebhookRepo) GetOrganization(ctx context.Context, orgID uuid.UUID) (*domain.Organization, error) {
	return getOrganization(ctx, r.db, orgID)
}
