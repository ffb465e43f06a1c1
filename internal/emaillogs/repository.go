package emaillogs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventportal/backend/internal/models"
)

// ErrNotFound is returned for unknown email log ids.
var ErrNotFound = errors.New("email log not found")

// Repository handles email_logs persistence. The table doubles as the outbox.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `id, event_id, registration_id, email_type, recipient_email, COALESCE(subject, ''), body_html,
	status, attempts, queued_at, sent_at, COALESCE(error_message, ''), created_at`

func scan(row pgx.Row, el *models.EmailLog) error {
	return row.Scan(&el.ID, &el.EventID, &el.RegistrationID, &el.EmailType, &el.RecipientEmail, &el.Subject, &el.BodyHTML,
		&el.Status, &el.Attempts, &el.QueuedAt, &el.SentAt, &el.ErrorMessage, &el.CreatedAt)
}

// ListByEvent returns email logs for an event, newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*models.EmailLog, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM email_logs WHERE event_id = $1 ORDER BY created_at DESC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.EmailLog
	for rows.Next() {
		var el models.EmailLog
		if err := scan(rows, &el); err != nil {
			return nil, err
		}
		list = append(list, &el)
	}
	return list, rows.Err()
}

// GetByID returns one email log.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.EmailLog, error) {
	var el models.EmailLog
	if err := scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM email_logs WHERE id = $1`, id), &el); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get email log: %w", err)
	}
	return &el, nil
}

// ClaimPending moves up to limit pending rows to queued and returns them. Rows left queued for
// longer than staleAfter are claimed again: their job was lost between the queue and the worker.
// SKIP LOCKED lets several relays run side by side without double delivery.
func (r *Repository) ClaimPending(ctx context.Context, limit int, staleAfter time.Duration) ([]models.EmailLog, error) {
	const q = `UPDATE email_logs SET status = 'queued', queued_at = NOW()
		WHERE id IN (
			SELECT id FROM email_logs
			WHERE status = 'pending'
				OR (status = 'queued' AND (queued_at IS NULL OR queued_at < NOW() - $2::interval))
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED)
		RETURNING ` + columns
	rows, err := r.pool.Query(ctx, q, limit, staleAfter)
	if err != nil {
		return nil, fmt.Errorf("claim pending: %w", err)
	}
	defer rows.Close()
	var list []models.EmailLog
	for rows.Next() {
		var el models.EmailLog
		if err := scan(rows, &el); err != nil {
			return nil, err
		}
		list = append(list, el)
	}
	return list, rows.Err()
}

// Release returns a claimed row to pending, for when it could not be queued.
func (r *Repository) Release(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE email_logs SET status = 'pending', queued_at = NULL WHERE id = $1 AND status = 'queued'`, id)
	return err
}

// MarkSent records a successful delivery.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	const q = `UPDATE email_logs SET status = 'sent', sent_at = $2, attempts = attempts + 1, error_message = NULL WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, at)
	return err
}

// MarkFailed records a failed attempt. Non-final failures stay queued for the next retry,
// with a fresh claim time so the relay leaves them to the queue.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, final bool) error {
	status := models.EmailLogStatusQueued
	if final {
		status = models.EmailLogStatusFailed
	}
	const q = `UPDATE email_logs SET status = $2, attempts = attempts + 1, error_message = $3, queued_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, status, errMsg)
	return err
}

// Requeue puts failed, queued or already sent logs of an event back to pending so the relay picks
// them up. With no ids, every failed log of the event is requeued. It returns the number of rows affected.
func (r *Repository) Requeue(ctx context.Context, eventID uuid.UUID, ids []uuid.UUID) (int64, error) {
	var (
		tag pgconn.CommandTag
		err error
	)
	if len(ids) == 0 {
		tag, err = r.pool.Exec(ctx, `UPDATE email_logs SET status = 'pending', attempts = 0, error_message = NULL, queued_at = NULL
			WHERE event_id = $1 AND status = 'failed'`, eventID)
	} else {
		tag, err = r.pool.Exec(ctx, `UPDATE email_logs SET status = 'pending', attempts = 0, error_message = NULL, queued_at = NULL
			WHERE event_id = $1 AND id = ANY($2) AND status IN ('failed', 'queued', 'sent')`, eventID, ids)
	}
	if err != nil {
		return 0, fmt.Errorf("requeue email logs: %w", err)
	}
	return tag.RowsAffected(), nil
}
