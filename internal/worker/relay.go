package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventportal/backend/internal/models"
	"github.com/eventportal/backend/pkg/queue"
)

const (
	// DefaultRelayBatch is how many outbox rows one relay pass claims.
	DefaultRelayBatch = 50
	// DefaultVisibilityTimeout is how long a queued row may go without an outcome before it is claimed again.
	// It must exceed a full retry cycle of the email queue.
	DefaultVisibilityTimeout = 15 * time.Minute
)

// OutboxStore is the email outbox as seen by the relay.
type OutboxStore interface {
	ClaimPending(ctx context.Context, limit int, staleAfter time.Duration) ([]models.EmailLog, error)
	Release(ctx context.Context, id uuid.UUID) error
}

// Enqueuer pushes email jobs for the delivery worker.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, p queue.EmailPayload) error
}

// OutboxRelay moves pending email_logs rows onto the Redis email queue. Rows stuck in queued
// for longer than the visibility timeout are relayed again.
type OutboxRelay struct {
	store      OutboxStore
	queue      Enqueuer
	interval   time.Duration
	batch      int
	visibility time.Duration
	logger     *zap.Logger
}

// NewOutboxRelay creates a relay polling every interval for up to batch rows.
func NewOutboxRelay(store OutboxStore, q Enqueuer, interval time.Duration, batch int, visibility time.Duration, logger *zap.Logger) *OutboxRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batch <= 0 {
		batch = DefaultRelayBatch
	}
	if visibility <= 0 {
		visibility = DefaultVisibilityTimeout
	}
	return &OutboxRelay{store: store, queue: q, interval: interval, batch: batch, visibility: visibility, logger: logger}
}

// RelayOnce claims one batch and enqueues it. Rows that cannot be enqueued go back to pending.
// It returns the number of rows enqueued.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	logs, err := r.store.ClaimPending(ctx, r.batch, r.visibility)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, l := range logs {
		err := r.queue.EnqueueEmail(ctx, queue.EmailPayload{EmailLogID: l.ID, EmailType: l.EmailType})
		if err != nil {
			r.logger.Warn("enqueue email failed", zap.Error(err), zap.String("email_log_id", l.ID.String()))
			if relErr := r.store.Release(ctx, l.ID); relErr != nil {
				r.logger.Error("release email log failed", zap.Error(relErr), zap.String("email_log_id", l.ID.String()))
			}
			continue
		}
		sent++
	}
	if sent > 0 {
		r.logger.Debug("outbox relayed", zap.Int("count", sent))
	}
	return sent, nil
}

// Run polls the outbox until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		n, err := r.RelayOnce(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.Warn("outbox relay error", zap.Error(err))
		}
		// drain a backlog without waiting for the next tick
		if err == nil && n == r.batch {
			continue
		}
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopping")
			return nil
		case <-ticker.C:
		}
	}
}
