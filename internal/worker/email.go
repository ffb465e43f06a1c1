package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventportal/backend/internal/models"
	"github.com/eventportal/backend/internal/notifications"
	"github.com/eventportal/backend/pkg/queue"
)

// EmailStore loads and updates outbox rows for delivery.
type EmailStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.EmailLog, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, final bool) error
}

// JobQueue is the consuming side of the email queue.
type JobQueue interface {
	Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, queueName string, job *queue.Job) (bool, error)
}

// EmailProcessor delivers queued emails and records the outcome on the outbox row.
type EmailProcessor struct {
	store   EmailStore
	queue   JobQueue
	mailer  notifications.Mailer
	clock   func() time.Time
	backoff time.Duration
	logger  *zap.Logger
}

// NewEmailProcessor creates an email delivery processor.
func NewEmailProcessor(store EmailStore, q JobQueue, mailer notifications.Mailer, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{store: store, queue: q, mailer: mailer, clock: time.Now, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one email job. Rows already sent are skipped.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	payload, err := job.EmailPayload()
	if err != nil {
		return err
	}
	el, err := p.store.GetByID(ctx, payload.EmailLogID)
	if err != nil {
		return fmt.Errorf("load email log %s: %w", payload.EmailLogID, err)
	}
	if el.Status == models.EmailLogStatusSent {
		p.logger.Info("email already sent", zap.String("email_log_id", el.ID.String()))
		return nil
	}
	if err := p.mailer.Send(ctx, el.RecipientEmail, el.Subject, el.BodyHTML); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	if err := p.store.MarkSent(ctx, el.ID, p.clock()); err != nil {
		return fmt.Errorf("mark email sent: %w", err)
	}
	p.logger.Info("email sent", zap.String("email_log_id", el.ID.String()), zap.String("type", el.EmailType))
	return nil
}

// handle processes job and schedules a retry on failure. It reports whether the job failed.
// When the retry cannot be scheduled the row is marked failed so operators can resend it.
func (p *EmailProcessor) handle(ctx context.Context, job *queue.Job) bool {
	err := p.Process(ctx, job)
	if err == nil {
		return false
	}
	p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
	final, reErr := p.queue.Retry(ctx, queue.QueueEmails, job)
	if reErr != nil {
		p.logger.Error("retry enqueue failed", zap.String("job_id", job.ID), zap.Error(reErr))
		final = true
	}
	if payload, perr := job.EmailPayload(); perr == nil {
		if mErr := p.store.MarkFailed(ctx, payload.EmailLogID, err.Error(), final); mErr != nil {
			p.logger.Warn("mark email failed", zap.Error(mErr), zap.String("email_log_id", payload.EmailLogID.String()))
		}
	}
	return true
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return nil
		default:
		}

		job, err := p.queue.Dequeue(ctx, queue.QueueEmails, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if p.handle(ctx, job) {
			p.sleep(ctx)
		}
	}
}

func (p *EmailProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
