package registrations

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventportal/backend/internal/models"
)

// BatchOptions mirror the flags of the certificates command.
type BatchOptions struct {
	SkipGeneration  bool
	SkipEmail       bool
	IgnoreConfirmed bool // include unconfirmed registrations and skip the confirmed check
	IgnorePresent   bool // include absent attendees and skip the present check
	IgnoreSent      bool // include registrations whose certificate was already emailed
}

// BatchItem is the outcome for one registration.
type BatchItem struct {
	RegistrationID uuid.UUID
	AttendeeName   string
	Generated      bool
	GenerateErr    error
	Emailed        bool
	EmailErr       error
}

// BatchGroup holds the items of one tutorial.
type BatchGroup struct {
	TutorialTitle string
	Items         []BatchItem
}

// Selects reports whether d is part of a batch run with opts.
func (o BatchOptions) Selects(d *models.RegistrationDetail) bool {
	if !o.IgnoreConfirmed && !d.Confirmed() {
		return false
	}
	if !o.IgnorePresent && !d.Present() {
		return false
	}
	if !o.IgnoreSent && d.CertificateSentAt != nil {
		return false
	}
	return true
}

// RunBatch generates and emails certificates for every selected registration of an event,
// grouped by tutorial in title order. Per-registration failures are reported, never fatal.
// report, when set, is called for each group after it finishes.
func (i *Issuer) RunBatch(ctx context.Context, eventID uuid.UUID, opts BatchOptions, report func(BatchGroup)) ([]BatchGroup, error) {
	var list []models.RegistrationDetail
	err := i.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		list, err = tx.ListRegistrationsByEvent(ctx, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}

	certOpts := CertificateOptions{
		SkipConfirmedCheck: opts.IgnoreConfirmed,
		SkipPresentCheck:   opts.IgnorePresent,
	}
	var (
		groups  []BatchGroup
		current *BatchGroup
		lastID  uuid.UUID
	)
	flush := func() {
		if current == nil {
			return
		}
		groups = append(groups, *current)
		if report != nil {
			report(*current)
		}
	}
	for idx := range list {
		d := &list[idx]
		if current == nil || d.TutorialID != lastID {
			flush()
			current = &BatchGroup{TutorialTitle: d.Tutorial.Title}
			lastID = d.TutorialID
		}
		if !opts.Selects(d) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return groups, err
		}
		item := BatchItem{RegistrationID: d.ID, AttendeeName: d.Attendee.FullName}
		if !opts.SkipGeneration {
			_, item.GenerateErr = i.Generate(ctx, d.ID, certOpts)
			item.Generated = item.GenerateErr == nil
		}
		if !opts.SkipEmail {
			item.EmailErr = i.SendEmail(ctx, d.ID)
			item.Emailed = item.EmailErr == nil
		}
		if item.GenerateErr != nil || item.EmailErr != nil {
			i.logger.Warn("batch certificate failed",
				zap.String("registration_id", d.ID.String()),
				zap.NamedError("generate_error", item.GenerateErr),
				zap.NamedError("email_error", item.EmailErr))
		}
		current.Items = append(current.Items, item)
	}
	flush()
	return groups, nil
}
