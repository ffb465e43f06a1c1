package registrations

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventportal/backend/internal/certificates"
	"github.com/eventportal/backend/internal/models"
	"github.com/eventportal/backend/internal/notifications"
	"github.com/eventportal/backend/pkg/apperror"
	pkgredis "github.com/eventportal/backend/pkg/redis"
	"github.com/eventportal/backend/pkg/storage"
)

// DefaultCertificateLockTTL bounds how long one generation may hold a registration.
const DefaultCertificateLockTTL = 2 * time.Minute

// Locker grants expiring per-key locks. Acquire returns pkg/redis.ErrLocked when held elsewhere.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// IssuerDeps are the collaborators of the certificate issuer.
type IssuerDeps struct {
	Store    Store
	Renderer *certificates.Renderer
	Blob     storage.Blob
	Locker   Locker
	Mailer   notifications.Mailer
	Composer *notifications.Composer
	LockTTL  time.Duration
	Logger   *zap.Logger
}

// Issuer generates, delivers and verifies certificates.
type Issuer struct {
	store    Store
	renderer *certificates.Renderer
	blob     storage.Blob
	locker   Locker
	mailer   notifications.Mailer
	composer *notifications.Composer
	lockTTL  time.Duration
	clock    func() time.Time
	logger   *zap.Logger
}

// NewIssuer creates a certificate issuer.
func NewIssuer(deps IssuerDeps) *Issuer {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Blob == nil {
		deps.Blob = storage.Disabled{}
	}
	if deps.LockTTL <= 0 {
		deps.LockTTL = DefaultCertificateLockTTL
	}
	return &Issuer{
		store:    deps.Store,
		renderer: deps.Renderer,
		blob:     deps.Blob,
		locker:   deps.Locker,
		mailer:   deps.Mailer,
		composer: deps.Composer,
		lockTTL:  deps.LockTTL,
		clock:    time.Now,
		logger:   deps.Logger,
	}
}

// Generate renders the certificate of a registration and stores it under its token.
// Preconditions, in order: event template, confirmed, present. opts may relax the last two.
// A failed render or upload leaves the registration unchanged; a new run overwrites the artifact.
func (i *Issuer) Generate(ctx context.Context, id uuid.UUID, opts CertificateOptions) (*models.Registration, error) {
	release, err := i.locker.Acquire(ctx, "certificate:"+id.String(), i.lockTTL)
	if errors.Is(err, pkgredis.ErrLocked) {
		return nil, ErrCertificateBusy
	}
	if err != nil {
		return nil, fmt.Errorf("acquire certificate lock: %w", err)
	}
	defer release()

	var (
		detail  *models.RegistrationDetail
		signers []models.OrderedSigner
	)
	err = i.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if detail, err = tx.GetRegistrationDetail(ctx, id); err != nil {
			return err
		}
		signers, err = tx.ListEventSigners(ctx, detail.Event.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !detail.Event.HasCertificateTemplate() {
		return nil, ErrNoCertificateTemplate
	}
	if _, err := certifyNext(detail.Status, opts); err != nil {
		return nil, err
	}

	blocks, err := i.signatureBlocks(ctx, signers)
	if err != nil {
		return nil, err
	}
	doc, err := i.renderer.Render(ctx, detail.Event.CertificateTemplate, certificates.BuildContext(detail, blocks))
	if err != nil {
		i.logger.Warn("certificate render failed", zap.String("registration_id", id.String()), zap.Error(err))
		return nil, err
	}
	key := storage.CertificateKey(detail.Token.String())
	if err := i.blob.Put(ctx, key, "application/pdf", bytes.NewReader(doc), int64(len(doc))); err != nil {
		return nil, apperror.External(apperror.CodeStorageFailed, "store certificate", err)
	}

	var reg *models.Registration
	err = i.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		// Presence may have changed while rendering.
		current, err := tx.GetRegistrationDetail(ctx, id)
		if err != nil {
			return err
		}
		next, err := certifyNext(current.Status, opts)
		if err != nil {
			return err
		}
		if err := tx.SetCertificate(ctx, id, key, next); err != nil {
			return err
		}
		current.Status, current.CertificateKey = next, key
		reg = &current.Registration
		return nil
	})
	if err != nil {
		return nil, err
	}
	i.logger.Info("certificate generated", zap.String("registration_id", id.String()), zap.String("key", key))
	return reg, nil
}

func (i *Issuer) signatureBlocks(ctx context.Context, signers []models.OrderedSigner) ([]certificates.Signer, error) {
	blocks := make([]certificates.Signer, 0, len(signers))
	for _, s := range signers {
		b := certificates.Signer{Name: s.Name, Title: s.Title, DisplayOrder: s.DisplayOrder}
		if s.SignatureKey != "" {
			u, err := i.blob.PresignGet(ctx, s.SignatureKey)
			if err != nil {
				return nil, apperror.External(apperror.CodeStorageFailed, "presign signature", err)
			}
			b.SignatureURL = u
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// SendEmail mails the download link of a generated certificate and records the delivery.
// It does not change the registration status and may be repeated.
func (i *Issuer) SendEmail(ctx context.Context, id uuid.UUID) error {
	var detail *models.RegistrationDetail
	err := i.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		detail, err = tx.GetRegistrationDetail(ctx, id)
		return err
	})
	if err != nil {
		return err
	}
	if !detail.CertificateGenerated() {
		return ErrCertificateMissing
	}
	link, err := i.blob.PresignGet(ctx, detail.CertificateKey)
	if err != nil {
		return apperror.External(apperror.CodeStorageFailed, "presign certificate", err)
	}
	email, err := i.composer.CertificateEmail(detail, link)
	if err != nil {
		return err
	}

	now := i.clock()
	eventID := detail.Event.ID
	entry := &models.EmailLog{
		EventID:        &eventID,
		RegistrationID: &id,
		EmailType:      models.EmailTypeCertificate,
		RecipientEmail: email.To,
		Subject:        email.Subject,
		BodyHTML:       email.HTML,
		Attempts:       1,
		CreatedAt:      now,
	}
	sendErr := i.mailer.Send(ctx, email.To, email.Subject, email.HTML)
	if sendErr != nil {
		entry.Status = models.EmailLogStatusFailed
		entry.ErrorMessage = sendErr.Error()
	} else {
		entry.Status = models.EmailLogStatusSent
		entry.SentAt = &now
	}

	err = i.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if sendErr == nil {
			if err := tx.MarkCertificateSent(ctx, id, now); err != nil {
				return err
			}
		}
		return tx.InsertEmailLog(ctx, entry)
	})
	if sendErr != nil {
		if err != nil {
			i.logger.Error("record failed certificate email", zap.String("registration_id", id.String()), zap.Error(err))
		}
		return apperror.External(apperror.CodeDeliveryFailed, "send certificate email", sendErr)
	}
	if err != nil {
		return err
	}
	i.logger.Info("certificate emailed", zap.String("registration_id", id.String()))
	return nil
}

// Verification is the public proof of a certificate.
type Verification struct {
	AttendeeName   string    `json:"attendee_name"`
	TutorialTitle  string    `json:"tutorial_title"`
	EventTitle     string    `json:"event_title"`
	EventStartDate time.Time `json:"event_start_date"`
	DurationHours  int       `json:"duration_hours"`
	DownloadURL    string    `json:"download_url"`
}

// Verify looks up the certificate issued under token.
func (i *Issuer) Verify(ctx context.Context, token string) (*Verification, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(token))
	if err != nil {
		return nil, ErrInvalidToken
	}
	var detail *models.RegistrationDetail
	err = i.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		detail, err = tx.GetRegistrationDetailByToken(ctx, parsed)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !detail.CertificateGenerated() {
		return nil, ErrCertificateMissing
	}
	link, err := i.blob.PresignGet(ctx, detail.CertificateKey)
	if err != nil {
		return nil, apperror.External(apperror.CodeStorageFailed, "presign certificate", err)
	}
	return &Verification{
		AttendeeName:   detail.Attendee.FullName,
		TutorialTitle:  detail.Tutorial.Title,
		EventTitle:     detail.Event.Title,
		EventStartDate: detail.Event.StartDate,
		DurationHours:  detail.Tutorial.DurationHours(),
		DownloadURL:    link,
	}, nil
}

// GenerateMany runs Generate for each id and reports every outcome.
func (i *Issuer) GenerateMany(ctx context.Context, ids []uuid.UUID) []BulkResult {
	results := make([]BulkResult, 0, len(ids))
	for _, id := range ids {
		r := BulkResult{RegistrationID: id}
		reg, err := i.Generate(ctx, id, CertificateOptions{})
		if err != nil {
			r.Err = err
		} else {
			r.Status = reg.Status
		}
		results = append(results, r)
	}
	return results
}

// SendMany runs SendEmail for each id and reports every outcome.
func (i *Issuer) SendMany(ctx context.Context, ids []uuid.UUID) []BulkResult {
	results := make([]BulkResult, 0, len(ids))
	for _, id := range ids {
		results = append(results, BulkResult{RegistrationID: id, Err: i.SendEmail(ctx, id)})
	}
	return results
}
