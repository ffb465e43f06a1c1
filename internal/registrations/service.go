package registrations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventportal/backend/internal/cpf"
	"github.com/eventportal/backend/internal/models"
	"github.com/eventportal/backend/internal/notifications"
)

const (
	// BirthdayLayout is the accepted birthday format (DD/MM/YYYY).
	BirthdayLayout = "02/01/2006"
	// MaxNameLength is the longest attendee name accepted, in characters.
	MaxNameLength = 255
)

var validate = validator.New()

// Service runs the subscription engine and the registration lifecycle.
type Service struct {
	store    Store
	composer *notifications.Composer
	clock    func() time.Time
	newToken func() uuid.UUID
	onSeats  SeatListener
	logger   *zap.Logger
}

// NewService creates the registration service.
func NewService(store Store, composer *notifications.Composer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		composer: composer,
		clock:    time.Now,
		newToken: uuid.New,
		logger:   logger,
	}
}

// SetSeatListener registers fn to run after a commit that may change confirmed counts.
func (s *Service) SetSeatListener(fn SeatListener) {
	s.onSeats = fn
}

func (s *Service) seatsChanged(eventID, tutorialID uuid.UUID) {
	if s.onSeats != nil {
		s.onSeats(eventID, tutorialID)
	}
}

// SubscribeInput identifies the attendee by CPF. Name, Email and Birthday are required
// the first time a CPF is seen and update the attendee otherwise.
type SubscribeInput struct {
	TutorialID uuid.UUID
	CPF        string
	Name       string
	Email      string
	Birthday   string
}

// SubscribeResult is returned on a successful subscription.
type SubscribeResult struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	Token          uuid.UUID `json:"-"`
	Subscribed     bool      `json:"subscribed"`
}

// Subscribe registers the attendee for the tutorial as pending and stores the confirmation
// email in the outbox, all in one transaction.
func (s *Service) Subscribe(ctx context.Context, in SubscribeInput) (*SubscribeResult, error) {
	if !cpf.IsPlain(in.CPF) {
		return nil, ErrInvalidCPFFormat
	}
	if _, err := cpf.Validate(in.CPF); err != nil {
		return nil, err
	}
	if err := validateAttendee(in); err != nil {
		return nil, err
	}
	var birthday *time.Time
	if b := strings.TrimSpace(in.Birthday); b != "" {
		parsed, err := time.Parse(BirthdayLayout, b)
		if err != nil {
			return nil, ErrInvalidBirthday
		}
		birthday = &parsed
	}

	var res *SubscribeResult
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		tutorial, err := tx.LockTutorial(ctx, in.TutorialID)
		if err != nil {
			return err
		}
		attendee, err := s.upsertAttendee(ctx, tx, in, birthday)
		if err != nil {
			return err
		}
		reg, err := s.register(ctx, tx, tutorial, attendee)
		if err != nil {
			return err
		}
		res = &SubscribeResult{RegistrationID: reg.ID, Token: reg.Token, Subscribed: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("attendee subscribed",
		zap.String("tutorial_id", in.TutorialID.String()),
		zap.String("registration_id", res.RegistrationID.String()))
	return res, nil
}

// validateAttendee checks the optional contact fields. The email becomes an outbox recipient,
// so anything but a single address is rejected here.
func validateAttendee(in SubscribeInput) error {
	if email := strings.TrimSpace(in.Email); email != "" {
		if err := validate.Var(email, "email,max=254"); err != nil {
			return ErrInvalidEmail
		}
	}
	if err := validate.Var(strings.TrimSpace(in.Name), fmt.Sprintf("max=%d", MaxNameLength)); err != nil {
		return ErrInvalidName
	}
	return nil
}

func (s *Service) upsertAttendee(ctx context.Context, tx Tx, in SubscribeInput, birthday *time.Time) (*models.Attendee, error) {
	attendee, err := tx.GetAttendeeByCPF(ctx, in.CPF)
	switch {
	case errors.Is(err, ErrAttendeeNotFound):
		if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Email) == "" || birthday == nil {
			return nil, ErrAttendeeDataRequired
		}
		attendee = &models.Attendee{CPF: in.CPF}
	case err != nil:
		return nil, err
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		attendee.FullName = name
	}
	if email := strings.TrimSpace(in.Email); email != "" {
		attendee.Email = email
	}
	if birthday != nil {
		attendee.Birthday = birthday
	}
	if err := tx.SaveAttendee(ctx, attendee); err != nil {
		return nil, err
	}
	return attendee, nil
}

// register evaluates the rules against a fresh snapshot and inserts the pending registration.
// The caller must hold the tutorial lock in tx.
func (s *Service) register(ctx context.Context, tx Tx, tutorial *models.Tutorial, attendee *models.Attendee) (*models.Registration, error) {
	snap, err := s.snapshot(ctx, tx, tutorial, attendee.ID)
	if err != nil {
		return nil, err
	}
	if err := Evaluate(snap, s.clock()); err != nil {
		return nil, err
	}
	reg := &models.Registration{
		TutorialID:   tutorial.ID,
		AttendeeID:   attendee.ID,
		Token:        s.newToken(),
		Status:       models.StatusPending,
		RegisteredAt: s.clock(),
	}
	if err := tx.InsertRegistration(ctx, reg); err != nil {
		return nil, err
	}
	if err := s.enqueueConfirmation(ctx, tx, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

func (s *Service) snapshot(ctx context.Context, tx Tx, tutorial *models.Tutorial, attendeeID uuid.UUID) (Snapshot, error) {
	snap := Snapshot{Tutorial: *tutorial}
	_, err := tx.FindRegistration(ctx, tutorial.ID, attendeeID)
	switch {
	case err == nil:
		snap.AlreadySubscribed = true
	case !errors.Is(err, ErrNotSubscribed):
		return snap, err
	}
	if snap.ConfirmedCount, err = tx.CountConfirmed(ctx, tutorial.ID); err != nil {
		return snap, err
	}
	if snap.ScheduleConflict, err = tx.HasOverlap(ctx, attendeeID, tutorial.StartAt, tutorial.EndAt); err != nil {
		return snap, err
	}
	return snap, nil
}

func (s *Service) enqueueConfirmation(ctx context.Context, tx Tx, reg *models.Registration) error {
	if s.composer == nil {
		return nil
	}
	detail, err := tx.GetRegistrationDetail(ctx, reg.ID)
	if err != nil {
		return err
	}
	email, err := s.composer.ConfirmationEmail(detail)
	if err != nil {
		return err
	}
	eventID, regID := detail.Event.ID, reg.ID
	return tx.InsertEmailLog(ctx, &models.EmailLog{
		EventID:        &eventID,
		RegistrationID: &regID,
		EmailType:      models.EmailTypeRegistrationConfirmation,
		RecipientEmail: email.To,
		Subject:        email.Subject,
		BodyHTML:       email.HTML,
		Status:         models.EmailLogStatusPending,
		CreatedAt:      s.clock(),
	})
}

// Unsubscribe deletes the attendee's registration for the tutorial.
func (s *Service) Unsubscribe(ctx context.Context, tutorialID uuid.UUID, cpfValue string) error {
	if !cpf.IsPlain(cpfValue) {
		return ErrInvalidCPFFormat
	}
	var (
		eventID   uuid.UUID
		freedSeat bool
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		attendee, err := tx.GetAttendeeByCPF(ctx, cpfValue)
		if err != nil {
			return err
		}
		tutorial, err := tx.LockTutorial(ctx, tutorialID)
		if err != nil {
			return err
		}
		reg, err := tx.FindRegistration(ctx, tutorialID, attendee.ID)
		if err != nil {
			return err
		}
		eventID, freedSeat = tutorial.EventID, reg.Confirmed()
		return tx.DeleteRegistration(ctx, reg.ID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("attendee unsubscribed", zap.String("tutorial_id", tutorialID.String()))
	if freedSeat {
		s.seatsChanged(eventID, tutorialID)
	}
	return nil
}

// CheckResult reports an attendee's standing for a tutorial.
// Available is set only when the attendee exists but is not registered.
type CheckResult struct {
	Subscribed     bool       `json:"subscribed"`
	RegistrationID *uuid.UUID `json:"registration_id,omitempty"`
	Available      *bool      `json:"available,omitempty"`
}

// CheckSubscription reports whether the CPF holds a confirmed registration for the tutorial
// and, if not registered, whether its schedule leaves room for it.
func (s *Service) CheckSubscription(ctx context.Context, tutorialID uuid.UUID, cpfValue string) (*CheckResult, error) {
	if !cpf.IsPlain(cpfValue) {
		return nil, ErrInvalidCPFFormat
	}
	res := &CheckResult{}
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		attendee, err := tx.GetAttendeeByCPF(ctx, cpfValue)
		if errors.Is(err, ErrAttendeeNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		tutorial, err := tx.GetTutorial(ctx, tutorialID)
		if err != nil {
			return err
		}
		reg, err := tx.FindRegistration(ctx, tutorialID, attendee.ID)
		if err == nil {
			id := reg.ID
			res.Subscribed = reg.Confirmed()
			res.RegistrationID = &id
			return nil
		}
		if !errors.Is(err, ErrNotSubscribed) {
			return err
		}
		conflict, err := tx.HasOverlap(ctx, attendee.ID, tutorial.StartAt, tutorial.EndAt)
		if err != nil {
			return err
		}
		available := !conflict
		res.Available = &available
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ConfirmResult names what was confirmed.
type ConfirmResult struct {
	EventTitle    string `json:"event_title"`
	EventSlug     string `json:"event_slug"`
	TutorialTitle string `json:"tutorial_title"`
}

// Confirm moves the registration behind token from pending to confirmed, taking a seat.
// Confirming an already confirmed registration is a no-op.
func (s *Service) Confirm(ctx context.Context, token string) (*ConfirmResult, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(token))
	if err != nil {
		return nil, ErrInvalidToken
	}
	var (
		res     *ConfirmResult
		changed bool
		detail  *models.RegistrationDetail
	)
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		detail, err = tx.GetRegistrationDetailByToken(ctx, parsed)
		if err != nil {
			return err
		}
		tutorial, err := tx.LockTutorial(ctx, detail.TutorialID)
		if err != nil {
			return err
		}
		res = &ConfirmResult{
			EventTitle:    detail.Event.Title,
			EventSlug:     detail.Event.Slug,
			TutorialTitle: detail.Tutorial.Title,
		}
		next, err := Next(detail.Status, ActionConfirm)
		if err != nil || next == detail.Status {
			return err
		}
		confirmed, err := tx.CountConfirmed(ctx, tutorial.ID)
		if err != nil {
			return err
		}
		if confirmed >= tutorial.Vacancies {
			return ErrConfirmationFull
		}
		changed = true
		return tx.UpdateStatus(ctx, detail.ID, next)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.logger.Info("registration confirmed", zap.String("registration_id", detail.ID.String()))
		s.seatsChanged(detail.Event.ID, detail.TutorialID)
	}
	return res, nil
}

// BulkResult is the outcome for one id of a bulk operation.
type BulkResult struct {
	RegistrationID uuid.UUID
	Status         models.RegistrationStatus
	Err            error
}

// MarkPresence records presence (or absence) for each explicit registration id.
// Every id runs in its own transaction, so one failure does not affect the others.
func (s *Service) MarkPresence(ctx context.Context, ids []uuid.UUID, present bool) []BulkResult {
	action := ActionMarkAbsent
	if present {
		action = ActionMarkPresent
	}
	results := make([]BulkResult, 0, len(ids))
	for _, id := range ids {
		r := BulkResult{RegistrationID: id}
		r.Err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
			d, err := tx.GetRegistrationDetail(ctx, id)
			if err != nil {
				return err
			}
			next, err := Next(d.Status, action)
			if err != nil {
				r.Status = d.Status
				return err
			}
			r.Status = next
			if next == d.Status {
				return nil
			}
			return tx.UpdateStatus(ctx, id, next)
		})
		if r.Err != nil {
			s.logger.Warn("presence not recorded", zap.String("registration_id", id.String()), zap.Error(r.Err))
		}
		results = append(results, r)
	}
	return results
}

// ListByTutorial returns the registrations of a tutorial for operators. A non-empty status
// keeps only registrations in that state.
func (s *Service) ListByTutorial(ctx context.Context, tutorialID uuid.UUID, status models.RegistrationStatus) ([]models.RegistrationView, error) {
	var views []models.RegistrationView
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetTutorial(ctx, tutorialID); err != nil {
			return err
		}
		list, err := tx.ListRegistrationsByTutorial(ctx, tutorialID)
		if err != nil {
			return err
		}
		views = make([]models.RegistrationView, 0, len(list))
		for _, d := range list {
			if status != "" && d.Status != status {
				continue
			}
			views = append(views, models.NewRegistrationView(d))
		}
		return nil
	})
	return views, err
}
