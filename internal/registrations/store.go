package registrations

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/eventportal/backend/internal/models"
)

// Store runs fn inside one atomic transaction. Every subscribe, unsubscribe and confirm
// executes entirely inside a single InTx call.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the transactional view of the durable store.
type Tx interface {
	// LockTutorial loads the tutorial and holds its row lock until commit.
	LockTutorial(ctx context.Context, id uuid.UUID) (*models.Tutorial, error)
	GetTutorial(ctx context.Context, id uuid.UUID) (*models.Tutorial, error)
	ListEventSigners(ctx context.Context, eventID uuid.UUID) ([]models.OrderedSigner, error)

	GetAttendeeByCPF(ctx context.Context, cpf string) (*models.Attendee, error)
	// SaveAttendee inserts a when a.ID is uuid.Nil and updates it otherwise.
	SaveAttendee(ctx context.Context, a *models.Attendee) error

	FindRegistration(ctx context.Context, tutorialID, attendeeID uuid.UUID) (*models.Registration, error)
	CountConfirmed(ctx context.Context, tutorialID uuid.UUID) (int, error)
	// HasOverlap reports whether the attendee holds any registration whose tutorial
	// interval intersects [start, end).
	HasOverlap(ctx context.Context, attendeeID uuid.UUID, start, end time.Time) (bool, error)
	// InsertRegistration returns ErrAlreadySubscribed on a (tutorial, attendee) unique violation.
	InsertRegistration(ctx context.Context, r *models.Registration) error
	DeleteRegistration(ctx context.Context, id uuid.UUID) error
	GetRegistrationDetail(ctx context.Context, id uuid.UUID) (*models.RegistrationDetail, error)
	GetRegistrationDetailByToken(ctx context.Context, token uuid.UUID) (*models.RegistrationDetail, error)
	ListRegistrationsByTutorial(ctx context.Context, tutorialID uuid.UUID) ([]models.RegistrationDetail, error)
	ListRegistrationsByEvent(ctx context.Context, eventID uuid.UUID) ([]models.RegistrationDetail, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.RegistrationStatus) error
	SetCertificate(ctx context.Context, id uuid.UUID, key string, status models.RegistrationStatus) error
	MarkCertificateSent(ctx context.Context, id uuid.UUID, at time.Time) error

	InsertEmailLog(ctx context.Context, l *models.EmailLog) error
}

// SeatListener is told when the confirmed count of a tutorial may have changed.
type SeatListener func(eventID, tutorialID uuid.UUID)
