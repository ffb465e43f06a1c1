package events

import (
	"context"

	"github.com/google/uuid"

	"github.com/eventportal/backend/internal/models"
)

// Store is the catalogue persistence used by the handlers.
type Store interface {
	ListEvents(ctx context.Context) ([]models.Event, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	GetEventBySlug(ctx context.Context, slug string) (*models.Event, error)
	CreateEvent(ctx context.Context, e *models.Event) error
	UpdateEvent(ctx context.Context, e *models.Event) error
	DeleteEvent(ctx context.Context, id uuid.UUID) error
	SetEventImage(ctx context.Context, id uuid.UUID, key string) error
	SetCertificateTemplate(ctx context.Context, id uuid.UUID, markup string) error

	// ListTutorials returns the event's tutorials ordered by start, with confirmed seat counts and instructors.
	ListTutorials(ctx context.Context, eventID uuid.UUID) ([]models.TutorialSummary, error)
	GetTutorial(ctx context.Context, id uuid.UUID) (*models.Tutorial, error)
	// SaveTutorial inserts t when its ID is zero and updates it otherwise, replacing its instructors.
	SaveTutorial(ctx context.Context, t *models.Tutorial, instructorIDs []uuid.UUID) error
	DeleteTutorial(ctx context.Context, id uuid.UUID) error

	ListInstructors(ctx context.Context) ([]models.Instructor, error)
	GetInstructor(ctx context.Context, id uuid.UUID) (*models.Instructor, error)
	CreateInstructor(ctx context.Context, in *models.Instructor) error
	SetInstructorPhoto(ctx context.Context, id uuid.UUID, key string) error

	ListSigners(ctx context.Context) ([]models.CertificateSigner, error)
	GetSigner(ctx context.Context, id uuid.UUID) (*models.CertificateSigner, error)
	CreateSigner(ctx context.Context, s *models.CertificateSigner) error
	SetSignerSignature(ctx context.Context, id uuid.UUID, key string) error
	// AttachSigner adds the signer to the event or updates its display order.
	AttachSigner(ctx context.Context, link models.EventCertificateSigner) error
	DetachSigner(ctx context.Context, eventID, signerID uuid.UUID) error
	ListEventSigners(ctx context.Context, eventID uuid.UUID) ([]models.OrderedSigner, error)
}
