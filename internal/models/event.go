package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is a conference or meetup that owns tutorials and certificate signers.
type Event struct {
	ID                  uuid.UUID `json:"id"`
	Title               string    `json:"title"`
	Slug                string    `json:"slug"`
	StartDate           time.Time `json:"start_date"`
	EndDate             time.Time `json:"end_date"`
	Description         string    `json:"description,omitempty"`
	Location            string    `json:"location,omitempty"`
	URL                 string    `json:"url,omitempty"`
	ImageKey            string    `json:"-"`
	CertificateTemplate string    `json:"-"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// HasCertificateTemplate reports whether certificates can be rendered for the event.
func (e *Event) HasCertificateTemplate() bool {
	return e.CertificateTemplate != ""
}

// Instructor teaches one or more tutorials.
type Instructor struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Bio       string    `json:"bio,omitempty"`
	PhotoKey  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// CertificateSigner is a person whose name and signature appear on certificates.
type CertificateSigner struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Title        string    `json:"title"`
	SignatureKey string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// EventCertificateSigner attaches a signer to an event with a display order.
type EventCertificateSigner struct {
	EventID      uuid.UUID `json:"event_id"`
	SignerID     uuid.UUID `json:"signer_id"`
	DisplayOrder int       `json:"display_order"`
}

// OrderedSigner is a signer as listed for one event.
type OrderedSigner struct {
	CertificateSigner
	DisplayOrder int `json:"display_order"`
}
