package models

import (
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus is the lifecycle state of a registration.
type RegistrationStatus string

const (
	// StatusPending is a new registration awaiting email confirmation.
	StatusPending RegistrationStatus = "pending"
	// StatusConfirmed holds a seat.
	StatusConfirmed RegistrationStatus = "confirmed"
	// StatusAttended was marked present by an operator.
	StatusAttended RegistrationStatus = "attended"
	// StatusCertified has a generated certificate.
	StatusCertified RegistrationStatus = "certified"
)

// Valid reports whether s is a known status.
func (s RegistrationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusAttended, StatusCertified:
		return true
	}
	return false
}

// Confirmed reports whether the status counts toward tutorial capacity.
func (s RegistrationStatus) Confirmed() bool {
	return s == StatusConfirmed || s == StatusAttended || s == StatusCertified
}

// ConfirmedStatuses lists the statuses that occupy a seat.
var ConfirmedStatuses = []RegistrationStatus{StatusConfirmed, StatusAttended, StatusCertified}

// Registration links one attendee to one tutorial.
type Registration struct {
	ID                uuid.UUID          `json:"id"`
	TutorialID        uuid.UUID          `json:"tutorial_id"`
	AttendeeID        uuid.UUID          `json:"attendee_id"`
	Token             uuid.UUID          `json:"uuid"`
	Status            RegistrationStatus `json:"status"`
	RegisteredAt      time.Time          `json:"registered_at"`
	CertificateKey    string             `json:"-"`
	CertificateSentAt *time.Time         `json:"certificate_sent_at,omitempty"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// Confirmed reports whether the attendee validated the registration.
func (r Registration) Confirmed() bool { return r.Status.Confirmed() }

// Present reports whether the attendee was marked present.
func (r Registration) Present() bool {
	return r.Status == StatusAttended || r.Status == StatusCertified
}

// CertificateGenerated reports whether a certificate artifact exists.
func (r Registration) CertificateGenerated() bool {
	return r.CertificateKey != ""
}

// RegistrationDetail is a registration joined with everything needed to notify or certify it.
type RegistrationDetail struct {
	Registration
	Attendee Attendee `json:"attendee"`
	Tutorial Tutorial `json:"tutorial"`
	Event    Event    `json:"event"`
}

// RegistrationView is the operator-facing listing row.
type RegistrationView struct {
	Registration
	AttendeeName  string `json:"attendee_name"`
	AttendeeEmail string `json:"attendee_email"`
	AttendeeCPF   string `json:"attendee_cpf"`
	TutorialTitle string `json:"tutorial_title"`
	Confirmed     bool   `json:"confirmed"`
	Present       bool   `json:"present"`
	Certificate   bool   `json:"certificate_generated"`
}

// NewRegistrationView builds the listing row for d.
func NewRegistrationView(d RegistrationDetail) RegistrationView {
	return RegistrationView{
		Registration:  d.Registration,
		AttendeeName:  d.Attendee.FullName,
		AttendeeEmail: d.Attendee.Email,
		AttendeeCPF:   d.Attendee.CPF,
		TutorialTitle: d.Tutorial.Title,
		Confirmed:     d.Confirmed(),
		Present:       d.Present(),
		Certificate:   d.CertificateGenerated(),
	}
}
