package registrations

import (
	"github.com/eventportal/backend/internal/models"
)

// Action is an operation that may move a registration between states.
type Action string

const (
	ActionConfirm     Action = "confirm"
	ActionMarkPresent Action = "mark_present"
	ActionMarkAbsent  Action = "mark_absent"
	ActionCertify     Action = "certify"
)

// CertificateOptions relaxes the certificate preconditions, as the batch command allows.
type CertificateOptions struct {
	SkipConfirmedCheck bool
	SkipPresentCheck   bool
}

// Next returns the status reached by applying action to current.
// Returning current unchanged means the action is an idempotent no-op.
//
//	pending   --confirm-->      confirmed
//	confirmed --mark_present--> attended
//	attended  --mark_absent-->  confirmed
//	attended  --certify-->      certified
//
// Presence cannot be recorded before confirmation, and a certified registration
// cannot be marked absent.
func Next(current models.RegistrationStatus, action Action) (models.RegistrationStatus, error) {
	switch action {
	case ActionConfirm:
		if current == models.StatusPending {
			return models.StatusConfirmed, nil
		}
		return current, nil
	case ActionMarkPresent:
		switch current {
		case models.StatusPending:
			return current, ErrNotConfirmed
		case models.StatusConfirmed:
			return models.StatusAttended, nil
		}
		return current, nil
	case ActionMarkAbsent:
		switch current {
		case models.StatusAttended:
			return models.StatusConfirmed, nil
		case models.StatusCertified:
			return current, ErrInvalidTransition
		}
		return current, nil
	case ActionCertify:
		return certifyNext(current, CertificateOptions{})
	}
	return current, ErrInvalidTransition
}

func certifyNext(current models.RegistrationStatus, opts CertificateOptions) (models.RegistrationStatus, error) {
	if !opts.SkipConfirmedCheck && !current.Confirmed() {
		return current, ErrNotConfirmed
	}
	present := current == models.StatusAttended || current == models.StatusCertified
	if !opts.SkipPresentCheck && !present {
		return current, ErrNotPresent
	}
	if !present {
		// Overridden checks issue the document without claiming attendance.
		return current, nil
	}
	return models.StatusCertified, nil
}
