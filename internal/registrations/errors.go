package registrations

import "github.com/eventportal/backend/pkg/apperror"

var (
	// ErrInvalidCPFFormat is returned when the cpf is not exactly 11 digits.
	ErrInvalidCPFFormat = apperror.Validation(apperror.CodeInvalidCPFFormat, "cpf must be 11 digits")
	// ErrInvalidBirthday is returned when the birthday is not DD/MM/YYYY.
	ErrInvalidBirthday = apperror.Validation(apperror.CodeInvalidBirthday, "birthday must be DD/MM/YYYY")
	// ErrAttendeeDataRequired is returned when a new CPF arrives without name, email or birthday.
	ErrAttendeeDataRequired = apperror.Validation(apperror.CodeAttendeeDataRequired, "name, email and birthday are required for new attendees")
	// ErrInvalidEmail is returned when the attendee email is not a single valid address.
	ErrInvalidEmail = apperror.Validation(apperror.CodeInvalidEmail, "invalid email address")
	// ErrInvalidName is returned when the attendee name exceeds MaxNameLength.
	ErrInvalidName = apperror.Validation(apperror.CodeInvalidName, "name too long")
	// ErrInvalidToken is returned when a confirmation token is not a UUID.
	ErrInvalidToken = apperror.Validation(apperror.CodeInvalidToken, "invalid token")

	// ErrAlreadySubscribed is returned when the attendee already holds a registration for the tutorial.
	ErrAlreadySubscribed = apperror.Rule(apperror.CodeAlreadySubscribed, "attendee already subscribed to tutorial")
	// ErrNoVacancies is returned when confirmed registrations reached the tutorial vacancies.
	ErrNoVacancies = apperror.Rule(apperror.CodeNoVacancies, "no vacancies available")
	// ErrConfirmationFull is returned when confirming a pending registration after the last seat
	// went to another confirmation. The registration stays pending.
	ErrConfirmationFull = apperror.Rule(apperror.CodeConfirmationFull, "tutorial filled before confirmation")
	// ErrScheduleConflict is returned when the attendee holds an overlapping registration.
	ErrScheduleConflict = apperror.Rule(apperror.CodeScheduleConflict, "attendee has an overlapping registration")
	// ErrTutorialStarted is returned when subscribing at or after the tutorial start.
	ErrTutorialStarted = apperror.Rule(apperror.CodeTutorialStarted, "tutorial already started")
	// ErrNotSubscribed is returned when unsubscribing a pair without registration.
	ErrNotSubscribed = apperror.Rule(apperror.CodeNotSubscribed, "attendee is not subscribed to tutorial")

	// ErrNoCertificateTemplate is returned when the event has no certificate template.
	ErrNoCertificateTemplate = apperror.Rule(apperror.CodeNoCertificateTemplate, "event has no certificate template")
	// ErrNotConfirmed is returned when an action requires a confirmed registration.
	ErrNotConfirmed = apperror.Rule(apperror.CodeNotConfirmed, "registration not confirmed")
	// ErrNotPresent is returned when an action requires the attendee to be present.
	ErrNotPresent = apperror.Rule(apperror.CodeNotPresent, "attendee not present")
	// ErrCertificateMissing is returned when emailing a certificate that was never generated.
	ErrCertificateMissing = apperror.Rule(apperror.CodeCertificateMissing, "certificate not generated")
	// ErrCertificateBusy is returned when another generation holds the registration lock.
	ErrCertificateBusy = apperror.Rule(apperror.CodeCertificateBusy, "certificate generation in progress")
	// ErrInvalidTransition is returned for lifecycle moves the state machine rejects.
	ErrInvalidTransition = apperror.Rule(apperror.CodeInvalidTransition, "invalid registration transition")

	// ErrTutorialNotFound is returned for unknown tutorial ids.
	ErrTutorialNotFound = apperror.NotFound(apperror.CodeTutorialNotFound, "tutorial not found")
	// ErrAttendeeNotFound is returned for unknown CPFs.
	ErrAttendeeNotFound = apperror.NotFound(apperror.CodeAttendeeNotFound, "attendee not found")
	// ErrRegistrationNotFound is returned for unknown registration ids or tokens.
	ErrRegistrationNotFound = apperror.NotFound(apperror.CodeRegistrationNotFound, "registration not found")
	// ErrEventNotFound is returned for unknown event ids or slugs.
	ErrEventNotFound = apperror.NotFound(apperror.CodeEventNotFound, "event not found")
)
