package apperror

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown        Code = "UNKNOWN"
	CodeInvalidRequest Code = "INVALID_REQUEST"

	// Input validation
	CodeInvalidCPF           Code = "INVALID_CPF"
	CodeInvalidCPFFormat     Code = "INVALID_CPF_FORMAT"
	CodeInvalidBirthday      Code = "INVALID_BIRTHDAY"
	CodeAttendeeDataRequired Code = "ATTENDEE_DATA_REQUIRED"
	CodeInvalidToken         Code = "INVALID_TOKEN"
	CodeInvalidDates         Code = "INVALID_DATES"
	CodeInvalidVacancies     Code = "INVALID_VACANCIES"
	CodeInvalidSignerOrder   Code = "INVALID_SIGNER_ORDER"
	CodeTitleRequired        Code = "TITLE_REQUIRED"
	CodeInvalidTemplate      Code = "INVALID_TEMPLATE"
	CodeInvalidImage         Code = "INVALID_IMAGE"
	CodeInvalidEmail         Code = "INVALID_EMAIL"
	CodeInvalidName          Code = "INVALID_NAME"

	// Subscription rules
	CodeAlreadySubscribed Code = "ALREADY_SUBSCRIBED"
	CodeNoVacancies       Code = "NO_VACANCIES"
	CodeConfirmationFull  Code = "CONFIRMATION_FULL"
	CodeScheduleConflict  Code = "SCHEDULE_CONFLICT"
	CodeTutorialStarted   Code = "TUTORIAL_STARTED"
	CodeNotSubscribed     Code = "NOT_SUBSCRIBED"
	CodeSlugTaken         Code = "SLUG_TAKEN"
	CodeCPFTaken          Code = "CPF_TAKEN"

	// Lifecycle rules
	CodeNoCertificateTemplate Code = "NO_CERTIFICATE_TEMPLATE"
	CodeNotConfirmed          Code = "NOT_CONFIRMED"
	CodeNotPresent            Code = "NOT_PRESENT"
	CodeCertificateMissing    Code = "CERTIFICATE_MISSING"
	CodeCertificateBusy       Code = "CERTIFICATE_BUSY"
	CodeInvalidTransition     Code = "INVALID_TRANSITION"

	// Admin access
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeEmailTaken         Code = "EMAIL_TAKEN"

	// Not found
	CodeEventNotFound        Code = "EVENT_NOT_FOUND"
	CodeTutorialNotFound     Code = "TUTORIAL_NOT_FOUND"
	CodeAttendeeNotFound     Code = "ATTENDEE_NOT_FOUND"
	CodeRegistrationNotFound Code = "REGISTRATION_NOT_FOUND"
	CodeInstructorNotFound   Code = "INSTRUCTOR_NOT_FOUND"
	CodeSignerNotFound       Code = "SIGNER_NOT_FOUND"
	CodeFileNotFound         Code = "FILE_NOT_FOUND"

	// Collaborators
	CodeConversionFailed Code = "CONVERSION_FAILED"
	CodeDeliveryFailed   Code = "DELIVERY_FAILED"
	CodeStorageFailed    Code = "STORAGE_FAILED"
)
