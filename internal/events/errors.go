package events

import "github.com/eventportal/backend/pkg/apperror"

var (
	ErrEventNotFound      = apperror.NotFound(apperror.CodeEventNotFound, "event not found")
	ErrTutorialNotFound   = apperror.NotFound(apperror.CodeTutorialNotFound, "tutorial not found")
	ErrInstructorNotFound = apperror.NotFound(apperror.CodeInstructorNotFound, "instructor not found")
	ErrSignerNotFound     = apperror.NotFound(apperror.CodeSignerNotFound, "signer not found")
	ErrFileNotFound       = apperror.NotFound(apperror.CodeFileNotFound, "file not found")
	ErrSlugTaken          = apperror.Rule(apperror.CodeSlugTaken, "slug already in use")
	ErrInvalidSignerOrder = apperror.Validation(apperror.CodeInvalidSignerOrder, "display order must be >= 1")
	ErrInvalidImage       = apperror.Validation(apperror.CodeInvalidImage, "unsupported image")
	ErrStorageDisabled    = apperror.External(apperror.CodeStorageFailed, "blob storage not configured", nil)
)
