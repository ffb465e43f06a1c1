package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

const (
	// MaxImageFileSize is the maximum allowed size for event, instructor and signature images (5MB).
	MaxImageFileSize = 5 * 1024 * 1024
	// FolderCertificates is the prefix for generated certificate PDFs.
	FolderCertificates = "certificates"
	// FolderEvents is the prefix for event images.
	FolderEvents = "events"
	// FolderInstructors is the prefix for instructor photos.
	FolderInstructors = "instructors"
	// FolderSigners is the prefix for signer signature images.
	FolderSigners = "signers"
)

// ErrNotFound is returned by Open when the key does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Allowed image MIME types and extensions.
var (
	AllowedImageTypes = map[string]string{
		"image/jpeg": ".jpg",
		"image/jpg":  ".jpg",
		"image/png":  ".png",
		"image/webp": ".webp",
		"image/gif":  ".gif",
	}
	AllowedImageExtensions = map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".webp": "image/webp",
		".gif":  "image/gif",
	}
)

// Blob stores opaque objects under string keys.
type Blob interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	// Open returns the object body and content type. Caller must close the body.
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
	// PresignGet returns a time-limited download URL for key.
	PresignGet(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// ValidateImageType returns true if the content type or extension is an allowed image.
func ValidateImageType(contentType, filename string) bool {
	if contentType != "" {
		if _, ok := AllowedImageTypes[strings.ToLower(contentType)]; ok {
			return true
		}
	}
	ext := strings.ToLower(path.Ext(filename))
	if ext != "" {
		if _, ok := AllowedImageExtensions[ext]; ok {
			return true
		}
	}
	return false
}

// ContentTypeForFilename returns the MIME type for an image filename extension.
func ContentTypeForFilename(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ct, ok := AllowedImageExtensions[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

// CertificateKey returns the object key of a certificate: certificates/{token}.pdf.
func CertificateKey(token string) string {
	return path.Join(FolderCertificates, token+".pdf")
}

// EventImageKey returns events/{event_id}/{filename}.
func EventImageKey(eventID, filename string) string {
	return path.Join(FolderEvents, eventID, path.Base(filename))
}

// InstructorPhotoKey returns instructors/{instructor_id}/{filename}.
func InstructorPhotoKey(instructorID, filename string) string {
	return path.Join(FolderInstructors, instructorID, path.Base(filename))
}

// SignatureKey returns signers/{signer_id}/{filename}.
func SignatureKey(signerID, filename string) string {
	return path.Join(FolderSigners, signerID, path.Base(filename))
}

// ErrDisabled is returned by Disabled for every operation.
var ErrDisabled = errors.New("storage: not configured")

// Disabled is the Blob used when no bucket is configured.
type Disabled struct{}

var _ Blob = Disabled{}

func (Disabled) Put(context.Context, string, string, io.Reader, int64) error { return ErrDisabled }

func (Disabled) Open(context.Context, string) (io.ReadCloser, string, error) {
	return nil, "", ErrDisabled
}

func (Disabled) PresignGet(context.Context, string) (string, error) { return "", ErrDisabled }

func (Disabled) Delete(context.Context, string) error { return ErrDisabled }
