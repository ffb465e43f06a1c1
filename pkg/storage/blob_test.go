package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateImageType(t *testing.T) {
	assert.True(t, ValidateImageType("image/png", ""))
	assert.True(t, ValidateImageType("", "banner.JPEG"))
	assert.True(t, ValidateImageType("application/octet-stream", "photo.webp"))
	assert.False(t, ValidateImageType("video/mp4", "clip.mp4"))
	assert.False(t, ValidateImageType("", "notes"))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "certificates/abc.pdf", CertificateKey("abc"))
	assert.Equal(t, "events/e1/banner.png", EventImageKey("e1", "../../banner.png"))
	assert.Equal(t, "instructors/i1/me.jpg", InstructorPhotoKey("i1", "me.jpg"))
	assert.Equal(t, "signers/s1/sig.png", SignatureKey("s1", "dir/sig.png"))
	assert.Equal(t, "image/png", ContentTypeForFilename("x.PNG"))
	assert.Equal(t, "application/octet-stream", ContentTypeForFilename("x.bin"))
}

func TestDisabled(t *testing.T) {
	var b Blob = Disabled{}
	_, err := b.PresignGet(context.Background(), "k")
	assert.ErrorIs(t, err, ErrDisabled)
	assert.ErrorIs(t, b.Put(context.Background(), "k", "text/plain", strings.NewReader("x"), 1), ErrDisabled)
}
