package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatwire/internal/pkg/errs"
)

func TestValidateFileSize(t *testing.T) {
	assert.Nil(t, ValidateFileSize(1))
	assert.Nil(t, ValidateFileSize(MaxAttachmentSize))

	customErr := ValidateFileSize(0)
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrInvalidParams, customErr.Code)

	customErr = ValidateFileSize(MaxAttachmentSize + 1)
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrFileSizeTooLarge, customErr.Code)
}

func TestValidateFileType(t *testing.T) {
	assert.Nil(t, ValidateFileType("photo.png", "image/png"))
	assert.Nil(t, ValidateFileType("photo.JPG", "IMAGE/JPEG"))

	tests := []struct {
		name     string
		fileName string
		mimeType string
	}{
		{"disallowed mime", "doc.pdf", "application/pdf"},
		{"no extension", "photo", "image/png"},
		{"extension mime mismatch", "photo.gif", "image/png"},
		{"unknown extension", "photo.bmp", "image/png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			customErr := ValidateFileType(tt.fileName, tt.mimeType)
			require.NotNil(t, customErr)
			assert.Equal(t, errs.ErrInvalidParams, customErr.Code)
		})
	}
}
