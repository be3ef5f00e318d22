package service

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cxr-report-server/internal/domain"
)

func testUploadConfig() domain.UploadConfig {
	return domain.UploadConfig{
		MaxImageSizeMB:    10,
		AllowedExtensions: []string{".jpg", ".jpeg", ".png"},
	}
}

func TestValidateImageUpload(t *testing.T) {
	validContent := bytes.Repeat([]byte{0xFF}, 200)

	tests := []struct {
		name     string
		filename string
		content  []byte
		wantErr  bool
	}{
		{
			name:     "valid jpg",
			filename: "chest.jpg",
			content:  validContent,
		},
		{
			name:     "valid png",
			filename: "chest.png",
			content:  validContent,
		},
		{
			name:     "uppercase extension accepted",
			filename: "chest.JPG",
			content:  validContent,
		},
		{
			name:     "empty file",
			filename: "chest.jpg",
			content:  nil,
			wantErr:  true,
		},
		{
			name:     "disallowed extension",
			filename: "chest.gif",
			content:  validContent,
			wantErr:  true,
		},
		{
			name:     "no extension",
			filename: "chest",
			content:  validContent,
			wantErr:  true,
		},
		{
			name:     "below minimum viable size",
			filename: "chest.jpg",
			content:  bytes.Repeat([]byte{0xFF}, 50),
			wantErr:  true,
		},
		{
			name:     "over size limit",
			filename: "chest.jpg",
			content:  bytes.Repeat([]byte{0xFF}, 11*1024*1024),
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateImageUpload(tt.filename, tt.content, testUploadConfig())
			if tt.wantErr {
				assert.Error(t, err)
				var validationErr *domain.ValidationError
				assert.ErrorAs(t, err, &validationErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
