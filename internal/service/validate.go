package service

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cxr-report-server/internal/domain"
)

// minViableImageSize rejects payloads too small to be any real image.
const minViableImageSize = 100

// ValidateImageUpload checks an uploaded image before the pipeline starts.
// Failures here must surface before any network call is made.
func ValidateImageUpload(filename string, content []byte, cfg domain.UploadConfig) error {
	if len(content) == 0 {
		return domain.NewValidationError("file", "the uploaded file is empty")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	allowed := false
	for _, e := range cfg.AllowedExtensions {
		if ext == strings.ToLower(e) {
			allowed = true
			break
		}
	}
	if !allowed {
		return domain.NewValidationError("file",
			fmt.Sprintf("invalid image format %q, supported formats: %s", ext, strings.Join(cfg.AllowedExtensions, ", ")))
	}

	if len(content) < minViableImageSize {
		return domain.NewValidationError("file", "the file does not appear to be a valid image")
	}

	maxBytes := int64(cfg.MaxImageSizeMB) * 1024 * 1024
	if int64(len(content)) > maxBytes {
		return domain.NewValidationError("file",
			fmt.Sprintf("image file too large, maximum allowed size is %dMB", cfg.MaxImageSizeMB))
	}

	return nil
}
