package errors

import (
	"path/filepath"
	"strings"
	"unicode"
)

// ValidateResourceName validates a resource name before it enters the tree.
// Names end up inside event labels and therefore inside frame filenames, so
// control characters and path separators are rejected up front.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - No path separators or null bytes
//   - Maximum length of 256 characters
func ValidateResourceName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidName, "resource name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidName, "resource name too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidName, "resource name contains invalid control characters")
		}
	}

	for _, pattern := range []string{"/", "\\", "\x00"} {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidName, "resource name contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// ValidateArtifactPath validates the output path of a rendered animation.
// The path must name a file (not a directory) with a .gif extension.
func ValidateArtifactPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return New(ErrCodeInvalidPath, "artifact path cannot be empty")
	}

	if strings.HasSuffix(path, "/") || strings.HasSuffix(path, string(filepath.Separator)) {
		return New(ErrCodeInvalidPath, "artifact path must name a file: %s", path)
	}

	if !strings.EqualFold(filepath.Ext(path), ".gif") {
		return New(ErrCodeInvalidPath, "artifact path must end in .gif: %s", path)
	}

	return nil
}
