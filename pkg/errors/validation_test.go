package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateResourceName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "plate1", false},
		{"valid with dash", "tip-rack", false},
		{"valid with underscore", "trough_halide", false},
		{"valid with space", "Compound A", false},

		{"empty", "", true},
		{"too long", string(make([]byte, 300)), true},
		{"slash", "carrier/plate", true},
		{"null byte", "foo\x00bar", true},
		{"backslash", "foo\\bar", true},
		{"control char", "foo\x01bar", true},
		{"newline", "foo\nbar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateResourceName(tt.input)
			assert.Equal(t, tt.wantErr, err != nil, "ValidateResourceName(%q) error = %v", tt.input, err)
			if err != nil {
				assert.True(t, Is(err, ErrCodeInvalidName))
			}
		})
	}
}

func TestValidateArtifactPath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"relative", "protocol.gif", false},
		{"nested", "out/run-1/protocol.GIF", false},

		{"empty", "", true},
		{"blank", "   ", true},
		{"directory", "out/", true},
		{"wrong extension", "protocol.png", true},
		{"no extension", "protocol", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArtifactPath(tt.input)
			assert.Equal(t, tt.wantErr, err != nil, "ValidateArtifactPath(%q) error = %v", tt.input, err)
		})
	}
}
