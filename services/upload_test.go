package services

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePDFUpload(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		wantErr string
	}{
		{"valid", []byte("%PDF-1.7\n..."), ""},
		{"empty", nil, "file is empty"},
		{"not a pdf", []byte("PK\x03\x04 docx"), "file is not a valid PDF"},
		{"too large", append([]byte("%PDF"), bytes.Repeat([]byte{'0'}, MaxUploadSize)...), "exceeds maximum"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePDFUpload(tt.content)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
