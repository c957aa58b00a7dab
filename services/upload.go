package services

import (
	"bytes"
	"fmt"
)

const (
	MaxUploadSize   = 10 * 1024 * 1024 // 10MB
	AllowedMimeType = "application/pdf"
)

var pdfMagic = []byte("%PDF")

// ValidatePDFUpload checks that an uploaded document is a PDF within size
// limits. Every document is stored under a .pdf name.
func ValidatePDFUpload(content []byte) error {
	if len(content) == 0 {
		return fmt.Errorf("file is empty")
	}
	if len(content) > MaxUploadSize {
		return fmt.Errorf("file size exceeds maximum allowed size of 10MB")
	}
	if !bytes.HasPrefix(content, pdfMagic) {
		return fmt.Errorf("file is not a valid PDF")
	}
	return nil
}
