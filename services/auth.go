package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 10
	// AdminTokenLength is the length of a generated admin token in bytes (64 chars hex)
	AdminTokenLength = 32
)

// HashAdminToken hashes a dashboard token for ADMIN_TOKEN_HASH
func HashAdminToken(token string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(token), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	return string(bytes), nil
}

// VerifyAdminToken verifies a bearer token against a bcrypt hash.
// An empty hash never verifies.
func VerifyAdminToken(hash, token string) bool {
	if strings.TrimSpace(hash) == "" || token == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token))
	return err == nil
}

// GenerateAdminToken generates a cryptographically secure random token
func GenerateAdminToken() (string, error) {
	bytes := make([]byte, AdminTokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
