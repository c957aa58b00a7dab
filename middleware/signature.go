package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"eviction_intake_go/services"

	"github.com/labstack/echo/v4"
)

// SignatureHeader carries the HMAC-SHA256 of the raw request body
const SignatureHeader = "X-Signature-256"

// maxSignedBody bounds how much of the body is buffered for verification
const maxSignedBody = 32 << 20

// VerifySignature checks an HMAC-SHA256 signature over body. signature is
// the hex digest, with or without a "sha256=" prefix.
func VerifySignature(secret, body []byte, signature string) error {
	if len(secret) == 0 {
		return errors.New("signature: secret is empty")
	}
	if signature == "" {
		return errors.New("signature: header is missing")
	}

	signatureBytes, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return fmt.Errorf("signature: invalid hex: %w", err)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if subtle.ConstantTimeCompare(mac.Sum(nil), signatureBytes) != 1 {
		return errors.New("signature: mismatch")
	}
	return nil
}

// Sign returns the header value for body, used by clients and tests
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// RequireSignature rejects requests whose body does not match the
// X-Signature-256 header. An empty secret disables the check. The body is
// restored for the next handler.
func RequireSignature(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if secret == "" {
			return next
		}
		return func(c echo.Context) error {
			req := c.Request()
			body, err := io.ReadAll(io.LimitReader(req.Body, maxSignedBody))
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "Could not read request body")
			}
			req.Body.Close()
			req.Body = io.NopCloser(bytes.NewReader(body))

			if err := VerifySignature([]byte(secret), body, req.Header.Get(SignatureHeader)); err != nil {
				c.Logger().Warnf("[SECURITY] Rejected request from %s: %v", c.RealIP(), err)
				services.Monitor.TrackFailedCredential(c.RealIP(), "request signature")
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid request signature")
			}
			return next(c)
		}
	}
}
