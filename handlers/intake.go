package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"eviction_intake_go/db"
	"eviction_intake_go/middleware"
	"eviction_intake_go/models"
	"eviction_intake_go/services"

	"github.com/labstack/echo/v4"
)

// intakeRequest accepts both form variants: {caseId, data} from the
// plain form and {caseId, formData, documents} from the upload form
type intakeRequest struct {
	CaseID    string            `json:"caseId"`
	Data      json.RawMessage   `json:"data"`
	FormData  json.RawMessage   `json:"formData"`
	Documents map[string]string `json:"documents"`
	// TurnstileToken is the bot challenge answer from the public form
	TurnstileToken string `json:"turnstileToken"`
}

// payload returns whichever case data field was sent
func (r *intakeRequest) payload() json.RawMessage {
	if len(r.Data) > 0 {
		return r.Data
	}
	return r.FormData
}

func isEmptyPayload(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return true
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err == nil && len(fields) == 0 {
		return true
	}
	return false
}

func badRequest(format string, args ...interface{}) error {
	return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf(format, args...))
}

// validationError maps a case validation failure to 400
func validationError(err error) error {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		if verr.Field == "caseId" {
			return badRequest("%s", verr.Message)
		}
		return badRequest("%s", verr.Error())
	}
	return badRequest("%s", err.Error())
}

// verifyHuman checks the Turnstile token when a secret key is configured
func verifyHuman(c echo.Context, secretKey, token string) error {
	if secretKey == "" {
		return nil
	}
	if _, err := services.VerifyTurnstileToken(c.Request().Context(), token, secretKey, c.RealIP()); err != nil {
		c.Logger().Warnf("[SECURITY] Bot verification failed for %s: %v", c.RealIP(), err)
		return echo.NewHTTPError(http.StatusForbidden, "Bot verification failed")
	}
	return nil
}

// decodeIntake turns the request body into a normalized case and its
// uploaded documents. Every error it returns is a 400 *echo.HTTPError.
func decodeIntake(req *intakeRequest) (*models.Case, map[string][]byte, error) {
	caseID := strings.TrimSpace(req.CaseID)
	if caseID == "" {
		return nil, nil, badRequest("Missing case ID")
	}
	if err := services.ValidateCaseID(caseID); err != nil {
		return nil, nil, validationError(err)
	}

	raw := req.payload()
	if isEmptyPayload(raw) {
		return nil, nil, badRequest("Missing case data")
	}

	var kase models.Case
	if err := json.Unmarshal(raw, &kase); err != nil {
		return nil, nil, badRequest("Invalid case data: %v", err)
	}
	kase.ID = caseID
	if err := services.NormalizeCase(&kase); err != nil {
		return nil, nil, validationError(err)
	}

	var uploads map[string][]byte
	for docType, encoded := range req.Documents {
		if err := services.ValidateCaseID(docType); err != nil {
			return nil, nil, badRequest("Invalid document type %q", docType)
		}
		content, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, nil, badRequest("Document %s is not valid base64", docType)
		}
		if err := services.ValidatePDFUpload(content); err != nil {
			return nil, nil, badRequest("Document %s: %v", docType, err)
		}
		if uploads == nil {
			uploads = make(map[string][]byte)
		}
		uploads[docType] = content
	}

	return &kase, uploads, nil
}

// IntakeHandler receives an eviction filing, synchronizes it to the store
// and records the attempt in the ledger
func IntakeHandler(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Could not read request body")
	}

	var req intakeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return badRequest("Invalid JSON body")
	}

	cfg := getConfig(c)
	if err := verifyHuman(c, cfg.TurnstileSecretKey, req.TurnstileToken); err != nil {
		return err
	}

	kase, uploads, err := decodeIntake(&req)
	if err != nil {
		return err
	}

	// A client that resends a filing keeps its original submission time,
	// so the stored record stays byte-identical
	if kase.SubmittedAt == nil {
		now := time.Now().UTC()
		kase.SubmittedAt = &now
	} else {
		submitted := kase.SubmittedAt.UTC()
		kase.SubmittedAt = &submitted
	}

	syncer := getSynchronizer(c)
	if syncer == nil {
		c.Logger().Error("[INTAKE] No case synchronizer configured")
		return echo.NewHTTPError(http.StatusInternalServerError, "Case storage is not configured")
	}

	result, syncErr := syncer.Synchronize(c.Request().Context(), kase, uploads)
	auditCtx := middleware.GetAuditContext(c)

	if db.DB != nil {
		if _, err := services.RecordSubmission(db.DB, kase, result, syncErr, auditCtx.IPAddress, auditCtx.UserAgent); err != nil {
			c.Logger().Errorf("[INTAKE] Failed to record case %s in ledger: %v", kase.ID, err)
		}
		services.LogAuditEvent(db.DB, auditCtx, models.AuditActionIntake, kase.ID,
			fmt.Sprintf("Case %s received (synced: %t)", kase.ID, syncErr == nil),
			nil, map[string]interface{}{"status": kase.Status})
	}

	if syncErr != nil {
		c.Logger().Errorf("[INTAKE] Synchronization of case %s failed: %v", kase.ID, syncErr)
		return respond(c, http.StatusInternalServerError, "Failed to store case "+kase.ID, result)
	}

	if cfg.ClerkEmail != "" {
		email, err := services.BuildIntakeNotificationEmail(cfg.ClerkEmail, kase, result)
		if err != nil {
			c.Logger().Errorf("[INTAKE] Failed to build clerk email for %s: %v", kase.ID, err)
		} else {
			services.SendEmailAsync(cfg, email)
		}
	}

	message := fmt.Sprintf("Case %s submitted successfully", kase.ID)
	if failed := result.FailedFiles(); failed > 0 {
		message = fmt.Sprintf("Case %s submitted; %d file(s) could not be stored", kase.ID, failed)
	}
	return respond(c, http.StatusOK, message, result)
}
