package services

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"eviction_intake_go/models"

	"github.com/microcosm-cc/bluemonday"
)

// caseIDPattern keeps case ids safe as a single path segment
var caseIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidationError is a client input problem, reported as 400
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateCaseID checks that id is present and usable as a store path segment
func ValidateCaseID(id string) error {
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Field: "caseId", Message: "Missing case ID"}
	}
	if !caseIDPattern.MatchString(id) || strings.Contains(id, "..") {
		return &ValidationError{Field: "caseId", Message: "Case ID may only contain letters, digits, '.', '_' and '-'"}
	}
	return nil
}

// textPolicy strips all markup from free-text fields
var textPolicy = bluemonday.StrictPolicy()

// sanitizeText removes markup and surrounding space. bluemonday escapes
// what it keeps, so entities are decoded back for plain-text storage.
func sanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

// NormalizeCase sanitizes free text, defaults the status and validates
// the fields the court needs. It mutates c.
func NormalizeCase(c *models.Case) error {
	if err := ValidateCaseID(c.ID); err != nil {
		return err
	}

	for _, p := range []*string{
		&c.Landlord.Name, &c.Landlord.Address, &c.Landlord.Phone, &c.Landlord.Email,
		&c.Tenant.Name, &c.Tenant.Address, &c.Tenant.Phone, &c.Tenant.Email,
		&c.Property.Address, &c.Property.City, &c.Property.Zip,
		&c.LeaseType, &c.Reason, &c.Notice.Type, &c.Notice.Details,
		&c.OfficialCaseNumber, &c.ClerkNotes,
	} {
		*p = sanitizeText(*p)
	}

	c.Status = strings.ToLower(strings.TrimSpace(c.Status))
	if c.Status == "" {
		c.Status = models.CaseStatusSubmitted
	}
	if !models.IsValidCaseStatus(c.Status) {
		return &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", c.Status)}
	}

	if c.RentAmount < 0 {
		return &ValidationError{Field: "rentAmount", Message: "must not be negative"}
	}
	if c.AmountOwed < 0 {
		return &ValidationError{Field: "amountOwed", Message: "must not be negative"}
	}
	return nil
}
