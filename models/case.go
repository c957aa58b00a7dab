package models

import (
	"time"
)

// Case status
const (
	CaseStatusSubmitted  = "submitted"
	CaseStatusProcessing = "processing"
	CaseStatusApproved   = "approved"
	CaseStatusRejected   = "rejected"
	CaseStatusFiled      = "filed"
	CaseStatusProcessed  = "processed"
)

// Notice delivery types accepted by Houston County Magistrate Court
const (
	NoticeTypePosted          = "posted"
	NoticeTypePersonal        = "personal"
	NoticeTypeCertifiedMail   = "certified_mail"
	NoticeTypePostedAndMailed = "posted_and_mailed"
)

// Party is a landlord or tenant on an eviction filing
type Party struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Property is the premises the tenant is being dispossessed from
type Property struct {
	Address string `json:"address"`
	City    string `json:"city,omitempty"`
	Zip     string `json:"zip,omitempty"`
}

// Notice records the demand for possession served before filing
type Notice struct {
	Type       string `json:"type,omitempty"`
	DateServed *Date  `json:"dateServed,omitempty"`
	Details    string `json:"details,omitempty"`
}

// Case is a single eviction filing. It is written once at intake and
// afterwards only Status and the clerk fields change.
type Case struct {
	ID     string `json:"caseId"`
	Status string `json:"status"`

	Landlord Party    `json:"landlord"`
	Tenant   Party    `json:"tenant"`
	Property Property `json:"property"`

	// Lease and financials
	RentAmount float64 `json:"rentAmount,omitempty"`
	AmountOwed float64 `json:"amountOwed,omitempty"`
	LeaseType  string  `json:"leaseType,omitempty"`
	LeaseStart *Date   `json:"leaseStart,omitempty"`
	Reason     string  `json:"reason,omitempty"`

	Notice        Notice `json:"notice,omitempty"`
	MilitaryCheck bool   `json:"militaryCheck,omitempty"`

	// Court
	FilingDate         *Date  `json:"filingDate,omitempty"`
	OfficialCaseNumber string `json:"officialCaseNumber,omitempty"`
	ClerkNotes         string `json:"clerkNotes,omitempty"`

	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// IsValidCaseStatus checks if the status is valid
func IsValidCaseStatus(status string) bool {
	validStatuses := []string{
		CaseStatusSubmitted,
		CaseStatusProcessing,
		CaseStatusApproved,
		CaseStatusRejected,
		CaseStatusFiled,
		CaseStatusProcessed,
	}
	for _, s := range validStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// NoticeTypeLabel returns the human-readable delivery method for a notice type.
// Unknown types are returned unchanged.
func NoticeTypeLabel(noticeType string) string {
	switch noticeType {
	case NoticeTypePosted:
		return "Posted on premises"
	case NoticeTypePersonal:
		return "Personal delivery"
	case NoticeTypeCertifiedMail:
		return "Certified mail"
	case NoticeTypePostedAndMailed:
		return "Posted and mailed"
	}
	return noticeType
}

// CaseStatuses lists every status in dashboard display order
func CaseStatuses() []string {
	return []string{
		CaseStatusSubmitted,
		CaseStatusProcessing,
		CaseStatusApproved,
		CaseStatusRejected,
		CaseStatusFiled,
		CaseStatusProcessed,
	}
}
