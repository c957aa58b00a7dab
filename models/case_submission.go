package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Outcome kinds for synchronized files
const (
	FileKindSummary  = "summary"
	FileKindRecord   = "record"
	FileKindDocument = "document"
	FileKindIndex    = "index"
)

// CaseSubmission is the local ledger row for one intake attempt.
// The remote store stays authoritative; the ledger backs the clerk dashboard.
type CaseSubmission struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CaseID string `gorm:"not null;index" json:"case_id"`
	Status string `gorm:"not null;default:submitted;index" json:"status"`

	// Denormalized for listing and search
	LandlordName    string  `json:"landlord_name"`
	TenantName      string  `json:"tenant_name"`
	PropertyAddress string  `json:"property_address"`
	PropertyCity    string  `json:"property_city,omitempty"`
	AmountOwed      float64 `json:"amount_owed"`

	OfficialCaseNumber string     `json:"official_case_number,omitempty"`
	FilingDate         *time.Time `json:"filing_date,omitempty"`
	ClerkNotes         string     `gorm:"type:text" json:"clerk_notes,omitempty"`

	// Full case record as submitted (JSON)
	Payload string `gorm:"type:text" json:"-"`

	// Synchronization result
	Synced        bool   `gorm:"index" json:"synced"`
	Location      string `json:"location,omitempty"`
	IndexAttempts int    `json:"index_attempts"`
	SyncError     string `gorm:"type:text" json:"sync_error,omitempty"`

	// Audit fields
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `gorm:"type:text" json:"user_agent,omitempty"`

	Outcomes []SyncOutcome `gorm:"foreignKey:SubmissionID" json:"outcomes,omitempty"`
}

// BeforeCreate hook to generate UUID
func (s *CaseSubmission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for CaseSubmission model
func (CaseSubmission) TableName() string {
	return "case_submissions"
}

// SyncOutcome is the per-file result of one synchronization
type SyncOutcome struct {
	ID           string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	SubmissionID string    `gorm:"type:uuid;not null;index" json:"submission_id"`

	Path     string `gorm:"not null" json:"path"`
	Kind     string `gorm:"not null" json:"kind"`
	Success  bool   `json:"success"`
	Created  bool   `json:"created"`
	Revision string `json:"revision,omitempty"`
	Error    string `gorm:"type:text" json:"error,omitempty"`
}

// BeforeCreate hook to generate UUID
func (o *SyncOutcome) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for SyncOutcome model
func (SyncOutcome) TableName() string {
	return "sync_outcomes"
}
