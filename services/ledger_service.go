package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"eviction_intake_go/models"

	"gorm.io/gorm"
)

// ErrSubmissionNotFound is returned when the ledger has no row for a case
var ErrSubmissionNotFound = errors.New("case not found in ledger")

// RecordSubmission stores one intake attempt and its per-file outcomes.
// result may be nil when synchronization failed before any file was built.
func RecordSubmission(db *gorm.DB, c *models.Case, result *SyncResult, syncErr error, ipAddress, userAgent string) (*models.CaseSubmission, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding case payload: %w", err)
	}

	submission := &models.CaseSubmission{
		CaseID:             c.ID,
		Status:             c.Status,
		LandlordName:       c.Landlord.Name,
		TenantName:         c.Tenant.Name,
		PropertyAddress:    c.Property.Address,
		PropertyCity:       c.Property.City,
		AmountOwed:         c.AmountOwed,
		OfficialCaseNumber: c.OfficialCaseNumber,
		ClerkNotes:         c.ClerkNotes,
		Payload:            string(payload),
		Synced:             syncErr == nil,
		IPAddress:          ipAddress,
		UserAgent:          userAgent,
	}
	if c.FilingDate != nil && !c.FilingDate.IsZero() {
		filing := c.FilingDate.Time
		submission.FilingDate = &filing
	}
	if syncErr != nil {
		submission.SyncError = syncErr.Error()
	}
	if result != nil {
		submission.Location = result.Location
		submission.IndexAttempts = result.IndexAttempts
		for _, f := range result.Files {
			submission.Outcomes = append(submission.Outcomes, models.SyncOutcome{
				Path:     f.Path,
				Kind:     f.Kind,
				Success:  f.Success,
				Created:  f.Created,
				Revision: f.Revision,
				Error:    f.Error,
			})
		}
	}

	if err := db.Create(submission).Error; err != nil {
		return nil, fmt.Errorf("failed to record submission: %w", err)
	}
	return submission, nil
}

// SubmissionFilters contains filter options for ledger queries
type SubmissionFilters struct {
	Status      string
	SearchQuery string
	SyncedOnly  bool
	DateFrom    time.Time
	DateTo      time.Time
}

func applySubmissionFilters(query *gorm.DB, filters SubmissionFilters) *gorm.DB {
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.SyncedOnly {
		query = query.Where("synced = ?", true)
	}
	if !filters.DateFrom.IsZero() {
		query = query.Where("created_at >= ?", filters.DateFrom)
	}
	if !filters.DateTo.IsZero() {
		query = query.Where("created_at <= ?", filters.DateTo)
	}
	if filters.SearchQuery != "" {
		searchPattern := "%" + filters.SearchQuery + "%"
		query = query.Where(
			"case_id LIKE ? OR landlord_name LIKE ? OR tenant_name LIKE ? OR property_address LIKE ?",
			searchPattern, searchPattern, searchPattern, searchPattern,
		)
	}
	return query
}

// ListSubmissions retrieves paginated ledger rows, newest first
func ListSubmissions(db *gorm.DB, filters SubmissionFilters, page, pageSize int) ([]models.CaseSubmission, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	query := applySubmissionFilters(db.Model(&models.CaseSubmission{}), filters)

	// Count total
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Get paginated results
	var submissions []models.CaseSubmission
	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&submissions).Error

	return submissions, total, err
}

// FindSubmissions returns every ledger row matching filters, newest first.
// Used by exports.
func FindSubmissions(db *gorm.DB, filters SubmissionFilters) ([]models.CaseSubmission, error) {
	var submissions []models.CaseSubmission
	err := applySubmissionFilters(db.Model(&models.CaseSubmission{}), filters).
		Order("created_at DESC").
		Find(&submissions).Error
	return submissions, err
}

// GetLatestSubmission returns the newest ledger row for a case with its outcomes
func GetLatestSubmission(db *gorm.DB, caseID string) (*models.CaseSubmission, error) {
	var submission models.CaseSubmission
	err := db.Preload("Outcomes").
		Where("case_id = ?", caseID).
		Order("created_at DESC").
		First(&submission).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

// ApplyStatusUpdate mirrors a status change onto every ledger row of a case
func ApplyStatusUpdate(db *gorm.DB, c *models.Case) error {
	updates := map[string]interface{}{
		"status":               c.Status,
		"official_case_number": c.OfficialCaseNumber,
		"clerk_notes":          c.ClerkNotes,
	}
	if c.FilingDate != nil && !c.FilingDate.IsZero() {
		updates["filing_date"] = c.FilingDate.Time
	}

	res := db.Model(&models.CaseSubmission{}).Where("case_id = ?", c.ID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update ledger status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

// LedgerStats summarizes the ledger for the dashboard
type LedgerStats struct {
	Total        int64            `json:"total"`
	Synced       int64            `json:"synced"`
	Failed       int64            `json:"failed"`
	ByStatus     map[string]int64 `json:"by_status"`
	TotalOwed    float64          `json:"total_owed"`
	LastReceived *time.Time       `json:"last_received,omitempty"`
}

// GetLedgerStats counts submissions overall and per status
func GetLedgerStats(db *gorm.DB) (*LedgerStats, error) {
	stats := &LedgerStats{ByStatus: make(map[string]int64)}
	for _, status := range models.CaseStatuses() {
		stats.ByStatus[status] = 0
	}

	var rows []struct {
		Status string
		Count  int64
		Owed   float64
	}
	err := db.Model(&models.CaseSubmission{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount_owed), 0) AS owed").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count submissions: %w", err)
	}
	for _, r := range rows {
		stats.ByStatus[r.Status] = r.Count
		stats.Total += r.Count
		stats.TotalOwed += r.Owed
	}

	if err := db.Model(&models.CaseSubmission{}).Where("synced = ?", true).Count(&stats.Synced).Error; err != nil {
		return nil, fmt.Errorf("failed to count synced submissions: %w", err)
	}
	stats.Failed = stats.Total - stats.Synced

	var latest models.CaseSubmission
	err = db.Order("created_at DESC").First(&latest).Error
	if err == nil {
		stats.LastReceived = &latest.CreatedAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return stats, nil
}

// MonthlyReport is one calendar month of submissions
type MonthlyReport struct {
	Month       string  `json:"month"`
	Total       int64   `json:"total"`
	Filed       int64   `json:"filed"`
	Rejected    int64   `json:"rejected"`
	Pending     int64   `json:"pending"`
	TotalAmount float64 `json:"total_amount"`
}

// GetMonthlyReport groups submissions by the UTC month they were received,
// newest month first. Submitted, processing and approved cases count as pending.
func GetMonthlyReport(db *gorm.DB) ([]MonthlyReport, error) {
	report := []MonthlyReport{}
	err := db.Model(&models.CaseSubmission{}).
		Select(`strftime('%Y-%m', created_at) AS month,
			COUNT(*) AS total,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS filed,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS rejected,
			SUM(CASE WHEN status IN (?, ?, ?) THEN 1 ELSE 0 END) AS pending,
			COALESCE(SUM(amount_owed), 0) AS total_amount`,
			models.CaseStatusFiled,
			models.CaseStatusRejected,
			models.CaseStatusSubmitted, models.CaseStatusProcessing, models.CaseStatusApproved,
		).
		Group("month").
		Order("month DESC").
		Scan(&report).Error
	if err != nil {
		return nil, fmt.Errorf("failed to build monthly report: %w", err)
	}
	return report, nil
}
