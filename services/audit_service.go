package services

import (
	"encoding/json"
	"log"
	"time"

	"eviction_intake_go/models"

	"gorm.io/gorm"
)

// AuditContext contains contextual information for audit logging
type AuditContext struct {
	Actor     string
	IPAddress string
	UserAgent string
}

// buildAuditLog encodes the change values of an audit entry
func buildAuditLog(ctx AuditContext, action models.AuditAction, caseID, description string, oldValues, newValues interface{}) models.AuditLog {
	var oldJSON, newJSON string

	if oldValues != nil {
		if bytes, err := json.Marshal(oldValues); err == nil {
			oldJSON = string(bytes)
		}
	}

	if newValues != nil {
		if bytes, err := json.Marshal(newValues); err == nil {
			newJSON = string(bytes)
		}
	}

	actor := ctx.Actor
	if actor == "" {
		actor = "anonymous"
	}

	return models.AuditLog{
		Actor:       actor,
		CaseID:      caseID,
		Action:      action,
		Description: description,
		OldValues:   oldJSON,
		NewValues:   newJSON,
		IPAddress:   ctx.IPAddress,
		UserAgent:   ctx.UserAgent,
	}
}

// RecordAuditEvent writes an audit entry and returns any database error
func RecordAuditEvent(db *gorm.DB, ctx AuditContext, action models.AuditAction, caseID, description string, oldValues, newValues interface{}) error {
	auditLog := buildAuditLog(ctx, action, caseID, description, oldValues, newValues)
	return db.Create(&auditLog).Error
}

// LogAuditEvent creates a new audit log entry asynchronously
func LogAuditEvent(db *gorm.DB, ctx AuditContext, action models.AuditAction, caseID, description string, oldValues, newValues interface{}) {
	// Run in goroutine to avoid blocking the request
	go func() {
		if err := RecordAuditEvent(db, ctx, action, caseID, description, oldValues, newValues); err != nil {
			log.Printf("[AUDIT] Failed to create audit log: %v", err)
		}
	}()
}

// GetCaseAuditHistory retrieves the audit history for a case, newest first
func GetCaseAuditHistory(db *gorm.DB, caseID string) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := db.Where("case_id = ?", caseID).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, err
}

// AuditLogFilters contains filter options for audit log queries
type AuditLogFilters struct {
	Action   string
	DateFrom time.Time
	DateTo   time.Time
}

// GetAuditLogs retrieves paginated audit logs
func GetAuditLogs(db *gorm.DB, filters AuditLogFilters, page, pageSize int) ([]models.AuditLog, int64, error) {
	query := db.Model(&models.AuditLog{})

	if filters.Action != "" {
		query = query.Where("action = ?", filters.Action)
	}
	if !filters.DateFrom.IsZero() {
		query = query.Where("created_at >= ?", filters.DateFrom)
	}
	if !filters.DateTo.IsZero() {
		query = query.Where("created_at <= ?", filters.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.AuditLog
	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&logs).Error

	return logs, total, err
}
