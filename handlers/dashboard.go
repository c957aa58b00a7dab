package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"eviction_intake_go/db"
	"eviction_intake_go/middleware"
	"eviction_intake_go/models"
	"eviction_intake_go/services"
	"eviction_intake_go/services/contentstore"

	"github.com/labstack/echo/v4"
)

// submissionFilters reads the shared ledger query parameters
func submissionFilters(c echo.Context) (services.SubmissionFilters, error) {
	filters := services.SubmissionFilters{
		Status:      c.QueryParam("status"),
		SearchQuery: c.QueryParam("search"),
		SyncedOnly:  c.QueryParam("synced") == "true",
	}
	if filters.Status != "" && !models.IsValidCaseStatus(filters.Status) {
		return filters, echo.NewHTTPError(http.StatusBadRequest, "Unknown status filter")
	}
	if from := c.QueryParam("from"); from != "" {
		t, err := services.ParseDate(from)
		if err != nil {
			return filters, echo.NewHTTPError(http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)")
		}
		filters.DateFrom = t
	}
	if to := c.QueryParam("to"); to != "" {
		t, err := services.ParseDate(to)
		if err != nil {
			return filters, echo.NewHTTPError(http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)")
		}
		// Inclusive of the whole day
		filters.DateTo = t.Add(24*time.Hour - time.Nanosecond)
	}
	return filters, nil
}

// requireLedger answers 503 when the server runs without a database
func requireLedger() error {
	if db.DB == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Ledger unavailable")
	}
	return nil
}

func pageParams(c echo.Context) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))
	return page, pageSize
}

// ListCasesHandler lists ledger rows with status and search filters
func ListCasesHandler(c echo.Context) error {
	if err := requireLedger(); err != nil {
		return err
	}
	filters, err := submissionFilters(c)
	if err != nil {
		return err
	}
	page, pageSize := pageParams(c)

	submissions, total, err := services.ListSubmissions(db.DB, filters, page, pageSize)
	if err != nil {
		c.Logger().Errorf("Failed to list submissions: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch cases")
	}

	return respond(c, http.StatusOK, fmt.Sprintf("%d case(s)", total), map[string]interface{}{
		"cases": submissions,
		"total": total,
		"page":  max(page, 1),
	})
}

// GetCaseHandler returns the latest ledger row of a case with its file
// outcomes and audit history
func GetCaseHandler(c echo.Context) error {
	if err := requireLedger(); err != nil {
		return err
	}
	caseID := c.Param("id")
	submission, err := services.GetLatestSubmission(db.DB, caseID)
	if errors.Is(err, services.ErrSubmissionNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Case not found")
	}
	if err != nil {
		c.Logger().Errorf("Failed to fetch case %s: %v", caseID, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch case")
	}

	history, err := services.GetCaseAuditHistory(db.DB, caseID)
	if err != nil {
		c.Logger().Errorf("Failed to fetch audit history for %s: %v", caseID, err)
		history = nil
	}

	return respond(c, http.StatusOK, "Case "+caseID, map[string]interface{}{
		"case":    submission,
		"history": history,
	})
}

// statusUpdateRequest is the clerk's status change body
type statusUpdateRequest struct {
	Status             string       `json:"status"`
	OfficialCaseNumber string       `json:"officialCaseNumber"`
	ClerkNotes         string       `json:"clerkNotes"`
	FilingDate         *models.Date `json:"filingDate"`
}

// UpdateCaseStatusHandler changes a case's status in the store and mirrors
// it into the ledger
func UpdateCaseStatusHandler(c echo.Context) error {
	caseID := c.Param("id")

	var req statusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.Status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Status is required")
	}

	syncer := getSynchronizer(c)
	if syncer == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Case storage is not configured")
	}

	oldStatus := ""
	if db.DB != nil {
		if previous, err := services.GetLatestSubmission(db.DB, caseID); err == nil {
			oldStatus = previous.Status
		}
	}

	updated, err := syncer.UpdateStatus(c.Request().Context(), caseID, services.StatusUpdate{
		Status:             req.Status,
		OfficialCaseNumber: req.OfficialCaseNumber,
		ClerkNotes:         req.ClerkNotes,
		FilingDate:         req.FilingDate,
	})
	if err != nil {
		var verr *services.ValidationError
		switch {
		case errors.As(err, &verr):
			return echo.NewHTTPError(http.StatusBadRequest, verr.Error())
		case contentstore.IsNotFound(err):
			return echo.NewHTTPError(http.StatusNotFound, "Case not found in store")
		}
		c.Logger().Errorf("Failed to update status of %s: %v", caseID, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update case status")
	}

	// The store holds the record, so the ledger mirror is best effort
	if db.DB != nil {
		if err := services.ApplyStatusUpdate(db.DB, updated); err != nil {
			c.Logger().Warnf("[WARNING] Status of %s updated in store but not in ledger: %v", caseID, err)
		}

		services.LogAuditEvent(db.DB, middleware.GetAuditContext(c), models.AuditActionStatusChange, caseID,
			fmt.Sprintf("Status changed to %s", updated.Status),
			map[string]interface{}{"status": oldStatus},
			map[string]interface{}{
				"status":               updated.Status,
				"official_case_number": updated.OfficialCaseNumber,
			})
	}

	return respond(c, http.StatusOK, fmt.Sprintf("Case %s is now %s", caseID, updated.Status), updated)
}

// StatsHandler returns ledger counts by status
func StatsHandler(c echo.Context) error {
	if err := requireLedger(); err != nil {
		return err
	}
	stats, err := services.GetLedgerStats(db.DB)
	if err != nil {
		c.Logger().Errorf("Failed to compute stats: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to compute statistics")
	}
	return respond(c, http.StatusOK, "Ledger statistics", stats)
}

// MonthlyReportHandler returns submission totals per month
func MonthlyReportHandler(c echo.Context) error {
	if err := requireLedger(); err != nil {
		return err
	}
	report, err := services.GetMonthlyReport(db.DB)
	if err != nil {
		c.Logger().Errorf("Failed to build monthly report: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to build monthly report")
	}
	return respond(c, http.StatusOK, fmt.Sprintf("%d month(s)", len(report)), map[string]interface{}{
		"monthly_report": report,
	})
}

// CaseIndexHandler returns the case collection index from the store
func CaseIndexHandler(c echo.Context) error {
	syncer := getSynchronizer(c)
	if syncer == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Case storage is not configured")
	}

	index, revision, err := syncer.ReadIndex(c.Request().Context())
	if err != nil {
		c.Logger().Errorf("Failed to read case index: %v", err)
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to read case index")
	}

	return respond(c, http.StatusOK, fmt.Sprintf("%d index entries", len(index.Cases)), map[string]interface{}{
		"cases":    index.Cases,
		"revision": revision,
	})
}

// AuditLogsHandler lists audit entries, optionally filtered by action
func AuditLogsHandler(c echo.Context) error {
	if err := requireLedger(); err != nil {
		return err
	}
	page, pageSize := pageParams(c)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	logs, total, err := services.GetAuditLogs(db.DB, services.AuditLogFilters{
		Action: c.QueryParam("action"),
	}, page, pageSize)
	if err != nil {
		c.Logger().Errorf("Failed to fetch audit logs: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch audit logs")
	}

	return respond(c, http.StatusOK, fmt.Sprintf("%d audit entries", total), map[string]interface{}{
		"logs":  logs,
		"total": total,
		"page":  page,
	})
}

// SecurityAlertsHandler returns alerts raised for repeated credential
// failures together with the matching audit entries
func SecurityAlertsHandler(c echo.Context) error {
	if err := requireLedger(); err != nil {
		return err
	}
	alerts := services.Monitor.GetRecentAlerts()

	logs, _, err := services.GetAuditLogs(db.DB, services.AuditLogFilters{
		Action: string(models.AuditActionSecurity),
	}, 1, 20)
	if err != nil {
		c.Logger().Errorf("Failed to fetch security logs: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch security logs")
	}

	return respond(c, http.StatusOK, fmt.Sprintf("%d active alert(s)", len(alerts)), map[string]interface{}{
		"alerts": alerts,
		"logs":   logs,
	})
}
