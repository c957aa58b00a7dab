package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"eviction_intake_go/db"
	"eviction_intake_go/middleware"
	"eviction_intake_go/models"
	"eviction_intake_go/services"

	"github.com/labstack/echo/v4"
)

type exportFunc func([]models.CaseSubmission) (*bytes.Buffer, error)

func exportSubmissions(c echo.Context, format, contentType string, export exportFunc) error {
	if err := requireLedger(); err != nil {
		return err
	}
	filters, err := submissionFilters(c)
	if err != nil {
		return err
	}

	submissions, err := services.FindSubmissions(db.DB, filters)
	if err != nil {
		c.Logger().Errorf("Failed to load submissions for export: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to export cases")
	}

	buf, err := export(submissions)
	if err != nil {
		c.Logger().Errorf("Failed to build %s export: %v", format, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to export cases")
	}

	services.LogAuditEvent(db.DB, middleware.GetAuditContext(c), models.AuditActionExport, "*",
		fmt.Sprintf("Exported %d case(s) as %s", len(submissions), format), nil, nil)

	filename := fmt.Sprintf("eviction_cases_%s.%s", time.Now().Format("20060102_150405"), format)
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s", filename))
	return c.Blob(http.StatusOK, contentType, buf.Bytes())
}

// ExportXLSXHandler downloads the ledger as a spreadsheet
func ExportXLSXHandler(c echo.Context) error {
	return exportSubmissions(c, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", services.ExportSubmissionsExcel)
}

// ExportCSVHandler downloads the ledger as CSV
func ExportCSVHandler(c echo.Context) error {
	return exportSubmissions(c, "csv", "text/csv", services.ExportSubmissionsCSV)
}
