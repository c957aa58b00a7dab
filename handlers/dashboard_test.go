package handlers

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"eviction_intake_go/db"
	"eviction_intake_go/models"
	"eviction_intake_go/services"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func submitCase(t *testing.T, s *testServer, caseID, tenant string) {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"caseId": caseID,
		"data": map[string]interface{}{
			"landlord":   map[string]string{"name": "Jane Doe"},
			"tenant":     map[string]string{"name": tenant},
			"property":   map[string]string{"address": "1 Main St"},
			"amountOwed": 500,
		},
	})
	require.NoError(t, err)
	rec := s.do(http.MethodPost, "/api/cases", strings.NewReader(string(body)), nil)
	assertStatus(t, http.StatusOK, rec)
}

func TestDashboardRequiresToken(t *testing.T) {
	s := setupServer(t, nil)

	rec := s.do(http.MethodGet, "/api/dashboard/cases", nil, nil)
	assertStatus(t, http.StatusUnauthorized, rec)
	assert.Equal(t, "Missing bearer token", decodeEnvelope(t, rec).Message)

	rec = s.do(http.MethodGet, "/api/dashboard/cases", nil, map[string]string{"Authorization": "Bearer wrong"})
	assertStatus(t, http.StatusUnauthorized, rec)
}

func TestListCasesHandler(t *testing.T) {
	s := setupServer(t, nil)
	submitCase(t, s, "HC-1", "John Roe")
	submitCase(t, s, "HC-2", "Mary Major")

	rec := s.admin(http.MethodGet, "/api/dashboard/cases", nil)
	assertStatus(t, http.StatusOK, rec)

	var data struct {
		Cases []models.CaseSubmission `json:"cases"`
		Total int64                   `json:"total"`
	}
	decodeData(t, decodeEnvelope(t, rec), &data)
	assert.Equal(t, int64(2), data.Total)
	assert.Len(t, data.Cases, 2)

	rec = s.admin(http.MethodGet, "/api/dashboard/cases?search=Major", nil)
	assertStatus(t, http.StatusOK, rec)
	decodeData(t, decodeEnvelope(t, rec), &data)
	require.Len(t, data.Cases, 1)
	assert.Equal(t, "HC-2", data.Cases[0].CaseID)

	rec = s.admin(http.MethodGet, "/api/dashboard/cases?status=bogus", nil)
	assertStatus(t, http.StatusBadRequest, rec)

	rec = s.admin(http.MethodGet, "/api/dashboard/cases?from=yesterday", nil)
	assertStatus(t, http.StatusBadRequest, rec)
}

func TestGetCaseHandler(t *testing.T) {
	s := setupServer(t, nil)
	submitCase(t, s, "HC-1", "John Roe")

	rec := s.admin(http.MethodGet, "/api/dashboard/cases/HC-1", nil)
	assertStatus(t, http.StatusOK, rec)

	var data struct {
		Case models.CaseSubmission `json:"case"`
	}
	decodeData(t, decodeEnvelope(t, rec), &data)
	assert.Equal(t, "HC-1", data.Case.CaseID)
	assert.Len(t, data.Case.Outcomes, 6)

	rec = s.admin(http.MethodGet, "/api/dashboard/cases/HC-404", nil)
	assertStatus(t, http.StatusNotFound, rec)
	assert.Equal(t, "Case not found", decodeEnvelope(t, rec).Message)
}

func TestUpdateCaseStatusHandler(t *testing.T) {
	s := setupServer(t, nil)
	submitCase(t, s, "HC-1", "John Roe")

	body := `{"status":"approved","officialCaseNumber":"2024-MV-0007","clerkNotes":"Hearing set","filingDate":"2024-02-01"}`
	rec := s.admin(http.MethodPost, "/api/dashboard/cases/HC-1/status", strings.NewReader(body))
	assertStatus(t, http.StatusOK, rec)

	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Case HC-1 is now approved", env.Message)

	var updated models.Case
	decodeData(t, env, &updated)
	assert.Equal(t, models.CaseStatusApproved, updated.Status)
	assert.Equal(t, "2024-MV-0007", updated.OfficialCaseNumber)

	// Store record
	file, err := s.store.Read(t.Context(), "cases/HC-1/case_data.json")
	require.NoError(t, err)
	var stored models.Case
	require.NoError(t, json.Unmarshal(file.Content, &stored))
	assert.Equal(t, models.CaseStatusApproved, stored.Status)
	assert.Equal(t, "Hearing set", stored.ClerkNotes)

	// Ledger mirror
	submission, err := services.GetLatestSubmission(s.db, "HC-1")
	require.NoError(t, err)
	assert.Equal(t, models.CaseStatusApproved, submission.Status)
	assert.Equal(t, "2024-MV-0007", submission.OfficialCaseNumber)

	assert.Eventually(t, func() bool {
		logs, err := services.GetCaseAuditHistory(s.db, "HC-1")
		if err != nil {
			return false
		}
		for _, l := range logs {
			if l.Action == models.AuditActionStatusChange && l.Actor == "clerk" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestUpdateCaseStatusHandlerErrors(t *testing.T) {
	s := setupServer(t, nil)
	submitCase(t, s, "HC-1", "John Roe")

	rec := s.admin(http.MethodPost, "/api/dashboard/cases/HC-1/status", strings.NewReader(`{"status":"archived"}`))
	assertStatus(t, http.StatusBadRequest, rec)

	rec = s.admin(http.MethodPost, "/api/dashboard/cases/HC-1/status", strings.NewReader(`{}`))
	assertStatus(t, http.StatusBadRequest, rec)
	assert.Equal(t, "Status is required", decodeEnvelope(t, rec).Message)

	rec = s.admin(http.MethodPost, "/api/dashboard/cases/HC-404/status", strings.NewReader(`{"status":"filed"}`))
	assertStatus(t, http.StatusNotFound, rec)
}

func TestUpdateCaseStatusHandlerNormalizesStatus(t *testing.T) {
	s := setupServer(t, nil)
	submitCase(t, s, "HC-1", "John Roe")

	rec := s.admin(http.MethodPost, "/api/dashboard/cases/HC-1/status", strings.NewReader(`{"status":"Rejected"}`))
	assertStatus(t, http.StatusOK, rec)
	assert.Equal(t, "Case HC-1 is now rejected", decodeEnvelope(t, rec).Message)

	submission, err := services.GetLatestSubmission(s.db, "HC-1")
	require.NoError(t, err)
	assert.Equal(t, models.CaseStatusRejected, submission.Status)
}

func TestDashboardWithoutLedger(t *testing.T) {
	s := setupServer(t, nil)
	submitCase(t, s, "HC-1", "John Roe")

	db.DB = nil
	t.Cleanup(func() { db.DB = s.db })

	for _, path := range []string{
		"/api/dashboard/cases",
		"/api/dashboard/cases/HC-1",
		"/api/dashboard/stats",
		"/api/dashboard/audit",
		"/api/dashboard/security",
		"/api/dashboard/reports/monthly",
		"/api/dashboard/export/csv",
		"/api/dashboard/export/xlsx",
	} {
		rec := s.admin(http.MethodGet, path, nil)
		assertStatus(t, http.StatusServiceUnavailable, rec)
		assert.Equal(t, "Ledger unavailable", decodeEnvelope(t, rec).Message, path)
	}

	t.Run("store routes keep working", func(t *testing.T) {
		rec := s.admin(http.MethodPost, "/api/dashboard/cases/HC-1/status", strings.NewReader(`{"status":"approved"}`))
		assertStatus(t, http.StatusOK, rec)

		rec = s.admin(http.MethodGet, "/api/dashboard/index", nil)
		assertStatus(t, http.StatusOK, rec)

		rec = s.admin(http.MethodGet, "/api/dashboard/cases/HC-1/documents", nil)
		assertStatus(t, http.StatusOK, rec)
	})
}

func TestStatsHandler(t *testing.T) {
	s := setupServer(t, nil)
	submitCase(t, s, "HC-1", "John Roe")
	submitCase(t, s, "HC-2", "Mary Major")

	rec := s.admin(http.MethodGet, "/api/dashboard/stats", nil)
	assertStatus(t, http.StatusOK, rec)

	var stats services.LedgerStats
	decodeData(t, decodeEnvelope(t, rec), &stats)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(2), stats.Synced)
	assert.Equal(t, int64(2), stats.ByStatus[models.CaseStatusSubmitted])
	assert.InDelta(t, 1000.0, stats.TotalOwed, 0.001)
}

func TestCaseIndexHandler(t *testing.T) {
	s := setupServer(t, nil)
	submitCase(t, s, "HC-1", "John Roe")
	submitCase(t, s, "HC-1", "John Roe")

	rec := s.admin(http.MethodGet, "/api/dashboard/index", nil)
	assertStatus(t, http.StatusOK, rec)

	var data struct {
		Cases    []models.IndexEntry `json:"cases"`
		Revision string              `json:"revision"`
	}
	decodeData(t, decodeEnvelope(t, rec), &data)
	assert.Len(t, data.Cases, 2)
	assert.NotEmpty(t, data.Revision)
}

func TestExportHandlers(t *testing.T) {
	s := setupServer(t, nil)
	submitCase(t, s, "HC-1", "John Roe")

	rec := s.admin(http.MethodGet, "/api/dashboard/export/csv", nil)
	assertStatus(t, http.StatusOK, rec)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "HC-1", records[1][0])

	rec = s.admin(http.MethodGet, "/api/dashboard/export/xlsx", nil)
	assertStatus(t, http.StatusOK, rec)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Cases")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestAuditLogsHandler(t *testing.T) {
	s := setupServer(t, nil)
	require.NoError(t, services.RecordAuditEvent(s.db, services.AuditContext{}, models.AuditActionIntake, "HC-1", "Case received", nil, nil))

	rec := s.admin(http.MethodGet, "/api/dashboard/audit?action=INTAKE", nil)
	assertStatus(t, http.StatusOK, rec)

	var data struct {
		Logs  []models.AuditLog `json:"logs"`
		Total int64             `json:"total"`
	}
	decodeData(t, decodeEnvelope(t, rec), &data)
	assert.GreaterOrEqual(t, data.Total, int64(1))
}

func TestSecurityAlertsHandler(t *testing.T) {
	s := setupServer(t, nil)
	previous := services.Monitor
	services.Monitor = services.NewSecurityMonitor(s.cfg, s.db)
	t.Cleanup(func() { services.Monitor = previous })

	for i := 0; i < 5; i++ {
		rec := s.do(http.MethodGet, "/api/dashboard/cases", nil, map[string]string{
			echo.HeaderAuthorization: "Bearer wrong",
			echo.HeaderXRealIP:       "203.0.113.9",
		})
		assertStatus(t, http.StatusUnauthorized, rec)
	}

	rec := s.admin(http.MethodGet, "/api/dashboard/security", nil)
	assertStatus(t, http.StatusOK, rec)

	var data struct {
		Alerts []services.SecurityAlert `json:"alerts"`
	}
	decodeData(t, decodeEnvelope(t, rec), &data)
	require.Len(t, data.Alerts, 1)
	assert.Equal(t, "203.0.113.9", data.Alerts[0].IP)
	assert.Equal(t, "Repeated invalid dashboard token", data.Alerts[0].Reason)
}
