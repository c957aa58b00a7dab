package handlers

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"eviction_intake_go/models"
	"eviction_intake_go/services"
	"eviction_intake_go/services/contentstore/storetest"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitWithUpload(t *testing.T, s *testServer, caseID string) {
	t.Helper()
	body := fmt.Sprintf(`{"caseId":%q,"formData":{"tenant":{"name":"John Roe"}},"documents":{"lease_copy":%q}}`,
		caseID, base64.StdEncoding.EncodeToString([]byte("%PDF-1.7 lease")))
	rec := s.do(http.MethodPost, "/api/cases", strings.NewReader(body), nil)
	assertStatus(t, http.StatusOK, rec)
}

func TestListCaseDocumentsHandler(t *testing.T) {
	s := setupServer(t, nil)
	submitWithUpload(t, s, "HC-1")

	rec := s.admin(http.MethodGet, "/api/dashboard/cases/HC-1/documents", nil)
	assertStatus(t, http.StatusOK, rec)

	env := decodeEnvelope(t, rec)
	assert.Equal(t, "7 document(s)", env.Message)

	var data struct {
		CaseID    string                  `json:"case_id"`
		Documents []services.CaseDocument `json:"documents"`
	}
	decodeData(t, env, &data)
	assert.Equal(t, "HC-1", data.CaseID)
	require.Len(t, data.Documents, 7)
	assert.Equal(t, "README.md", data.Documents[0].Filename)
	assert.Equal(t, "lease_copy.pdf", data.Documents[6].Filename)
	assert.Equal(t, "application/pdf", data.Documents[6].ContentType)

	rec = s.admin(http.MethodGet, "/api/dashboard/cases/HC-404/documents", nil)
	assertStatus(t, http.StatusNotFound, rec)
	assert.Equal(t, "Case not found", decodeEnvelope(t, rec).Message)

	s.store.FailNext(storetest.OpExists, "cases/HC-1/README.md", 1, storetest.Transient(storetest.OpExists, "cases/HC-1/README.md"))
	rec = s.admin(http.MethodGet, "/api/dashboard/cases/HC-1/documents", nil)
	assertStatus(t, http.StatusBadGateway, rec)
}

func TestDownloadCaseDocumentHandler(t *testing.T) {
	s := setupServer(t, nil)
	submitWithUpload(t, s, "HC-1")

	rec := s.admin(http.MethodGet, "/api/dashboard/cases/HC-1/documents/lease_copy.pdf", nil)
	assertStatus(t, http.StatusOK, rec)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="lease_copy.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.7 lease", rec.Body.String())

	rec = s.admin(http.MethodGet, "/api/dashboard/cases/HC-1/documents/README.md", nil)
	assertStatus(t, http.StatusOK, rec)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/markdown"))
	assert.Contains(t, rec.Body.String(), "HC-1")

	for _, name := range []string{"index.json", "..%2Findex.json", "missing.pdf"} {
		rec = s.admin(http.MethodGet, "/api/dashboard/cases/HC-1/documents/"+name, nil)
		assertStatus(t, http.StatusNotFound, rec)
		assert.Equal(t, "Document not found", decodeEnvelope(t, rec).Message, name)
	}

	assert.Eventually(t, func() bool {
		logs, err := services.GetCaseAuditHistory(s.db, "HC-1")
		if err != nil {
			return false
		}
		for _, l := range logs {
			if l.Action == models.AuditActionDownload && l.Description == "Downloaded lease_copy.pdf" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestDownloadAllHandler(t *testing.T) {
	s := setupServer(t, nil)
	submitWithUpload(t, s, "HC-1")

	rec := s.admin(http.MethodGet, "/api/dashboard/cases/HC-1/download-all", nil)
	assertStatus(t, http.StatusOK, rec)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=HC-1_documents.zip", rec.Header().Get("Content-Disposition"))

	archive, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)

	contents := map[string]string{}
	for _, f := range archive.File {
		r, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(r)
		r.Close()
		require.NoError(t, err)
		contents[f.Name] = string(b)
	}
	assert.Len(t, contents, 7)
	assert.Equal(t, "%PDF-1.7 lease", contents["lease_copy.pdf"])
	assert.Contains(t, contents["case_data.json"], `"caseId": "HC-1"`)

	rec = s.admin(http.MethodGet, "/api/dashboard/cases/HC-404/download-all", nil)
	assertStatus(t, http.StatusNotFound, rec)
}

func TestMonthlyReportHandler(t *testing.T) {
	s := setupServer(t, nil)
	submitCase(t, s, "HC-1", "John Roe")
	submitCase(t, s, "HC-2", "Mary Major")

	rec := s.admin(http.MethodPost, "/api/dashboard/cases/HC-2/status", strings.NewReader(`{"status":"filed"}`))
	assertStatus(t, http.StatusOK, rec)

	rec = s.admin(http.MethodGet, "/api/dashboard/reports/monthly", nil)
	assertStatus(t, http.StatusOK, rec)

	var data struct {
		MonthlyReport []services.MonthlyReport `json:"monthly_report"`
	}
	decodeData(t, decodeEnvelope(t, rec), &data)
	require.Len(t, data.MonthlyReport, 1)

	month := data.MonthlyReport[0]
	assert.Equal(t, time.Now().UTC().Format("2006-01"), month.Month)
	assert.Equal(t, int64(2), month.Total)
	assert.Equal(t, int64(1), month.Filed)
	assert.Equal(t, int64(1), month.Pending)
	assert.InDelta(t, 1000.0, month.TotalAmount, 0.001)
}
