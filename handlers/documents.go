package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"eviction_intake_go/db"
	"eviction_intake_go/middleware"
	"eviction_intake_go/models"
	"eviction_intake_go/services"
	"eviction_intake_go/services/contentstore"

	"github.com/labstack/echo/v4"
)

// caseFilenames lists the files a case may hold, adding uploads of other
// types recorded in its latest ledger row
func caseFilenames(syncer *services.CaseSynchronizer, caseID string) []string {
	var extra []string
	if db.DB != nil {
		if submission, err := services.GetLatestSubmission(db.DB, caseID); err == nil {
			prefix := services.CasePrefix(caseID)
			for _, outcome := range submission.Outcomes {
				if strings.HasPrefix(outcome.Path, prefix) {
					extra = append(extra, strings.TrimPrefix(outcome.Path, prefix))
				}
			}
		}
	}
	return syncer.CaseFilenames(extra...)
}

// documentError maps document lookup failures to HTTP errors
func documentError(c echo.Context, caseID string, err error, notFound string) error {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, verr.Error())
	case errors.Is(err, services.ErrUnknownDocument), contentstore.IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, notFound)
	}
	c.Logger().Errorf("Failed to read files of case %s: %v", caseID, err)
	return echo.NewHTTPError(http.StatusBadGateway, "Failed to read case files")
}

func logDownload(c echo.Context, caseID, description string) {
	if db.DB == nil {
		return
	}
	services.LogAuditEvent(db.DB, middleware.GetAuditContext(c), models.AuditActionDownload, caseID, description, nil, nil)
}

// ListCaseDocumentsHandler lists the files stored for a case
func ListCaseDocumentsHandler(c echo.Context) error {
	syncer := getSynchronizer(c)
	if syncer == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Case storage is not configured")
	}

	caseID := c.Param("id")
	docs, err := syncer.ListDocuments(c.Request().Context(), caseID, caseFilenames(syncer, caseID))
	if err != nil {
		return documentError(c, caseID, err, "Case not found")
	}

	return respond(c, http.StatusOK, fmt.Sprintf("%d document(s)", len(docs)), map[string]interface{}{
		"case_id":   caseID,
		"documents": docs,
	})
}

// DownloadCaseDocumentHandler serves one stored file of a case
func DownloadCaseDocumentHandler(c echo.Context) error {
	syncer := getSynchronizer(c)
	if syncer == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Case storage is not configured")
	}

	caseID := c.Param("id")
	filename := c.Param("filename")
	file, err := syncer.ReadDocument(c.Request().Context(), caseID, filename, caseFilenames(syncer, caseID))
	if err != nil {
		return documentError(c, caseID, err, "Document not found")
	}

	logDownload(c, caseID, "Downloaded "+filename)

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, services.DocumentContentType(filename), file.Content)
}

// DownloadAllHandler serves every stored file of a case as a zip archive
func DownloadAllHandler(c echo.Context) error {
	syncer := getSynchronizer(c)
	if syncer == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Case storage is not configured")
	}

	caseID := c.Param("id")
	buf := new(bytes.Buffer)
	n, err := syncer.ArchiveDocuments(c.Request().Context(), caseID, caseFilenames(syncer, caseID), buf)
	if err != nil {
		return documentError(c, caseID, err, "Case not found")
	}

	logDownload(c, caseID, fmt.Sprintf("Downloaded %d file(s) as zip", n))

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s_documents.zip", caseID))
	return c.Blob(http.StatusOK, "application/zip", buf.Bytes())
}
