package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"eviction_intake_go/models"
)

const (
	// CasesRoot is the store directory holding every case
	CasesRoot = "cases"
	// DefaultIndexPath is the case collection index
	DefaultIndexPath = CasesRoot + "/index.json"

	summaryFilename = "README.md"
	recordFilename  = "case_data.json"
)

// DocumentType is one legal document generated for every case
type DocumentType struct {
	Key      string
	Filename string
	Title    string
}

// DefaultDocumentTypes are the filings required by Houston County
// Magistrate Court for a dispossessory action
var DefaultDocumentTypes = []DocumentType{
	{Key: "demand_notice", Filename: "7-Day_Demand_Notice.pdf", Title: "7-Day Demand for Possession"},
	{Key: "affidavit", Filename: "Dispossessory_Affidavit.pdf", Title: "Dispossessory Affidavit"},
	{Key: "summons", Filename: "Summons.pdf", Title: "Dispossessory Summons"},
	{Key: "scra_form", Filename: "SCRA_Verification.pdf", Title: "SCRA Military Status Verification"},
}

// CasePrefix returns the store directory for a case
func CasePrefix(caseID string) string {
	return CasesRoot + "/" + caseID + "/"
}

// DocumentFilename returns the stored filename for a document type key.
// Unknown keys are stored as <key>.pdf.
func DocumentFilename(types []DocumentType, key string) string {
	for _, t := range types {
		if t.Key == key {
			return t.Filename
		}
	}
	return key + ".pdf"
}

// CaseFile is one file to synchronize for a case. Err is set when the
// content could not be produced; such a file is reported failed and
// never written.
type CaseFile struct {
	Path    string
	Kind    string
	DocType string
	Content []byte
	Message string
	Err     error
}

// BuildCaseFiles computes the deterministic file set for a case: summary,
// record, then one document per configured type in order. Uploaded
// documents replace the generated placeholder for their type; uploads of
// unknown types are appended after the configured documents in key order.
func BuildCaseFiles(ctx context.Context, c *models.Case, types []DocumentType, renderer DocumentRenderer, uploads map[string][]byte) ([]CaseFile, error) {
	prefix := CasePrefix(c.ID)

	summary, err := RenderCaseSummary(c, types)
	if err != nil {
		return nil, fmt.Errorf("rendering case summary: %w", err)
	}
	record, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding case record: %w", err)
	}

	files := []CaseFile{
		{
			Path:    prefix + summaryFilename,
			Kind:    models.FileKindSummary,
			Content: summary,
			Message: fmt.Sprintf("Add case summary for %s", c.ID),
		},
		{
			Path:    prefix + recordFilename,
			Kind:    models.FileKindRecord,
			Content: append(record, '\n'),
			Message: fmt.Sprintf("Add case data for %s", c.ID),
		},
	}

	for _, doc := range types {
		file := CaseFile{
			Path:    prefix + doc.Filename,
			Kind:    models.FileKindDocument,
			DocType: doc.Key,
			Message: fmt.Sprintf("Add %s for case %s", doc.Key, c.ID),
		}
		if content, ok := uploads[doc.Key]; ok {
			file.Content = content
		} else {
			file.Content, file.Err = renderer.Render(ctx, c, doc)
		}
		files = append(files, file)
	}

	for _, key := range sortedKeys(uploads) {
		if isKnownDocument(types, key) {
			continue
		}
		files = append(files, CaseFile{
			Path:    prefix + DocumentFilename(types, key),
			Kind:    models.FileKindDocument,
			DocType: key,
			Content: uploads[key],
			Message: fmt.Sprintf("Add %s for case %s", key, c.ID),
		})
	}

	return files, nil
}

func isKnownDocument(types []DocumentType, key string) bool {
	for _, t := range types {
		if t.Key == key {
			return true
		}
	}
	return false
}

var summaryTemplate = template.Must(template.New("summary").Funcs(template.FuncMap{
	"money":  formatMoney,
	"date":   formatDate,
	"notice": models.NoticeTypeLabel,
	"orNone": orNone,
}).Parse(`# Eviction Case {{ .Case.ID }}

**Status:** {{ .Case.Status }}
{{- if .Case.OfficialCaseNumber }}
**Official case number:** {{ .Case.OfficialCaseNumber }}
{{- end }}
**Filing date:** {{ date .Case.FilingDate }}

## Landlord

- Name: {{ orNone .Case.Landlord.Name }}
- Address: {{ orNone .Case.Landlord.Address }}
- Phone: {{ orNone .Case.Landlord.Phone }}
- Email: {{ orNone .Case.Landlord.Email }}

## Tenant

- Name: {{ orNone .Case.Tenant.Name }}
- Address: {{ orNone .Case.Tenant.Address }}
- Phone: {{ orNone .Case.Tenant.Phone }}
- Email: {{ orNone .Case.Tenant.Email }}

## Property

{{ orNone .Case.Property.Address }}{{ if .Case.Property.City }}, {{ .Case.Property.City }}{{ end }}{{ if .Case.Property.Zip }} {{ .Case.Property.Zip }}{{ end }}

## Financials

- Monthly rent: {{ money .Case.RentAmount }}
- Amount owed: {{ money .Case.AmountOwed }}
{{- if .Case.LeaseType }}
- Lease type: {{ .Case.LeaseType }}
{{- end }}
{{- if .Case.Reason }}
- Reason for filing: {{ .Case.Reason }}
{{- end }}

## Notice

- Delivery: {{ orNone (notice .Case.Notice.Type) }}
- Date served: {{ date .Case.Notice.DateServed }}
- Military status checked: {{ if .Case.MilitaryCheck }}yes{{ else }}no{{ end }}
{{- if .Case.ClerkNotes }}

## Clerk notes

{{ .Case.ClerkNotes }}
{{- end }}

## Documents
{{ range .Documents }}
- [{{ .Title }}]({{ .Filename }})
{{- end }}
- [Case data](case_data.json)
`))

// RenderCaseSummary renders the README.md for a case. The output depends
// only on the case so resubmitting identical data yields identical bytes.
func RenderCaseSummary(c *models.Case, types []DocumentType) ([]byte, error) {
	var buf bytes.Buffer
	err := summaryTemplate.Execute(&buf, struct {
		Case      *models.Case
		Documents []DocumentType
	}{c, types})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "_not provided_"
	}
	return s
}
