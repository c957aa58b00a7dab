package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log"
	"strings"
	"time"

	"eviction_intake_go/models"
)

// DocumentRenderer produces the PDF for one document type of a case
type DocumentRenderer interface {
	Render(ctx context.Context, c *models.Case, doc DocumentType) ([]byte, error)
}

// PlaceholderRenderer writes a one-page PDF naming the document and the
// parties. Output is a pure function of its inputs.
type PlaceholderRenderer struct{}

// Render builds the placeholder PDF
func (PlaceholderRenderer) Render(ctx context.Context, c *models.Case, doc DocumentType) ([]byte, error) {
	lines := []string{
		"HOUSTON COUNTY MAGISTRATE COURT",
		"STATE OF GEORGIA",
		"",
		strings.ToUpper(doc.Title),
		"",
		"Case: " + c.ID,
		"Landlord / Plaintiff: " + c.Landlord.Name,
		"Tenant / Defendant: " + c.Tenant.Name,
		"Premises: " + c.Property.Address,
	}
	if c.FilingDate != nil && !c.FilingDate.IsZero() {
		lines = append(lines, "Filing date: "+c.FilingDate.Format("January 2, 2006"))
	}
	lines = append(lines, "", "PLACEHOLDER - generated at intake, not a filed court document.")
	return placeholderPDF(lines), nil
}

// placeholderPDF assembles a single-page PDF 1.4 file with one line of
// Helvetica text per entry
func placeholderPDF(lines []string) []byte {
	var content bytes.Buffer
	content.WriteString("BT\n/F1 12 Tf\n16 TL\n72 740 Td\n")
	for _, line := range lines {
		fmt.Fprintf(&content, "(%s) '\n", pdfEscape(line))
	}
	content.WriteString("ET\n")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

// pdfEscape escapes a string literal for a PDF content stream. Helvetica
// here only covers ASCII, anything else becomes '?'.
func pdfEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\\' || r == '(' || r == ')':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r < 0x20 || r > 0x7e:
			b.WriteByte('?')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ChromePDFRenderer renders documents from HTML with headless Chrome and
// falls back to another renderer when the browser is unavailable
type ChromePDFRenderer struct {
	Options  PDFOptions
	Timeout  time.Duration
	Fallback DocumentRenderer
}

// NewChromePDFRenderer creates a Chrome renderer with court defaults and a
// placeholder fallback
func NewChromePDFRenderer(chromePath string) *ChromePDFRenderer {
	opts := DefaultPDFOptions()
	opts.ChromePath = chromePath
	return &ChromePDFRenderer{
		Options:  opts,
		Timeout:  30 * time.Second,
		Fallback: PlaceholderRenderer{},
	}
}

var documentTemplate = template.Must(template.New("document").Funcs(template.FuncMap{
	"money":  formatMoney,
	"date":   formatDate,
	"notice": models.NoticeTypeLabel,
}).Parse(`<p class="court">In the Magistrate Court of Houston County<br>State of Georgia</p>
<h1>{{ .Doc.Title }}</h1>
<table>
  <tr><th>Case</th><td>{{ .Case.ID }}</td></tr>
  <tr><th>Landlord / Plaintiff</th><td>{{ .Case.Landlord.Name }}<br>{{ .Case.Landlord.Address }}</td></tr>
  <tr><th>Tenant / Defendant</th><td>{{ .Case.Tenant.Name }}<br>{{ .Case.Tenant.Address }}</td></tr>
  <tr><th>Premises</th><td>{{ .Case.Property.Address }} {{ .Case.Property.City }} {{ .Case.Property.Zip }}</td></tr>
  <tr><th>Monthly rent</th><td>{{ money .Case.RentAmount }}</td></tr>
  <tr><th>Amount owed</th><td>{{ money .Case.AmountOwed }}</td></tr>
  <tr><th>Notice</th><td>{{ notice .Case.Notice.Type }} {{ date .Case.Notice.DateServed }}</td></tr>
  <tr><th>Filing date</th><td>{{ date .Case.FilingDate }}</td></tr>
</table>
<div class="signature-line">Signature</div>
<p class="draft">Generated at intake. Review before filing.</p>
`))

// Render prints the document through Chrome
func (r *ChromePDFRenderer) Render(ctx context.Context, c *models.Case, doc DocumentType) ([]byte, error) {
	var body bytes.Buffer
	if err := documentTemplate.Execute(&body, struct {
		Case *models.Case
		Doc  DocumentType
	}{c, doc}); err != nil {
		return nil, fmt.Errorf("rendering %s template: %w", doc.Key, err)
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	pdf, err := GeneratePDF(ctx, WrapHTMLForPDF(body.String()), r.Options)
	if err != nil {
		if r.Fallback == nil {
			return nil, err
		}
		log.Printf("[WARNING] Chrome rendering of %s for case %s failed, using placeholder: %v", doc.Key, c.ID, err)
		return r.Fallback.Render(ctx, c, doc)
	}
	return pdf, nil
}
