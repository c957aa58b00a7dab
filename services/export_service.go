package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"eviction_intake_go/models"

	"github.com/xuri/excelize/v2"
)

var exportHeaders = []string{
	"Case ID",
	"Status",
	"Landlord",
	"Tenant",
	"Property",
	"City",
	"Amount Owed",
	"Official Case Number",
	"Filing Date",
	"Received",
	"Synced",
	"Location",
	"Sync Error",
}

func exportRow(s models.CaseSubmission) []string {
	filing := ""
	if s.FilingDate != nil {
		filing = s.FilingDate.Format("2006-01-02")
	}
	return []string{
		s.CaseID,
		s.Status,
		s.LandlordName,
		s.TenantName,
		s.PropertyAddress,
		s.PropertyCity,
		strconv.FormatFloat(s.AmountOwed, 'f', 2, 64),
		s.OfficialCaseNumber,
		filing,
		s.CreatedAt.UTC().Format(time.RFC3339),
		strconv.FormatBool(s.Synced),
		s.Location,
		s.SyncError,
	}
}

// ExportSubmissionsCSV writes ledger rows as CSV with a header line
func ExportSubmissionsCSV(submissions []models.CaseSubmission) (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)

	if err := w.Write(exportHeaders); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, s := range submissions {
		if err := w.Write(exportRow(s)); err != nil {
			return nil, fmt.Errorf("failed to write csv row for %s: %w", s.CaseID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf, nil
}

// ExportSubmissionsExcel builds a workbook with a Cases sheet and a
// Summary sheet of counts per status
func ExportSubmissionsExcel(submissions []models.CaseSubmission) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetCases := "Cases"
	f.SetSheetName("Sheet1", sheetCases)

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetCases, cell, header)
	}

	for r, s := range submissions {
		row := exportRow(s)
		for c, value := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			// Keep amounts numeric so clerks can sum them
			if c == 6 {
				f.SetCellValue(sheetCases, cell, s.AmountOwed)
				continue
			}
			f.SetCellValue(sheetCases, cell, value)
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(exportHeaders))
	f.SetColWidth(sheetCases, "A", lastCol, 20)

	// --- Summary Sheet ---
	sheetSummary := "Summary"
	f.NewSheet(sheetSummary)
	f.SetCellValue(sheetSummary, "A1", "Status")
	f.SetCellValue(sheetSummary, "B1", "Cases")

	counts := make(map[string]int)
	for _, s := range submissions {
		counts[s.Status]++
	}
	row := 2
	for _, status := range models.CaseStatuses() {
		f.SetCellValue(sheetSummary, fmt.Sprintf("A%d", row), status)
		f.SetCellValue(sheetSummary, fmt.Sprintf("B%d", row), counts[status])
		row++
	}
	f.SetCellValue(sheetSummary, fmt.Sprintf("A%d", row), "Total")
	f.SetCellFormula(sheetSummary, fmt.Sprintf("B%d", row), fmt.Sprintf("SUM(B2:B%d)", row-1))
	f.SetColWidth(sheetSummary, "A", "B", 18)

	// Header Style
	headerStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	f.SetCellStyle(sheetCases, "A1", lastCol+"1", headerStyle)
	f.SetCellStyle(sheetSummary, "A1", "B1", headerStyle)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write excel buffer: %w", err)
	}

	return buf, nil
}
