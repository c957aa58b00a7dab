package services

import (
	"encoding/csv"
	"testing"
	"time"

	"eviction_intake_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func exportFixtures() []models.CaseSubmission {
	filed := time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)
	return []models.CaseSubmission{
		{
			CaseID:          "HC-1",
			Status:          models.CaseStatusFiled,
			LandlordName:    "Jane Doe",
			TenantName:      "John Roe",
			PropertyAddress: "1 Main St",
			AmountOwed:      1250.5,
			FilingDate:      &filed,
			Synced:          true,
			CreatedAt:       time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			CaseID:     "HC-2",
			Status:     models.CaseStatusSubmitted,
			TenantName: "Comma, Person",
			AmountOwed: 100,
			SyncError:  "case index append failed",
			CreatedAt:  time.Date(2024, 2, 2, 9, 0, 0, 0, time.UTC),
		},
	}
}

func TestExportSubmissionsCSV(t *testing.T) {
	buf, err := ExportSubmissionsCSV(exportFixtures())
	require.NoError(t, err)

	records, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, exportHeaders, records[0])
	assert.Equal(t, "HC-1", records[1][0])
	assert.Equal(t, "1250.50", records[1][6])
	assert.Equal(t, "2024-02-03", records[1][8])
	assert.Equal(t, "2024-02-01T09:00:00Z", records[1][9])
	assert.Equal(t, "true", records[1][10])
	assert.Equal(t, "Comma, Person", records[2][3])
	assert.Equal(t, "", records[2][8])
	assert.Equal(t, "case index append failed", records[2][12])
}

func TestExportSubmissionsExcel(t *testing.T) {
	buf, err := ExportSubmissionsExcel(exportFixtures())
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Cases")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Case ID", rows[0][0])
	assert.Equal(t, "HC-2", rows[2][0])

	amount, err := f.GetCellValue("Cases", "G2")
	require.NoError(t, err)
	assert.Equal(t, "1250.5", amount)

	filedCount, err := f.GetCellValue("Summary", "B6")
	require.NoError(t, err)
	assert.Equal(t, "1", filedCount)

	formula, err := f.GetCellFormula("Summary", "B8")
	require.NoError(t, err)
	assert.Equal(t, "SUM(B2:B7)", formula)
}
