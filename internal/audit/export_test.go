package audit

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/contact-sync/internal/model"
)

func TestExportXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.xlsx")
	untimed := sampleRecord()
	untimed.Duration = nil
	untimed.Status = model.AuditSkipped

	require.NoError(t, ExportXLSX(path, []model.AuditRecord{sampleRecord(), untimed}))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet, ok := f.Sheet["Audit"]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 3)

	header := sheet.Rows[0]
	assert.Equal(t, "Timestamp", header.Cells[0].String())
	assert.Equal(t, "Contact ID", header.Cells[6].String())

	first := sheet.Rows[1]
	assert.Equal(t, "2026-03-01 12:30:00", first.Cells[0].String())
	assert.Equal(t, "CRM Update", first.Cells[2].String())
	d, err := first.Cells[5].Float()
	require.NoError(t, err)
	assert.InDelta(t, 0.42, d, 1e-9)

	assert.Equal(t, "Skipped", sheet.Rows[2].Cells[3].String())
}

func TestExportXLSX_BadPath(t *testing.T) {
	err := ExportXLSX(filepath.Join(t.TempDir(), "missing", "dir", "audit.xlsx"), nil)
	assert.ErrorContains(t, err, "audit: save")
}

func TestParseRows(t *testing.T) {
	recs := ParseRows([][]string{
		Header,
		{"2026-03-01 12:30:00", "contact-sync", "Trestle Lookup", "Failed", "No address found", "1.25"},
		{"not a time", "contact-sync", "Phone Validation", "Skipped"},
	})
	require.Len(t, recs, 2)
	assert.Equal(t, 2026, recs[0].Timestamp.Year())
	require.NotNil(t, recs[0].Duration)
	assert.InDelta(t, 1.25, *recs[0].Duration, 1e-9)
	assert.Equal(t, model.AuditSkipped, recs[1].Status)
	assert.True(t, recs[1].Timestamp.IsZero())
	assert.Nil(t, recs[1].Duration)
	assert.Empty(t, recs[1].Message)

	assert.Nil(t, ParseRows(nil))
}
