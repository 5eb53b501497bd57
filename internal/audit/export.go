package audit

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/contact-sync/internal/model"
)

// Header is the column order shared by spreadsheet rows and exports.
var Header = []string{"Timestamp", "Script", "Step", "Status", "Message", "Duration"}

var exportHeader = append(append([]string{}, Header...), "Contact ID")

// ExportXLSX writes records to a new workbook at path with a single
// "Audit" sheet.
func ExportXLSX(path string, records []model.AuditRecord) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Audit")
	if err != nil {
		return eris.Wrap(err, "audit: add sheet")
	}

	row := sheet.AddRow()
	for _, h := range exportHeader {
		row.AddCell().SetString(h)
	}

	for _, rec := range records {
		row := sheet.AddRow()
		row.AddCell().SetString(rec.Timestamp.UTC().Format(TimestampLayout))
		row.AddCell().SetString(rec.Script)
		row.AddCell().SetString(rec.Step)
		row.AddCell().SetString(string(rec.Status))
		row.AddCell().SetString(rec.Message)
		if rec.Duration != nil {
			row.AddCell().SetFloat(*rec.Duration)
		} else {
			row.AddCell().SetString("")
		}
		row.AddCell().SetString(rec.ContactID)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "audit: save %s", path)
	}
	return nil
}

// ParseRows converts spreadsheet rows (header first) back into records.
// Rows with an unparseable timestamp keep a zero Timestamp.
func ParseRows(rows [][]string) []model.AuditRecord {
	if len(rows) == 0 {
		return nil
	}
	start := 0
	if len(rows[0]) > 0 && strings.EqualFold(rows[0][0], Header[0]) {
		start = 1
	}
	out := make([]model.AuditRecord, 0, len(rows)-start)
	for _, r := range rows[start:] {
		cell := func(i int) string {
			if i < len(r) {
				return r[i]
			}
			return ""
		}
		rec := model.AuditRecord{
			Script:  cell(1),
			Step:    cell(2),
			Status:  model.AuditStatus(cell(3)),
			Message: cell(4),
		}
		if ts, err := time.Parse(TimestampLayout, cell(0)); err == nil {
			rec.Timestamp = ts
		}
		if d, err := strconv.ParseFloat(cell(5), 64); err == nil {
			rec.Duration = &d
		}
		out = append(out, rec)
	}
	return out
}
