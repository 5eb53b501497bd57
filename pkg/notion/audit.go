package notion

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// Audit database property names.
const (
	PropStep      = "Step"
	PropTimestamp = "Timestamp"
	PropScript    = "Script"
	PropStatus    = "Status"
	PropMessage   = "Message"
	PropDuration  = "Duration"
	PropContactID = "Contact ID"
)

// maxRichText is Notion's per-text-object content limit.
const maxRichText = 2000

// AuditRow is one audit entry stored as a page in a Notion database.
type AuditRow struct {
	Timestamp time.Time
	Script    string
	Step      string
	Status    string
	Message   string
	Duration  *float64
	ContactID string
}

// AppendAuditRow creates a page for row in the audit database.
func AppendAuditRow(ctx context.Context, c Client, dbID string, row AuditRow) error {
	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(dbID),
		},
		Properties: auditProperties(row),
	}
	if _, err := c.CreatePage(ctx, req); err != nil {
		return eris.Wrap(err, "notion: append audit row")
	}
	return nil
}

func auditProperties(row AuditRow) notionapi.Properties {
	ts := notionapi.Date(row.Timestamp.UTC())
	props := notionapi.Properties{
		PropStep: notionapi.TitleProperty{
			Type:  notionapi.PropertyTypeTitle,
			Title: richText(row.Step),
		},
		PropTimestamp: notionapi.DateProperty{
			Type: notionapi.PropertyTypeDate,
			Date: &notionapi.DateObject{Start: &ts},
		},
		PropScript: notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(row.Script),
		},
		PropStatus: notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: row.Status},
		},
		PropMessage: notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(row.Message),
		},
	}
	if row.Duration != nil {
		props[PropDuration] = notionapi.NumberProperty{
			Type:   notionapi.PropertyTypeNumber,
			Number: *row.Duration,
		}
	}
	if row.ContactID != "" {
		props[PropContactID] = notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(row.ContactID),
		}
	}
	return props
}

func richText(s string) []notionapi.RichText {
	if len(s) > maxRichText {
		n := maxRichText
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
		s = s[:n]
	}
	return []notionapi.RichText{
		{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}},
	}
}

// QueryAuditRows reads every audit row, oldest first.
func QueryAuditRows(ctx context.Context, c Client, dbID string) ([]AuditRow, error) {
	pages, err := QueryAll(ctx, c, dbID, &notionapi.DatabaseQueryRequest{
		Sorts: []notionapi.SortObject{
			{Property: PropTimestamp, Direction: notionapi.SortOrderASC},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "notion: query audit rows")
	}
	rows := make([]AuditRow, 0, len(pages))
	for _, p := range pages {
		rows = append(rows, auditRowFromPage(p))
	}
	return rows, nil
}

func auditRowFromPage(p notionapi.Page) AuditRow {
	var row AuditRow
	for name, prop := range p.Properties {
		switch v := prop.(type) {
		case *notionapi.TitleProperty:
			if name == PropStep {
				row.Step = plainText(v.Title)
			}
		case *notionapi.RichTextProperty:
			switch name {
			case PropScript:
				row.Script = plainText(v.RichText)
			case PropMessage:
				row.Message = plainText(v.RichText)
			case PropContactID:
				row.ContactID = plainText(v.RichText)
			}
		case *notionapi.SelectProperty:
			if name == PropStatus {
				row.Status = v.Select.Name
			}
		case *notionapi.DateProperty:
			if name == PropTimestamp && v.Date != nil && v.Date.Start != nil {
				row.Timestamp = time.Time(*v.Date.Start)
			}
		case *notionapi.NumberProperty:
			if name == PropDuration {
				d := v.Number
				row.Duration = &d
			}
		}
	}
	return row
}

func plainText(rt []notionapi.RichText) string {
	var b strings.Builder
	for _, r := range rt {
		if r.Text != nil {
			b.WriteString(r.Text.Content)
			continue
		}
		b.WriteString(r.PlainText)
	}
	return b.String()
}
