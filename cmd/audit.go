package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/contact-sync/internal/audit"
	"github.com/sells-group/contact-sync/internal/model"
	"github.com/sells-group/contact-sync/internal/store"
	"github.com/sells-group/contact-sync/pkg/notion"
)

var (
	auditSource    string
	auditOut       string
	auditStep      string
	auditStatus    string
	auditContactID string
	auditLimit     int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Work with the audit trail",
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export audit records to an xlsx workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		res := newResources(cfg)
		defer res.Close()

		records, err := loadAudit(cmd.Context(), res, auditSource)
		if err != nil {
			return err
		}
		records = filterAudit(records, auditStep, auditStatus, auditContactID)
		if err := audit.ExportXLSX(auditOut, records); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "exported %d record(s) to %s\n", len(records), auditOut)
		return nil
	},
}

func loadAudit(ctx context.Context, res *resources, source string) ([]model.AuditRecord, error) {
	switch source {
	case "store":
		st, err := res.Store(ctx)
		if err != nil {
			return nil, err
		}
		return st.ListAudit(ctx, store.AuditFilter{
			Step:      auditStep,
			Status:    model.AuditStatus(auditStatus),
			ContactID: auditContactID,
			Limit:     auditLimit,
		})
	case "sheets":
		sc, err := res.Sheets(ctx)
		if err != nil {
			return nil, err
		}
		rows, err := sc.ReadRows(ctx)
		if err != nil {
			return nil, err
		}
		return audit.ParseRows(rows), nil
	case "notion":
		rows, err := notion.QueryAuditRows(ctx, res.Notion(), res.cfg.Audit.Notion.DatabaseID)
		if err != nil {
			return nil, err
		}
		out := make([]model.AuditRecord, 0, len(rows))
		for _, r := range rows {
			out = append(out, model.AuditRecord{
				Timestamp: r.Timestamp,
				Script:    r.Script,
				Step:      r.Step,
				Status:    model.AuditStatus(r.Status),
				Message:   r.Message,
				Duration:  r.Duration,
				ContactID: r.ContactID,
			})
		}
		return out, nil
	default:
		return nil, eris.Errorf("unsupported audit source: %s", source)
	}
}

// filterAudit keeps records matching every non-empty criterion.
func filterAudit(records []model.AuditRecord, step, status, contactID string) []model.AuditRecord {
	if step == "" && status == "" && contactID == "" {
		return records
	}
	var out []model.AuditRecord
	for _, r := range records {
		if step != "" && r.Step != step {
			continue
		}
		if status != "" && string(r.Status) != status {
			continue
		}
		if contactID != "" && r.ContactID != contactID {
			continue
		}
		out = append(out, r)
	}
	return out
}

func init() {
	auditExportCmd.Flags().StringVar(&auditSource, "source", "store", "where to read records from: store, sheets or notion")
	auditExportCmd.Flags().StringVar(&auditOut, "out", "audit.xlsx", "output workbook path")
	auditExportCmd.Flags().StringVar(&auditStep, "step", "", "only export this step")
	auditExportCmd.Flags().StringVar(&auditStatus, "status", "", "only export this status")
	auditExportCmd.Flags().StringVar(&auditContactID, "contact-id", "", "only export this contact")
	auditExportCmd.Flags().IntVar(&auditLimit, "limit", 0, "max records to read from the store (default 1000)")
	auditCmd.AddCommand(auditExportCmd)
	rootCmd.AddCommand(auditCmd)
}
