package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/contact-sync/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS processed_contacts (
	id           TEXT PRIMARY KEY,
	processed_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	ts         TEXT NOT NULL,
	script     TEXT NOT NULL,
	step       TEXT NOT NULL,
	status     TEXT NOT NULL,
	message    TEXT NOT NULL DEFAULT '',
	duration   REAL,
	contact_id TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_audit_log_contact_id ON audit_log(contact_id);
CREATE INDEX IF NOT EXISTS idx_audit_log_status ON audit_log(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) LoadProcessed(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM processed_contacts ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load processed")
	}
	defer rows.Close() //nolint:errcheck

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan processed id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: iterate processed")
}

// SaveProcessed inserts ids in one transaction. Existing ids are kept.
func (s *SQLiteStore) SaveProcessed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save processed")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO processed_contacts (id, processed_at) VALUES (?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare save processed")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id, now); err != nil {
			return eris.Wrapf(err, "sqlite: insert processed %s", id)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save processed")
}

func (s *SQLiteStore) AppendAudit(ctx context.Context, rec model.AuditRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	var dur sql.NullFloat64
	if rec.Duration != nil {
		dur = sql.NullFloat64{Float64: *rec.Duration, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, ts, script, step, status, message, duration, contact_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.UTC().Format(time.RFC3339Nano), rec.Script, rec.Step,
		string(rec.Status), rec.Message, dur, rec.ContactID,
	)
	return eris.Wrap(err, "sqlite: insert audit")
}

func (s *SQLiteStore) ListAudit(ctx context.Context, filter AuditFilter) ([]model.AuditRecord, error) {
	query := `SELECT id, ts, script, step, status, message, duration, contact_id FROM audit_log WHERE 1=1`
	var args []any
	if filter.Step != "" {
		query += ` AND step = ?`
		args = append(args, filter.Step)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.ContactID != "" {
		query += ` AND contact_id = ?`
		args = append(args, filter.ContactID)
	}
	if !filter.Since.IsZero() {
		query += ` AND julianday(ts) >= julianday(?)`
		args = append(args, filter.Since.UTC().Format(time.RFC3339Nano))
	}
	query += ` ORDER BY seq`
	if filter.Latest {
		query += ` DESC`
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, listLimit(filter), max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.AuditRecord
	for rows.Next() {
		var (
			r      model.AuditRecord
			ts     string
			status string
			dur    sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &ts, &r.Script, &r.Step, &status, &r.Message, &dur, &r.ContactID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit")
		}
		r.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse audit timestamp %q", ts)
		}
		r.Status = model.AuditStatus(status)
		if dur.Valid {
			d := dur.Float64
			r.Duration = &d
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate audit")
}
