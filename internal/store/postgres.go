package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-sync/internal/model"
)

// Pool is the subset of *pgxpool.Pool used by PostgresStore. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS processed_contacts (
	id           TEXT PRIMARY KEY,
	processed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_log (
	seq        BIGSERIAL PRIMARY KEY,
	id         TEXT NOT NULL UNIQUE,
	ts         TIMESTAMPTZ NOT NULL,
	script     TEXT NOT NULL,
	step       TEXT NOT NULL,
	status     TEXT NOT NULL,
	message    TEXT NOT NULL DEFAULT '',
	duration   DOUBLE PRECISION,
	contact_id TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_audit_log_contact_id ON audit_log(contact_id);
CREATE INDEX IF NOT EXISTS idx_audit_log_status ON audit_log(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) LoadProcessed(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM processed_contacts ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load processed")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan processed id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: iterate processed")
}

// SaveProcessed inserts ids in a single statement. Existing ids are kept.
func (s *PostgresStore) SaveProcessed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO processed_contacts (id) SELECT unnest($1::text[]) ON CONFLICT (id) DO NOTHING`,
		ids,
	)
	return eris.Wrap(err, "postgres: save processed")
}

func (s *PostgresStore) AppendAudit(ctx context.Context, rec model.AuditRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_log (id, ts, script, step, status, message, duration, contact_id) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.Timestamp.UTC(), rec.Script, rec.Step, string(rec.Status), rec.Message, rec.Duration, rec.ContactID,
	)
	return eris.Wrap(err, "postgres: insert audit")
}

func (s *PostgresStore) ListAudit(ctx context.Context, filter AuditFilter) ([]model.AuditRecord, error) {
	query := `SELECT id, ts, script, step, status, message, duration, contact_id FROM audit_log WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Step != "" {
		query += fmt.Sprintf(` AND step = $%d`, argIdx)
		args = append(args, filter.Step)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.ContactID != "" {
		query += fmt.Sprintf(` AND contact_id = $%d`, argIdx)
		args = append(args, filter.ContactID)
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND ts >= $%d`, argIdx)
		args = append(args, filter.Since.UTC())
		argIdx++
	}
	query += ` ORDER BY seq`
	if filter.Latest {
		query += ` DESC`
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audit")
	}
	defer rows.Close()

	var out []model.AuditRecord
	for rows.Next() {
		var r model.AuditRecord
		var status string
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Script, &r.Step, &status, &r.Message, &r.Duration, &r.ContactID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit")
		}
		r.Status = model.AuditStatus(status)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate audit")
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
