package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-sync/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func ptr(f float64) *float64 { return &f }

// --- Ledger ---

func TestSQLite_Processed_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	ids, err := st.LoadProcessed(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSQLite_Processed_Union(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveProcessed(ctx, []string{"b", "a"}))
	require.NoError(t, st.SaveProcessed(ctx, []string{"a", "c"}))
	require.NoError(t, st.SaveProcessed(ctx, nil))

	ids, err := st.LoadProcessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.SaveProcessed(context.Background(), []string{"x"}))
	require.NoError(t, st.Migrate(context.Background()))

	ids, err := st.LoadProcessed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, ids)
}

// --- Audit ---

func TestSQLite_Audit_AppendAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 123000000, time.UTC)

	require.NoError(t, st.AppendAudit(ctx, model.AuditRecord{
		ID: "r1", Timestamp: ts, Script: "contact-sync", Step: "Phone Validation",
		Status: model.AuditSuccess, Message: "Valid phone", Duration: ptr(0.01), ContactID: "c1",
	}))
	require.NoError(t, st.AppendAudit(ctx, model.AuditRecord{
		Script: "contact-sync", Step: "Trestle Lookup", Status: model.AuditFailed,
		Message: "No address found", ContactID: "c1",
	}))

	recs, err := st.ListAudit(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "r1", recs[0].ID)
	assert.True(t, ts.Equal(recs[0].Timestamp))
	assert.Equal(t, model.AuditSuccess, recs[0].Status)
	require.NotNil(t, recs[0].Duration)
	assert.InDelta(t, 0.01, *recs[0].Duration, 1e-9)

	assert.NotEmpty(t, recs[1].ID)
	assert.False(t, recs[1].Timestamp.IsZero())
	assert.Nil(t, recs[1].Duration)
	assert.Equal(t, "Trestle Lookup", recs[1].Step)
}

func TestSQLite_Audit_Filter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, r := range []model.AuditRecord{
		{Script: "s", Step: "Phone Validation", Status: model.AuditSuccess, ContactID: "c1"},
		{Script: "s", Step: "CRM Update", Status: model.AuditFailed, ContactID: "c1"},
		{Script: "s", Step: "Phone Validation", Status: model.AuditSkipped, ContactID: "c2"},
	} {
		require.NoError(t, st.AppendAudit(ctx, r))
	}

	recs, err := st.ListAudit(ctx, AuditFilter{ContactID: "c1"})
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = st.ListAudit(ctx, AuditFilter{Step: "Phone Validation", Status: model.AuditSkipped})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "c2", recs[0].ContactID)

	recs, err = st.ListAudit(ctx, AuditFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "CRM Update", recs[0].Step)
}

func TestSQLite_Audit_DuplicateID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := model.AuditRecord{ID: "dup", Script: "s", Step: "x", Status: model.AuditSuccess}
	require.NoError(t, st.AppendAudit(ctx, rec))
	assert.Error(t, st.AppendAudit(ctx, rec))
}

func TestSQLite_Audit_SinceAndLatest(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, ts := range []time.Time{
		base.Add(-48 * time.Hour),
		base.Add(-time.Hour),
		base.Add(-500 * time.Millisecond),
		base,
	} {
		require.NoError(t, st.AppendAudit(ctx, model.AuditRecord{
			ID: fmt.Sprintf("r%d", i), Timestamp: ts, Script: "s", Step: "Partner Delivery", Status: model.AuditSuccess,
		}))
	}

	recs, err := st.ListAudit(ctx, AuditFilter{Since: base.Add(-2 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "r1", recs[0].ID)

	recs, err = st.ListAudit(ctx, AuditFilter{Since: base.Add(-2 * time.Hour), Latest: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "r3", recs[0].ID)
	assert.Equal(t, "r2", recs[1].ID)
}
