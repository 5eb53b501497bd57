package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-sync/internal/ledger"
)

func TestAddAndShowLedger(t *testing.T) {
	l := ledger.NewFile(filepath.Join(t.TempDir(), "processed_contacts.json"))
	ctx := context.Background()

	added, err := addToLedger(ctx, l, []string{"b", "a"})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = addToLedger(ctx, l, []string{"a", "c"})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	var buf bytes.Buffer
	require.NoError(t, showLedger(ctx, &buf, l))

	var ids []string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &ids))
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestShowLedger_Empty(t *testing.T) {
	l := ledger.NewFile(filepath.Join(t.TempDir(), "none.json"))

	var buf bytes.Buffer
	require.NoError(t, showLedger(context.Background(), &buf, l))
	assert.JSONEq(t, "[]", buf.String())
}
