package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestClient(t *testing.T, handler http.Handler) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), Config{SpreadsheetID: "sheet-1", Range: "Audit!A:F"},
		WithRateLimit(0),
		WithClientOptions(
			option.WithEndpoint(srv.URL+"/"),
			option.WithoutAuthentication(),
			option.WithHTTPClient(srv.Client()),
		),
	)
	require.NoError(t, err)
	return c
}

func TestAppendRow(t *testing.T) {
	var gotPath, gotInput string
	var gotBody struct {
		Values [][]any `json:"values"`
	}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotInput = r.URL.Query().Get("valueInputOption")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
	}))

	err := c.AppendRow(context.Background(), []any{"2026-03-01 12:00:00", "contact-sync", "CRM Update", "Success", "ok", "0.50"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(gotPath, "/v4/spreadsheets/sheet-1/values/"), gotPath)
	assert.True(t, strings.HasSuffix(gotPath, ":append"), gotPath)
	assert.Equal(t, "USER_ENTERED", gotInput)
	require.Len(t, gotBody.Values, 1)
	assert.Equal(t, "CRM Update", gotBody.Values[0][2])
}

func TestAppendRow_Error(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"denied"}}`))
	}))

	err := c.AppendRow(context.Background(), []any{"x"})
	assert.ErrorContains(t, err, "sheets: append row")
}

func TestReadRows(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"range":"Audit!A1:F2","values":[["Timestamp","Script"],["2026-03-01","contact-sync",1.5]]}`))
	}))

	rows, err := c.ReadRows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Timestamp", "Script"}, rows[0])
	assert.Equal(t, []string{"2026-03-01", "contact-sync", "1.5"}, rows[1])
}

func TestNewClient_RequiresSpreadsheet(t *testing.T) {
	_, err := NewClient(context.Background(), Config{})
	assert.ErrorContains(t, err, "spreadsheet id is required")
}
