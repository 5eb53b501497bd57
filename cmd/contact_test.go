package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-sync/internal/model"
	"github.com/sells-group/contact-sync/internal/pipeline"
	"github.com/sells-group/contact-sync/internal/resilience"
)

func TestPrintResult_Success(t *testing.T) {
	var buf bytes.Buffer
	addr := model.AddressResult{Street: "1 Bay Rd", City: "Oakland", State: "CA", PostalCode: "94601"}

	err := printResult(&buf, &pipeline.ContactResult{
		ContactID: "123",
		Status:    pipeline.StatusSuccess,
		Message:   "Updated contact 123",
		Address:   &addr,
	})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, "94601", out["address"].(map[string]any)["zip"])
}

func TestPrintResult_FailureReturnsError(t *testing.T) {
	var buf bytes.Buffer
	err := printResult(&buf, failedResult("123", resilience.NoMatch("trestle", "no owners returned")))

	assert.Equal(t, resilience.KindNoMatch, resilience.KindOf(err))
	assert.Contains(t, buf.String(), `"status": "failed"`)
}
