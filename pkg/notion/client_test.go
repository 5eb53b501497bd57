package notion

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	args := m.Called(ctx, dbID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.DatabaseQueryResponse), args.Error(1)
}

func (m *MockClient) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Page), args.Error(1)
}

func TestMockClientSatisfiesInterface(t *testing.T) {
	t.Parallel()
	var _ Client = (*MockClient)(nil)
}

func TestNewClientReturnsClient(t *testing.T) {
	c := NewClient("secret_token")
	require.NotNil(t, c)
	nc := c.(*notionClient)
	require.NotNil(t, nc.limiter)
	assert.Equal(t, rate.Limit(3), nc.limiter.Limit())
}

func TestWithRateLimit(t *testing.T) {
	nc := NewClient("tok", WithRateLimit(10)).(*notionClient)
	assert.Equal(t, rate.Limit(10), nc.limiter.Limit())

	nc = NewClient("tok", WithRateLimit(0)).(*notionClient)
	assert.Nil(t, nc.limiter)
	assert.NoError(t, nc.wait(context.Background()))
}

func TestWait_Cancelled(t *testing.T) {
	nc := &notionClient{limiter: rate.NewLimiter(rate.Every(time.Hour), 1)}
	require.True(t, nc.limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := nc.CreatePage(ctx, &notionapi.PageCreateRequest{})
	assert.ErrorContains(t, err, "notion: rate limit")
}

// rewriteTransport sends every request to a test server.
type rewriteTransport struct {
	target *url.URL
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = rt.target.Scheme
	req.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func TestCreatePage_HTTP(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"page","id":"page-1"}`))
	}))
	defer srv.Close()

	target, err := url.Parse(srv.URL)
	require.NoError(t, err)

	c := NewClient("secret_token",
		WithRateLimit(0),
		WithHTTPClient(&http.Client{Transport: rewriteTransport{target: target}}),
	)

	page, err := c.CreatePage(context.Background(), &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{Type: notionapi.ParentTypeDatabaseID, DatabaseID: "db-1"},
		Properties: notionapi.Properties{
			PropStep: notionapi.TitleProperty{Type: notionapi.PropertyTypeTitle, Title: richText("CRM Update")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, notionapi.ObjectID("page-1"), page.ID)
	assert.Equal(t, "/v1/pages", gotPath)
	assert.Equal(t, "Bearer secret_token", gotAuth)
	assert.Contains(t, gotBody, "properties")
}
