package domo

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"metadata-ingestion/internal/common/errors"
	commonhttp "metadata-ingestion/internal/common/http"
	"metadata-ingestion/internal/config/connections"
	"metadata-ingestion/internal/testutil"
)

func newTestClient(t *testing.T, fake *testutil.FakeDomo, mutate func(*connections.DomoPipelineConnection)) *Client {
	t.Helper()
	conn := &connections.DomoPipelineConnection{DomoCredentials: connections.DomoCredentials{
		Type:           connections.TypeDomoPipeline,
		ClientID:       fake.ClientID,
		SecretToken:    fake.ClientSecret,
		AccessToken:    fake.AccessToken,
		APIHost:        fake.URL(),
		InstanceDomain: fake.URL() + "/",
	}}
	if mutate != nil {
		mutate(conn)
	}

	retry := commonhttp.DefaultRetryConfig()
	retry.MaxAttempts = 1
	client, err := NewClient(conn, Options{Timeout: 5 * time.Second, Retry: retry})
	require.NoError(t, err)
	return client
}

func TestClient_GetPipelines(t *testing.T) {
	fake := testutil.NewFakeDomo(t, testutil.NewTestFixtures())
	client := newTestClient(t, fake, nil)

	pipelines, err := client.GetPipelines(context.Background())
	require.NoError(t, err)
	require.Len(t, pipelines, 3)

	assert.Equal(t, json.Number("42"), pipelines[0]["id"])
	assert.Equal(t, "Sales Daily", pipelines[0]["name"])
	assert.Equal(t, "abc-7", pipelines[1]["id"])
	assert.NotContains(t, pipelines[2], "id")

	assert.Equal(t, []string{"/api/dataprocessing/v1/dataflows"}, fake.Requests())
}

func TestClient_GetRuns(t *testing.T) {
	fake := testutil.NewFakeDomo(t, testutil.NewTestFixtures())
	client := newTestClient(t, fake, nil)

	runs, err := client.GetRuns(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, runs, 3)

	require.NotNil(t, runs[0].BeginTime)
	assert.Equal(t, int64(1700000000000), *runs[0].BeginTime)
	assert.Equal(t, "SUCCESS", runs[0].State)
	assert.Nil(t, runs[2].EndTime)

	assert.Contains(t, fake.Requests(), "/api/dataprocessing/v1/dataflows/42/executions?limit=100&offset=0")
}

func TestClient_GetRuns_NotFound(t *testing.T) {
	fake := testutil.NewFakeDomo(t, testutil.NewTestFixtures())
	client := newTestClient(t, fake, nil)

	_, err := client.GetRuns(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
	assert.Contains(t, err.Error(), "dataflow missing")
}

func TestClient_Unauthorized(t *testing.T) {
	fake := testutil.NewFakeDomo(t, testutil.NewTestFixtures())
	client := newTestClient(t, fake, func(c *connections.DomoPipelineConnection) { c.AccessToken = "wrong" })

	_, err := client.GetPipelines(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeAuth))
}

func TestClient_ServerError(t *testing.T) {
	fake := testutil.NewFakeDomo(t, testutil.NewTestFixtures())
	fake.SetError(testutil.RouteDataflows, http.StatusBadGateway)
	client := newTestClient(t, fake, nil)

	_, err := client.GetPipelines(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list dataflows")
}

func TestClient_GetToken(t *testing.T) {
	fake := testutil.NewFakeDomo(t, testutil.NewTestFixtures())
	client := newTestClient(t, fake, nil)
	assert.True(t, client.HasClientCredentials())

	token, err := client.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "oauth-token", token.AccessToken)

	bad := newTestClient(t, fake, func(c *connections.DomoPipelineConnection) { c.SecretToken = "nope" })
	_, err = bad.GetToken(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeAuth))

	noCreds := newTestClient(t, fake, func(c *connections.DomoPipelineConnection) { c.ClientID = "" })
	assert.False(t, noCreds.HasClientCredentials())
	_, err = noCreds.GetToken(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}

func TestNewClient_InvalidDomain(t *testing.T) {
	conn := &connections.DomoPipelineConnection{DomoCredentials: connections.DomoCredentials{
		AccessToken:    "t",
		InstanceDomain: "example.domo.com",
	}}
	_, err := NewClient(conn, DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))

	_, err = NewClient(nil, DefaultOptions())
	assert.Error(t, err)
}
