package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abhissng/conduit/adapters/gin/middleware"
	"github.com/abhissng/conduit/adapters/jwt"
	"github.com/abhissng/conduit/adapters/prometheus"
	"github.com/abhissng/conduit/stitch"
	"github.com/abhissng/conduit/utils/constant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "gateway-test-secret"

type fakeExecutor struct {
	last   *stitch.Request
	claims map[string]any
	err    error
}

func (f *fakeExecutor) Execute(ctx context.Context, req *stitch.Request) (*stitch.Response, error) {
	f.last = req
	f.claims = stitch.ClaimsFrom(ctx)
	if f.err != nil {
		return nil, f.err
	}
	return &stitch.Response{Data: map[string]any{"entity": map[string]any{"name": "X"}}}, nil
}

func post(t *testing.T, h http.Handler, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, constant.GraphQLEndpoint, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[http.CanonicalHeaderKey(k)] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestQueryIsForwardedToExecutor(t *testing.T) {
	exec := &fakeExecutor{}
	srv := New(exec)

	rec := post(t, srv.Handler(), `{"query":"query Q($id: ID!) { entity(id: $id) { name } }","operationName":"Q","variables":{"id":"42"},"context":{"role":"admin"}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"entity":{"name":"X"}}}`, rec.Body.String())

	require.NotNil(t, exec.last)
	assert.Equal(t, "Q", exec.last.OperationName)
	assert.Equal(t, map[string]any{"id": "42"}, exec.last.Variables)
	assert.Nil(t, exec.last.Context, "clients cannot inject context")
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	srv := New(&fakeExecutor{})

	rec := post(t, srv.Handler(), `{"query":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, srv.Handler(), `{"variables":{}}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExecutorFailureIsBadGateway(t *testing.T) {
	srv := New(&fakeExecutor{err: errors.New("boom")})

	rec := post(t, srv.Handler(), `{"query":"{ entity(id: \"1\") { name } }"}`, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var body struct {
		Data   any             `json:"data"`
		Errors []*stitch.Error `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Nil(t, body.Data)
	require.Len(t, body.Errors, 1)
}

func TestClaimsReachExecutor(t *testing.T) {
	exec := &fakeExecutor{}
	srv := New(exec, WithJWT(middleware.JWTConfig{Secret: secret, Issuer: "conduit", Required: true}))

	rec := post(t, srv.Handler(), `{"query":"{ a }"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, exec.last)

	token, err := jwt.GenerateJWT(jwt.NewClaims("conduit", "user-7", []string{"reader"}, time.Minute), secret)
	require.NoError(t, err)

	rec = post(t, srv.Handler(), `{"query":"{ a }"}`, http.Header{constant.AuthorizationHeader: {constant.BearerPrefix + token}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-7", exec.last.Context["sub"])
	assert.Equal(t, "user-7", exec.claims["sub"])
}

func TestHealthReportsFailingDependency(t *testing.T) {
	srv := New(&fakeExecutor{},
		WithHealthCheck("broker", func(context.Context) error { return nil }),
		WithHealthCheck("redis", func(context.Context) error { return errors.New("down") }),
	)

	req := httptest.NewRequest(http.MethodGet, constant.HealthEndpoint, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"down"`)
	assert.Contains(t, rec.Body.String(), "broker connection healthy")
}

func TestMetricsRouteIsMountedWithCollector(t *testing.T) {
	srv := New(&fakeExecutor{}, WithMetrics(prometheus.NewMetricsCollector(prometheus.WithServiceName("gw"))))
	post(t, srv.Handler(), `{"query":"{ a }"}`, nil)

	req := httptest.NewRequest(http.MethodGet, constant.MetricsEndpoint, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `gw_http_requests_total{method="POST",path="/graphql",status_code="200"} 1`)
}

func TestRunStopsWhenContextIsCancelled(t *testing.T) {
	srv := New(&fakeExecutor{}, WithAddr("127.0.0.1:0"))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}
