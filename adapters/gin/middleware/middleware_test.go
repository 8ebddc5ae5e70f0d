package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abhissng/conduit/adapters/jwt"
	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/adapters/prometheus"
	"github.com/abhissng/conduit/utils/constant"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testSecret = "middleware-test-secret"

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(handlers...)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"request_id":     c.GetString(constant.RequestID),
			"correlation_id": c.GetString(constant.CorrelationID),
			"claims":         FetchClaims(c),
		})
	})
	return router
}

func get(router http.Handler, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	for k, v := range header {
		req.Header[http.CanonicalHeaderKey(k)] = v
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRequestIDKeepsCallerCorrelationID(t *testing.T) {
	router := newRouter(RequestIDMiddleware(log.NewNopLogger()))

	rec := get(router, http.Header{constant.CorrelationIDHeader: {"corr-1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "corr-1", rec.Header().Get(constant.CorrelationIDHeader))
	assert.Contains(t, rec.Body.String(), `"correlation_id":"corr-1"`)

	rec = get(router, nil)
	assert.NotEmpty(t, rec.Header().Get(constant.CorrelationIDHeader))
}

func TestJWTAuth(t *testing.T) {
	token, err := jwt.GenerateJWT(jwt.NewClaims("conduit", "user-1", []string{"reader"}, time.Minute), testSecret)
	require.NoError(t, err)

	required := newRouter(JWTAuthMiddleware(JWTConfig{Secret: testSecret, Issuer: "conduit", Required: true}))
	optional := newRouter(JWTAuthMiddleware(JWTConfig{Secret: testSecret, Issuer: "conduit"}))

	rec := get(required, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "error-unauthorized")

	rec = get(optional, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"claims":null`)

	rec = get(optional, http.Header{constant.AuthorizationHeader: {constant.BearerPrefix + "garbage"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = get(required, http.Header{constant.AuthorizationHeader: {constant.BearerPrefix + token}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sub":"user-1"`)
}

func TestMetricsEndpointExposesHTTPCounters(t *testing.T) {
	mc := prometheus.NewMetricsCollector(prometheus.WithServiceName("gateway"))
	router := newRouter(GinMiddleware(mc))
	RegisterMetricsEndpoint(router, mc)

	require.Equal(t, http.StatusOK, get(router, nil).Code)

	req := httptest.NewRequest(http.MethodGet, constant.MetricsEndpoint, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `gateway_http_requests_total{method="GET",path="/ping",status_code="200"} 1`))
}

func TestGinRequestLoggerPassesBodyThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinRequestLogger(log.NewNopLogger(), true))
	router.POST("/echo", func(c *gin.Context) {
		var body map[string]any
		require.NoError(t, c.ShouldBindJSON(&body))
		c.JSON(http.StatusOK, body)
	})

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":1}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"a":1}`, rec.Body.String())
}

func TestRequestLogsUseNamedMessages(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger, err := log.NewLogger(log.NewLoggerConfig(false, log.WithZapOptions(zap.WrapCore(func(zapcore.Core) zapcore.Core {
		return core
	}))))
	require.NoError(t, err)

	router := newRouter(RequestIDMiddleware(logger), GinRequestLogger(logger, false))
	rec := get(router, http.Header{"x-correlation-id": {"corr-2"}})
	require.Equal(t, http.StatusOK, rec.Code)

	messages := make([]string, 0, logs.Len())
	for _, entry := range logs.All() {
		messages = append(messages, entry.Message)
	}
	assert.Equal(t, []string{constant.RequestIdentified, constant.IncomingRequest, constant.ResponseDetails}, messages)
	assert.Equal(t, "corr-2", logs.FilterMessage(constant.RequestIdentified).All()[0].ContextMap()[constant.CorrelationID])
}
