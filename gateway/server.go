// Package gateway exposes a stitched schema over HTTP.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/abhissng/conduit/adapters/gin/middleware"
	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/adapters/prometheus"
	"github.com/abhissng/conduit/blame"
	"github.com/abhissng/conduit/stitch"
	"github.com/abhissng/conduit/utils/constant"
	"github.com/abhissng/conduit/utils/helpers"
	"github.com/gin-gonic/gin"
)

// Server serves GraphQL queries against an executor, normally a
// *stitch.Stitcher wrapped by the response cache.
type Server struct {
	exec            stitch.Executor
	addr            string
	logger          *log.Log
	metrics         *prometheus.MetricsCollector
	jwt             *middleware.JWTConfig
	logBodies       bool
	checks          map[string]HealthCheck
	gracefulTimeOut time.Duration

	router *gin.Engine
	http   *http.Server
}

// graphQLRequest is the POST body. Clients cannot supply the context map;
// it is filled from validated claims only.
type graphQLRequest struct {
	Query         string         `json:"query" binding:"required"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

// New builds the router. The server does not listen until Run. With a nil
// exec only /healthz and /metrics are served.
func New(exec stitch.Executor, opts ...Option) *Server {
	s := defaultServer()
	s.exec = exec
	for _, opt := range opts {
		opt(s)
	}

	if helpers.IsProdEnvironment() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(s.logger),
		middleware.GinRequestLogger(s.logger, s.logBodies),
		middleware.CompressionMiddleware(),
	)
	if s.metrics != nil {
		router.Use(middleware.GinMiddleware(s.metrics))
		middleware.RegisterMetricsEndpoint(router, s.metrics)
	}
	router.GET(constant.HealthEndpoint, s.health)

	if exec != nil {
		graphql := []gin.HandlerFunc{}
		if s.jwt != nil {
			graphql = append(graphql, middleware.JWTAuthMiddleware(*s.jwt))
		}
		graphql = append(graphql, s.query)
		router.POST(constant.GraphQLEndpoint, graphql...)
	}

	s.router = router
	s.http = &http.Server{
		Addr:              s.addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the underlying router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens until ctx is done, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(constant.ServerListening, log.String("addr", s.addr))
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.gracefulTimeOut)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(constant.ServerDraining, log.String("addr", s.addr))
	return s.http.Shutdown(ctx)
}

func (s *Server) query(c *gin.Context) {
	var body graphQLRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithBlame(c, blame.InvalidQuery(err))
		return
	}

	claims := middleware.FetchClaims(c)
	req := &stitch.Request{
		Query:         body.Query,
		OperationName: body.OperationName,
		Variables:     body.Variables,
		Context:       claims,
	}
	ctx := stitch.WithClaims(c.Request.Context(), claims)

	resp, err := s.exec.Execute(ctx, req)
	if err != nil {
		b := blame.AsBlame(err)
		s.logger.Error(constant.ProcessingFailed, log.Blame(b),
			log.String(constant.CorrelationID, c.GetString(constant.CorrelationID)))
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"data": nil, "errors": []*stitch.Error{{
			Message:    b.FetchMessage(),
			Extensions: map[string]any{stitch.ExtensionCode: string(b.FetchErrCode())},
		}}})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) health(c *gin.Context) {
	status := http.StatusOK
	report := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			report[name] = err.Error()
			continue
		}
		report[name] = helpers.GetHealthyMessageFor(name)
	}
	c.JSON(status, gin.H{"status": http.StatusText(status), "checks": report})
}
