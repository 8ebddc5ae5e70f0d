package middleware

import (
	"bytes"
	"io"
	"time"

	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/utils/constant"
	"github.com/abhissng/conduit/utils/types"
	"github.com/gin-gonic/gin"
)

// GinRequestLogger logs every request and its outcome. Bodies are only
// captured when logBodies is set, as GraphQL variables may carry user data.
func GinRequestLogger(logger *log.Log, logBodies bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		fields := []types.Field{
			log.String("method", c.Request.Method),
			log.String("url", c.Request.RequestURI),
			log.String("client_ip", c.ClientIP()),
			log.String(constant.RequestID, c.GetString(constant.RequestID)),
			log.String(constant.CorrelationID, c.GetString(constant.CorrelationID)),
			log.String("user_agent", c.Request.UserAgent()),
		}
		if logBodies && c.Request.Body != nil {
			bodyBytes, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			fields = append(fields, log.String("body", string(bodyBytes)))
		}
		logger.Info(constant.IncomingRequest, fields...)

		var responseBodyBuffer bytes.Buffer
		if logBodies {
			c.Writer = &responseWriter{ResponseWriter: c.Writer, body: &responseBodyBuffer}
		}

		c.Next()

		fields = []types.Field{
			log.Int("status_code", c.Writer.Status()),
			log.Duration("latency", time.Since(startTime)),
			log.String(constant.RequestID, c.GetString(constant.RequestID)),
			log.String(constant.CorrelationID, c.GetString(constant.CorrelationID)),
		}
		if logBodies {
			fields = append(fields, log.String("response_body", responseBodyBuffer.String()))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, log.String("errors", c.Errors.String()))
		}
		logger.Info(constant.ResponseDetails, fields...)
	}
}

// responseWriter is a custom implementation of gin.ResponseWriter to capture response body
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write writes the response body
func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}
