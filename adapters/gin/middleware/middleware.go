package middleware

import (
	"errors"

	"github.com/abhissng/conduit/adapters/jwt"
	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/blame"
	"github.com/abhissng/conduit/utils/constant"
	"github.com/abhissng/conduit/utils/helpers"
	"github.com/abhissng/conduit/utils/random"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// RequestIDMiddleware attaches a fresh request id and the caller's
// correlation id (or a new one) to the context and echoes the latter back.
func RequestIDMiddleware(logger *log.Log) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := random.GenerateUUIDString()

		correlationID := c.GetHeader(constant.CorrelationIDHeader)
		if correlationID == "" {
			correlationID = random.GenerateUUIDString()
		}

		c.Set(constant.RequestID, requestID)
		c.Set(constant.CorrelationID, correlationID)
		c.Header(constant.CorrelationIDHeader, correlationID)

		logger.Debug(constant.RequestIdentified,
			log.String(constant.RequestID, requestID),
			log.String(constant.CorrelationID, correlationID))
		c.Next()
	}
}

// **Gin Middleware for HSTS**
func HSTSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		c.Next()
	}
}

// CompressionMiddleware gzips responses for clients that accept it.
func CompressionMiddleware() gin.HandlerFunc {
	return gzip.Gzip(gzip.BestSpeed)
}

// JWTConfig configures JWTAuthMiddleware.
type JWTConfig struct {
	Secret string
	Issuer string
	Roles  []string
	// Required rejects requests without a token. Otherwise anonymous
	// requests pass through with no claims attached.
	Required bool
}

// JWTAuthMiddleware validates the bearer token and stores its claims
// under constant.Claims as a plain map.
func JWTAuthMiddleware(cfg JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := helpers.ExtractBearerToken(c.GetHeader(constant.AuthorizationHeader))
		if token == "" {
			if cfg.Required {
				AbortWithBlame(c, blame.Unauthorized(errors.New("missing bearer token")))
				return
			}
			c.Next()
			return
		}

		claims, err := jwt.ValidateJWT(token, cfg.Secret, cfg.Issuer, cfg.Roles)
		if err != nil {
			AbortWithBlame(c, blame.Unauthorized(err))
			return
		}

		c.Set(constant.Claims, claims.AsMap())
		c.Next()
	}
}
