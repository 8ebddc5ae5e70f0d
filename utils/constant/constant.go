package constant

import (
	"time"

	"github.com/abhissng/conduit/utils/types"
)

// These are generic constants for the application
const (
	CorrelationID = "correlation_id"
	RequestID     = "request_id"
	Claims        = "claims"

	Environment          = "Environment"
	HealthyStatusMessage = "connection healthy"
)

// cache and projection store backends
const (
	CacheBackendNone  types.CacheBackend = "none"
	CacheBackendLRU   types.CacheBackend = "lru"
	CacheBackendRedis types.CacheBackend = "redis"

	ProjectionMemory types.ProjectionBackend = "memory"
	ProjectionSQLite types.ProjectionBackend = "sqlite"
	ProjectionMongo  types.ProjectionBackend = "mongo"
)

// GraceFul Shutdown Constants
const (
	ServerDefaultGracefulTime  time.Duration = 10 * time.Second
	ServiceDefaultGracefulTime time.Duration = 5 * time.Second
)
