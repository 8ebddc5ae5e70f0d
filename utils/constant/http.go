package constant

// These are headers constant for the application
const (
	CorrelationIDHeader = "X-Correlation-ID"
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "
)

// gateway routes
const (
	GraphQLEndpoint = "/graphql"
	HealthEndpoint  = "/healthz"
	MetricsEndpoint = "/metrics"
)
