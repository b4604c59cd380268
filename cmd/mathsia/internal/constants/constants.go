// Package constants provides centralized constant definitions for the
// MathsIA API. Hardcoded values reused across the codebase live here to
// keep naming consistent between handlers, middleware, and storage.
package constants

import "time"

// HTTP header names used throughout the application.
const (
	// HeaderRequestID is the HTTP header used for request tracking and
	// correlation across logs.
	HeaderRequestID = "X-Request-ID"

	// HeaderAuthorization carries JWT bearer tokens for authentication.
	HeaderAuthorization = "Authorization"

	// HeaderContentType specifies the media type of the request/response body.
	HeaderContentType = "Content-Type"

	// HeaderTotalCount carries the unpaginated result count on list responses.
	HeaderTotalCount = "X-Total-Count"
)

// MIME types used in HTTP responses.
const (
	MIMEApplicationJSON = "application/json"
)

// AuthSchemeBearer is the authentication scheme for JWT tokens, in the
// form "Bearer <token>" in the Authorization header.
const AuthSchemeBearer = "Bearer"

// MongoDB collection names.
const (
	CollectionUsers     = "users"
	CollectionMemocards = "memocards"
	CollectionResponses = "responses"
)

// Context keys for storing and retrieving values from request contexts.
const (
	ContextKeyRequestID = "request_id"
)

// Timeout and duration constants.
const (
	// ShutdownTimeout is the maximum time allowed for graceful shutdown,
	// giving in-flight requests a chance to complete.
	ShutdownTimeout = 30 * time.Second

	// HTTPReadTimeout is the maximum duration for reading the entire
	// request, including the body.
	HTTPReadTimeout = 15 * time.Second

	// HTTPWriteTimeout is the maximum duration before timing out writes
	// of the response.
	HTTPWriteTimeout = 15 * time.Second

	// HTTPIdleTimeout is the maximum time to wait for the next request
	// when keep-alives are enabled.
	HTTPIdleTimeout = 60 * time.Second

	// MongoConnectTimeout bounds the initial connection handshake.
	MongoConnectTimeout = 10 * time.Second

	// HealthCheckTimeout bounds a single database ping during health checks.
	HealthCheckTimeout = 5 * time.Second

	// JWTClockSkew is the tolerance applied to token not-before times to
	// account for clock drift between servers.
	JWTClockSkew = 30 * time.Second
)

// Pagination limits for list endpoints.
const (
	DefaultPageSize = 100
	MaxPageSize     = 500
)
