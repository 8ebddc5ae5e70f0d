package blame

import (
	"github.com/abhissng/conduit/utils/types"
)

const (
	ReasonCodeNameSpace = "CONDUIT"
	ReasonCodeBase      = 1000
)

// transport
const (
	ErrorConnectionFailed   types.ErrorCode = "error-connection-failed"
	ErrorNotConnected       types.ErrorCode = "error-not-connected"
	ErrorInvalidTransition  types.ErrorCode = "error-invalid-state-transition"
	ErrorQueueMismatch      types.ErrorCode = "error-queue-durability-mismatch"
	ErrorQueueDeclareFailed types.ErrorCode = "error-queue-declare-failed"
	ErrorQueueNotDeclared   types.ErrorCode = "error-queue-not-declared"
	ErrorPublishFailed      types.ErrorCode = "error-publish-message-failed"
	ErrorAlreadyConsuming   types.ErrorCode = "error-already-consuming-queue"
	ErrorConsumeFailed      types.ErrorCode = "error-consume-failed"
	ErrorAckFailed          types.ErrorCode = "error-delivery-settle-failed"
)

// rpc and protocol
const (
	ErrorClientNotStarted     types.ErrorCode = "error-rpc-client-not-started"
	ErrorClientClosed         types.ErrorCode = "error-rpc-client-closed"
	ErrorCallTimeout          types.ErrorCode = "error-rpc-call-timeout"
	ErrorUnknownCorrelationId types.ErrorCode = "error-unknown-correlation-id"
	ErrorMalformedEnvelope    types.ErrorCode = "error-malformed-envelope"
	ErrorHandlerPanicked      types.ErrorCode = "error-handler-panicked"
	ErrorHandlerFailed        types.ErrorCode = "error-handler-failed"
	ErrorMarshalFailed        types.ErrorCode = "error-marshal-failed"
	ErrorUnmarshalFailed      types.ErrorCode = "error-unmarshal-failed"
)

// replication
const (
	ErrorUnknownOperation   types.ErrorCode = "error-unknown-operation"
	ErrorRecordMalformed    types.ErrorCode = "error-operation-record-malformed"
	ErrorRecordVersion      types.ErrorCode = "error-operation-record-version"
	ErrorRecordAppendFailed types.ErrorCode = "error-record-append-failed"
	ErrorReplicationFailed  types.ErrorCode = "error-replication-publish-failed"
	ErrorProjectionFailed   types.ErrorCode = "error-projection-apply-failed"
	ErrorStoreFailed        types.ErrorCode = "error-store-operation-failed"
	ErrorNotFound           types.ErrorCode = "error-not-found"
)

// gateway
const (
	ErrorFieldCollision      types.ErrorCode = "error-schema-field-collision"
	ErrorTypeConflict        types.ErrorCode = "error-schema-type-conflict"
	ErrorIntrospectionFailed types.ErrorCode = "error-introspection-failed"
	ErrorInvalidSchema       types.ErrorCode = "error-invalid-schema"
	ErrorInvalidQuery        types.ErrorCode = "error-invalid-query"
	ErrorBackendFailed       types.ErrorCode = "error-backend-failed"
	ErrorCacheFailed         types.ErrorCode = "error-cache-operation-failed"
	ErrorUnauthorized        types.ErrorCode = "error-unauthorized"
	ErrorForbidden           types.ErrorCode = "error-forbidden"
)

// general
const (
	ErrorConfigInvalid       types.ErrorCode = "error-config-invalid"
	ErrorInternalServerError types.ErrorCode = "error-internal-server-error"
)
