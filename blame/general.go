package blame

import (
	"errors"

	"github.com/abhissng/conduit/utils/types"
)

type kv = map[string]any

// IsComponent reports whether err carries a blame from the given layer.
func IsComponent(err error, component types.ComponentErrorType) bool {
	var b Blame
	return errors.As(err, &b) && b.FetchComponent() == component
}

// IsCode reports whether err carries a blame with the given code.
func IsCode(err error, code types.ErrorCode) bool {
	var b Blame
	return errors.As(err, &b) && b.FetchErrCode() == code
}

// AsBlame returns err as a Blame, wrapping foreign errors as internal errors.
func AsBlame(err error) Blame {
	if err == nil {
		return nil
	}
	var b Blame
	if errors.As(err, &b) {
		return b
	}
	return InternalServerError(err)
}

func InternalServerError(cause error) *Error {
	return Fetch(ErrorInternalServerError, WithCauses(cause))
}

// transport

func ConnectionFailed(url string, attempts int, cause error) *Error {
	return Fetch(ErrorConnectionFailed, WithFields(kv{"url": url, "attempts": attempts}), WithCauses(cause))
}

func NotConnected(state string) *Error {
	return Fetch(ErrorNotConnected, WithFields(kv{"state": state}))
}

func InvalidTransition(from, to string) *Error {
	return Fetch(ErrorInvalidTransition, WithFields(kv{"from": from, "to": to}))
}

func QueueMismatch(queue string, declaredDurable bool) *Error {
	return Fetch(ErrorQueueMismatch, WithFields(kv{"queue": queue, "declared": declaredDurable}))
}

func QueueDeclareFailed(queue string, cause error) *Error {
	return Fetch(ErrorQueueDeclareFailed, WithFields(kv{"queue": queue}), WithCauses(cause))
}

func QueueNotDeclared(queue string) *Error {
	return Fetch(ErrorQueueNotDeclared, WithFields(kv{"queue": queue}))
}

func PublishFailed(queue string, cause error) *Error {
	return Fetch(ErrorPublishFailed, WithFields(kv{"queue": queue}), WithCauses(cause))
}

func AlreadyConsuming(queue string) *Error {
	return Fetch(ErrorAlreadyConsuming, WithFields(kv{"queue": queue}))
}

func ConsumeFailed(queue string, cause error) *Error {
	return Fetch(ErrorConsumeFailed, WithFields(kv{"queue": queue}), WithCauses(cause))
}

func AckFailed(queue string, cause error) *Error {
	return Fetch(ErrorAckFailed, WithFields(kv{"queue": queue}), WithCauses(cause))
}

// rpc

func ClientNotStarted() *Error {
	return Fetch(ErrorClientNotStarted)
}

func ClientClosed() *Error {
	return Fetch(ErrorClientClosed)
}

func CallTimeout(queue, correlationID string, cause error) *Error {
	return Fetch(ErrorCallTimeout, WithFields(kv{"queue": queue, "correlation_id": correlationID}), WithCauses(cause))
}

func UnknownCorrelationId(correlationID string) *Error {
	return Fetch(ErrorUnknownCorrelationId, WithFields(kv{"correlation_id": correlationID}))
}

func MalformedEnvelope(queue string, cause error) *Error {
	return Fetch(ErrorMalformedEnvelope, WithFields(kv{"queue": queue}), WithCauses(cause))
}

func HandlerPanicked(queue string, recovered any) *Error {
	return Fetch(ErrorHandlerPanicked, WithFields(kv{"queue": queue, "panic": recovered}))
}

func HandlerFailed(queue string, cause error) *Error {
	return Fetch(ErrorHandlerFailed, WithFields(kv{"queue": queue}), WithCauses(cause))
}

func MarshalFailed(cause error) *Error {
	return Fetch(ErrorMarshalFailed, WithCauses(cause))
}

func UnmarshalFailed(cause error) *Error {
	return Fetch(ErrorUnmarshalFailed, WithCauses(cause))
}

// replication

func UnknownOperation(operation string) *Error {
	return Fetch(ErrorUnknownOperation, WithFields(kv{"operation": operation}))
}

func RecordMalformed(cause error) *Error {
	return Fetch(ErrorRecordMalformed, WithCauses(cause))
}

func RecordVersion(version uint64) *Error {
	return Fetch(ErrorRecordVersion, WithFields(kv{"version": version}))
}

func RecordAppendFailed(operation, collection string, cause error) *Error {
	return Fetch(ErrorRecordAppendFailed, WithFields(kv{"operation": operation, "collection": collection}), WithCauses(cause))
}

func ReplicationFailed(recordID, queue string, cause error) *Error {
	return Fetch(ErrorReplicationFailed, WithFields(kv{"record_id": recordID, "queue": queue}), WithCauses(cause))
}

func ProjectionFailed(operation, collection, identifier string, cause error) *Error {
	return Fetch(ErrorProjectionFailed, WithFields(kv{"operation": operation, "collection": collection, "identifier": identifier}), WithCauses(cause))
}

func StoreFailed(operation string, cause error) *Error {
	return Fetch(ErrorStoreFailed, WithFields(kv{"operation": operation}), WithCauses(cause))
}

func NotFound(collection, identifier string) *Error {
	return Fetch(ErrorNotFound, WithFields(kv{"collection": collection, "identifier": identifier}))
}

// gateway

func FieldCollision(typeName, field, first, second string) *Error {
	return Fetch(ErrorFieldCollision, WithFields(kv{"type": typeName, "field": field, "first": first, "second": second}))
}

func TypeConflict(typeName, first, second string) *Error {
	return Fetch(ErrorTypeConflict, WithFields(kv{"type": typeName, "first": first, "second": second}))
}

func IntrospectionFailed(queue string, cause error) *Error {
	return Fetch(ErrorIntrospectionFailed, WithFields(kv{"queue": queue}), WithCauses(cause))
}

func InvalidSchema(service string, cause error) *Error {
	return Fetch(ErrorInvalidSchema, WithFields(kv{"service": service}), WithCauses(cause))
}

func InvalidQuery(cause error) *Error {
	return Fetch(ErrorInvalidQuery, WithCauses(cause))
}

func BackendFailed(service string, cause error) *Error {
	return Fetch(ErrorBackendFailed, WithFields(kv{"service": service}), WithCauses(cause))
}

func CacheFailed(operation string, cause error) *Error {
	return Fetch(ErrorCacheFailed, WithFields(kv{"operation": operation}), WithCauses(cause))
}

func Unauthorized(cause error) *Error {
	return Fetch(ErrorUnauthorized, WithCauses(cause))
}

func Forbidden(resource string) *Error {
	return Fetch(ErrorForbidden, WithFields(kv{"resource": resource}))
}

// config

func ConfigInvalid(problems map[string]string) *Error {
	e := Fetch(ErrorConfigInvalid)
	for field, problem := range problems {
		_ = e.WithField(field, problem)
	}
	return e
}
