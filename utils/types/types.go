package types

import "go.uber.org/zap"

// ErrorCode represents an error code.
type ErrorCode string

// String returns the string representation of the ErrorCode.
func (e ErrorCode) String() string {
	return string(e)
}

// ResponseErrorType represents the type of response error.
type ResponseErrorType string

func (e ResponseErrorType) String() string {
	return string(e)
}

// ComponentErrorType names the layer an error originated in.
type ComponentErrorType string

func (e ComponentErrorType) String() string {
	return string(e)
}

// CacheBackend selects the response cache store.
type CacheBackend string

func (c CacheBackend) String() string {
	return string(c)
}

// ProjectionBackend selects the projection store of a read service.
type ProjectionBackend string

func (p ProjectionBackend) String() string {
	return string(p)
}

// CodecType defines the serialisation used by utils/codec.
type CodecType string

func (c CodecType) String() string {
	return string(c)
}

// LogMode represents the log level of helpers.Println.
type LogMode string

// Field is an alias so callers can build log fields without importing zap.
type Field = zap.Field
