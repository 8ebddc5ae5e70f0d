package constant

import "github.com/abhissng/conduit/utils/types"

// These are ComponentErrorType constant
const (
	ErrTransport   types.ComponentErrorType = "transport"
	ErrProtocol    types.ComponentErrorType = "protocol"
	ErrDomain      types.ComponentErrorType = "domain"
	ErrReplication types.ComponentErrorType = "replication"
	ErrGateway     types.ComponentErrorType = "gateway"
	ErrConfig      types.ComponentErrorType = "config"
	ErrStore       types.ComponentErrorType = "store"
)

// These are generic request error constant
const (
	BadRequest     types.ResponseErrorType = "BadRequest"
	Forbidden      types.ResponseErrorType = "Forbidden"
	NotFound       types.ResponseErrorType = "NotFound"
	Conflict       types.ResponseErrorType = "Conflict"
	InternalServer types.ResponseErrorType = "InternalServerError"
	Unauthorized   types.ResponseErrorType = "Unauthorized"
	Unavailable    types.ResponseErrorType = "ServiceUnavailable"
	Timeout        types.ResponseErrorType = "Timeout"
)
