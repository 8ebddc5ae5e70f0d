package stitch

import (
	"context"

	"github.com/abhissng/conduit/blame"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Request is a query against a Surface or the composite schema.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	// Context carries caller claims. It is forwarded to backends unchanged.
	Context map[string]any `json:"context,omitempty"`
}

// Response is the result of a Request.
type Response struct {
	Data   map[string]any `json:"data"`
	Errors []*Error       `json:"errors,omitempty"`
}

// Error is one entry of Response.Errors.
type Error struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Extension keys.
const (
	ExtensionCode    = "code"
	ExtensionService = "service"
	ExtensionDetail  = "detail"
)

// Introspection is a backend's answer to an introspect call.
type Introspection struct {
	Service string `json:"service"`
	SDL     string `json:"sdl"`
}

// call kinds understood by Surface.Handle
const (
	KindIntrospect = "introspect"
	KindExecute    = "execute"
)

// Call is the RPC body sent to a Surface.
type Call struct {
	Kind    string   `json:"kind"`
	Request *Request `json:"request,omitempty"`
}

func errorFromBlame(b blame.Blame, path ...any) *Error {
	ext := map[string]any{ExtensionCode: string(b.FetchErrCode())}
	if detail := b.FetchDescription(); detail != "" {
		ext[ExtensionDetail] = detail
	}
	return &Error{Message: b.FetchMessage(), Path: path, Extensions: ext}
}

func errorsFromGQL(list gqlerror.List) []*Error {
	out := make([]*Error, 0, len(list))
	for _, e := range list {
		out = append(out, &Error{
			Message:    e.Message,
			Extensions: map[string]any{ExtensionCode: string(blame.ErrorInvalidQuery)},
		})
	}
	return out
}

func errorResponse(b blame.Blame) *Response {
	return &Response{Errors: []*Error{errorFromBlame(b)}}
}

type claimsKey struct{}

// WithClaims stores caller claims in ctx.
func WithClaims(ctx context.Context, claims map[string]any) context.Context {
	if claims == nil {
		return ctx
	}
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFrom returns the caller claims a resolver was invoked with.
func ClaimsFrom(ctx context.Context) map[string]any {
	claims, _ := ctx.Value(claimsKey{}).(map[string]any)
	return claims
}
