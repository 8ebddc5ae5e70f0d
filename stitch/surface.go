package stitch

import (
	"context"
	"errors"
	"fmt"

	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/blame"
	"github.com/abhissng/conduit/rpc"
	"github.com/abhissng/conduit/utils/constant"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/validator"
)

// Resolver produces the value of one root field. The result is converted
// to its JSON form before the selection set is applied, so structs with
// json tags, maps and slices are all acceptable.
type Resolver func(ctx context.Context, args map[string]any) (any, error)

// Resolvers maps "Query.field" and "Mutation.field" to their resolver.
type Resolvers map[string]Resolver

// Surface is the query surface one backend service exposes over the broker.
type Surface struct {
	service   string
	sdl       string
	schema    *ast.Schema
	resolvers Resolvers
	logger    *log.Log
}

// SurfaceOption configures a Surface.
type SurfaceOption func(*Surface)

// WithSurfaceLogger sets the logger.
func WithSurfaceLogger(logger *log.Log) SurfaceOption {
	return func(s *Surface) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSurface loads sdl and checks that every root field has a resolver.
func NewSurface(service, sdl string, resolvers Resolvers, opts ...SurfaceOption) (*Surface, error) {
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: service, Input: sdl})
	if err != nil {
		return nil, blame.InvalidSchema(service, err)
	}
	for _, root := range []*ast.Definition{schema.Query, schema.Mutation} {
		if root == nil {
			continue
		}
		for _, f := range root.Fields {
			if isIntrospectionField(f.Name) {
				continue
			}
			if _, ok := resolvers[root.Name+"."+f.Name]; !ok {
				return nil, blame.InvalidSchema(service, fmt.Errorf("no resolver for %s.%s", root.Name, f.Name))
			}
		}
	}
	s := &Surface{
		service:   service,
		sdl:       sdl,
		schema:    schema,
		resolvers: resolvers,
		logger:    log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Service returns the service name reported by introspection.
func (s *Surface) Service() string {
	return s.service
}

// Introspect describes the surface.
func (s *Surface) Introspect() *Introspection {
	return &Introspection{Service: s.service, SDL: s.sdl}
}

// Execute runs req against the local resolvers. Validation and resolver
// failures are reported inside the response.
func (s *Surface) Execute(ctx context.Context, req *Request) *Response {
	doc, errs := gqlparser.LoadQuery(s.schema, req.Query)
	if len(errs) > 0 {
		return &Response{Errors: errorsFromGQL(errs)}
	}
	op := doc.Operations.ForName(req.OperationName)
	if op == nil {
		return errorResponse(blame.InvalidQuery(fmt.Errorf("operation %q not found", req.OperationName)))
	}
	vars, verr := validator.VariableValues(s.schema, op, req.Variables)
	if verr != nil {
		return errorResponse(blame.InvalidQuery(verr))
	}

	root := s.schema.Query
	if op.Operation == ast.Mutation {
		root = s.schema.Mutation
	}
	ctx = WithClaims(ctx, req.Context)

	resp := &Response{Data: map[string]any{}}
	for _, field := range collectFields(op.SelectionSet, root.Name, vars) {
		key := responseKey(field)
		if field.Name == "__typename" {
			resp.Data[key] = root.Name
			continue
		}
		value, err := s.resolve(ctx, root.Name+"."+field.Name, field.ArgumentMap(vars))
		if err != nil {
			b := blame.AsBlame(err)
			s.logger.Debug(constant.ProcessingFailed, log.String("field", field.Name), log.Blame(b))
			resp.Data[key] = nil
			resp.Errors = append(resp.Errors, errorFromBlame(b, key))
			continue
		}
		resp.Data[key] = project(value, field.SelectionSet, field.Definition.Type.Name(), vars)
	}
	return resp
}

func (s *Surface) resolve(ctx context.Context, name string, args map[string]any) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = blame.HandlerPanicked(name, r)
		}
	}()
	resolver, ok := s.resolvers[name]
	if !ok {
		return nil, blame.UnknownOperation(name)
	}
	value, err = resolver(ctx, args)
	if err != nil {
		return nil, err
	}
	return normalize(value)
}

// Handle answers introspect and execute calls. It is an rpc.HandlerFunc.
func (s *Surface) Handle(ctx context.Context, req *rpc.Request) (any, error) {
	var call Call
	if err := req.Decode(&call); err != nil {
		return nil, err
	}
	switch call.Kind {
	case KindIntrospect:
		return s.Introspect(), nil
	case KindExecute:
		if call.Request == nil {
			return nil, blame.MalformedEnvelope(req.Queue, errors.New("execute call without request"))
		}
		return s.Execute(ctx, call.Request), nil
	default:
		return nil, blame.UnknownOperation(call.Kind)
	}
}

// Serve binds the surface to queue. Deliveries are acknowledged after the
// reply is published.
func (s *Surface) Serve(ctx context.Context, server *rpc.Server, queue string, opts ...rpc.ServeOption) error {
	return server.Serve(ctx, queue, s.Handle, false, opts...)
}

func isIntrospectionField(name string) bool {
	return name == "__schema" || name == "__type" || name == "__typename"
}
