package stitch

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/blame"
	"github.com/abhissng/conduit/rpc"
	"github.com/abhissng/conduit/utils/constant"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

// Backend is one service contributing to the composite schema.
type Backend struct {
	Service  string
	Queue    string
	SDL      string
	Executor Executor
}

type backend struct {
	*Backend
	exec Executor
}

// Stitcher serves the composite schema built from every backend, routing
// each root field to the backend that owns it.
type Stitcher struct {
	cfg      *settings
	sdl      string
	schema   *ast.Schema
	backends []*backend
	owners   map[string]*backend
}

// Build introspects every queue and composes the results. A backend that
// does not answer aborts the build.
func Build(ctx context.Context, client *rpc.Client, queues []string, opts ...Option) (*Stitcher, error) {
	cfg := newSettings(opts)
	backends := make([]*Backend, 0, len(queues))
	for _, queue := range queues {
		intro, err := Introspect(ctx, client, queue)
		if err != nil {
			return nil, err
		}
		cfg.logger.Info(constant.BackendIntrospected,
			log.String("queue", queue),
			log.String("service", intro.Service))
		backends = append(backends, &Backend{
			Service:  intro.Service,
			Queue:    queue,
			SDL:      intro.SDL,
			Executor: NewRemoteExecutor(client, queue),
		})
	}
	return Compose(backends, opts...)
}

type sharedType struct {
	service string
	printed string
}

// Compose merges the backend schemas. Root fields must be unique across
// backends; any other type may be declared by several backends as long as
// every declaration is identical.
func Compose(backends []*Backend, opts ...Option) (*Stitcher, error) {
	s := &Stitcher{cfg: newSettings(opts), owners: make(map[string]*backend)}

	var (
		defs       ast.DefinitionList
		directives ast.DirectiveDefinitionList
		shared     = make(map[string]sharedType)
		roots      = make(map[string]*ast.Definition)
	)
	for _, b := range backends {
		doc, err := parser.ParseSchema(&ast.Source{Name: b.Service, Input: b.SDL})
		if err != nil {
			return nil, blame.InvalidSchema(b.Service, err)
		}
		owned := &backend{Backend: b, exec: s.wrap(b)}

		for _, def := range doc.Definitions {
			if isRoot(def) {
				root := roots[def.Name]
				if root == nil {
					root = &ast.Definition{Kind: ast.Object, Name: def.Name}
					roots[def.Name] = root
				}
				for _, f := range def.Fields {
					key := def.Name + "." + f.Name
					if prev, ok := s.owners[key]; ok {
						return nil, blame.FieldCollision(def.Name, f.Name, prev.Service, b.Service)
					}
					s.owners[key] = owned
					root.Fields = append(root.Fields, f)
				}
				continue
			}

			printed := printDefinition(def)
			if prev, ok := shared[def.Name]; ok {
				if prev.printed != printed {
					return nil, blame.TypeConflict(def.Name, prev.service, b.Service)
				}
				continue
			}
			shared[def.Name] = sharedType{service: b.Service, printed: printed}
			defs = append(defs, def)
		}
		for _, d := range doc.Directives {
			if directives.ForName(d.Name) == nil {
				directives = append(directives, d)
			}
		}
		s.backends = append(s.backends, owned)
	}

	for _, name := range []string{"Query", "Mutation"} {
		if root := roots[name]; root != nil {
			defs = append(defs, root)
		}
	}
	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatSchemaDocument(&ast.SchemaDocument{
		Directives:  directives,
		Definitions: defs,
	})
	s.sdl = buf.String()

	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "composite", Input: s.sdl})
	if err != nil {
		return nil, blame.InvalidSchema("composite", err)
	}
	s.schema = schema
	s.cfg.logger.Info(constant.SchemaComposed,
		log.Int("backends", len(s.backends)),
		log.Int("root_fields", len(s.owners)))
	return s, nil
}

func (s *Stitcher) wrap(b *Backend) Executor {
	exec := b.Executor
	for i := len(s.cfg.middlewares) - 1; i >= 0; i-- {
		exec = s.cfg.middlewares[i](b.Service, exec)
	}
	return exec
}

func isRoot(def *ast.Definition) bool {
	return def.Kind == ast.Object && (def.Name == "Query" || def.Name == "Mutation")
}

func printDefinition(def *ast.Definition) string {
	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatSchemaDocument(&ast.SchemaDocument{
		Definitions: ast.DefinitionList{def},
	})
	return buf.String()
}

// SDL returns the composite schema.
func (s *Stitcher) SDL() string {
	return s.sdl
}

// Owner returns the service owning a root field, e.g. "Query.event".
func (s *Stitcher) Owner(field string) (string, bool) {
	b, ok := s.owners[field]
	if !ok {
		return "", false
	}
	return b.Service, true
}

type plan struct {
	fields ast.SelectionSet
	keys   []string
}

// Execute validates req against the composite schema, sends each backend
// the part of the query it owns and merges the answers. Backends run
// concurrently; one failing backend nulls only its own fields.
func (s *Stitcher) Execute(ctx context.Context, req *Request) (*Response, error) {
	doc, errs := gqlparser.LoadQuery(s.schema, req.Query)
	if len(errs) > 0 {
		return &Response{Errors: errorsFromGQL(errs)}, nil
	}
	op := doc.Operations.ForName(req.OperationName)
	if op == nil {
		return errorResponse(blame.InvalidQuery(fmt.Errorf("operation %q not found", req.OperationName))), nil
	}
	vars, verr := validator.VariableValues(s.schema, op, req.Variables)
	if verr != nil {
		return errorResponse(blame.InvalidQuery(verr)), nil
	}

	rootName := s.schema.Query.Name
	if op.Operation == ast.Mutation {
		rootName = s.schema.Mutation.Name
	}

	resp := &Response{Data: make(map[string]any)}
	plans := make(map[*backend]*plan)
	var order []*backend
	for _, f := range collectFields(op.SelectionSet, rootName, vars) {
		key := responseKey(f)
		if f.Name == "__typename" {
			resp.Data[key] = rootName
			continue
		}
		b, ok := s.owners[rootName+"."+f.Name]
		if !ok {
			resp.Data[key] = nil
			resp.Errors = append(resp.Errors, errorFromBlame(blame.UnknownOperation(rootName+"."+f.Name), key))
			continue
		}
		p := plans[b]
		if p == nil {
			p = &plan{}
			plans[b] = p
			order = append(order, b)
		}
		p.fields = append(p.fields, f)
		p.keys = append(p.keys, key)
	}

	results := make([]*Response, len(order))
	failures := make([]error, len(order))
	var wg sync.WaitGroup
	for i, b := range order {
		wg.Add(1)
		go func(i int, b *backend) {
			defer wg.Done()
			start := time.Now()
			results[i], failures[i] = b.exec.Execute(ctx, subRequest(doc, op, plans[b].fields, req))
			outcome := "ok"
			if failures[i] != nil {
				outcome = "error"
			}
			s.cfg.metrics.ObserveBackend(b.Service, outcome, time.Since(start))
		}(i, b)
	}
	wg.Wait()

	for i, b := range order {
		keys := plans[b].keys
		if failures[i] != nil || results[i] == nil {
			be := blame.BackendFailed(b.Service, failures[i])
			s.cfg.logger.Warn(constant.BackendFailed, log.String("service", b.Service), log.Blame(be))
			for _, key := range keys {
				resp.Data[key] = nil
				resp.Errors = append(resp.Errors, s.backendError(be, b.Service, key))
			}
			continue
		}
		for _, key := range keys {
			resp.Data[key] = results[i].Data[key]
		}
		for _, e := range results[i].Errors {
			resp.Errors = append(resp.Errors, s.redact(e, b.Service))
		}
	}
	return resp, nil
}

func (s *Stitcher) backendError(be *blame.Error, service, key string) *Error {
	e := &Error{
		Message: be.FetchMessage(),
		Path:    []any{key},
		Extensions: map[string]any{
			ExtensionCode:    string(be.FetchErrCode()),
			ExtensionService: service,
		},
	}
	if s.cfg.debug {
		e.Extensions[ExtensionDetail] = be.Error()
	}
	return e
}

// redact strips backend extensions other than the error code unless the
// stitcher runs in debug mode.
func (s *Stitcher) redact(e *Error, service string) *Error {
	out := &Error{Message: e.Message, Path: e.Path, Extensions: map[string]any{ExtensionService: service}}
	for k, v := range e.Extensions {
		if s.cfg.debug || k == ExtensionCode {
			out.Extensions[k] = v
		}
	}
	return out
}
