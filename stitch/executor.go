package stitch

import (
	"context"

	"github.com/abhissng/conduit/blame"
	"github.com/abhissng/conduit/rpc"
)

// Executor runs a query against one backend.
type Executor interface {
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, req *Request) (*Response, error)

func (f ExecutorFunc) Execute(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware decorates the executor of one backend.
type Middleware func(service string, next Executor) Executor

// RemoteExecutor reaches a Surface over the broker.
type RemoteExecutor struct {
	client *rpc.Client
	queue  string
}

// NewRemoteExecutor returns an executor calling the surface served on queue.
func NewRemoteExecutor(client *rpc.Client, queue string) *RemoteExecutor {
	return &RemoteExecutor{client: client, queue: queue}
}

func (e *RemoteExecutor) Execute(ctx context.Context, req *Request) (*Response, error) {
	var resp Response
	if err := e.client.Invoke(ctx, e.queue, Call{Kind: KindExecute, Request: req}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LocalExecutor runs queries in-process against a Surface.
func LocalExecutor(s *Surface) Executor {
	return ExecutorFunc(func(ctx context.Context, req *Request) (*Response, error) {
		return s.Execute(ctx, req), nil
	})
}

// Introspect asks the surface served on queue for its service name and SDL.
func Introspect(ctx context.Context, client *rpc.Client, queue string) (*Introspection, error) {
	var intro Introspection
	if err := client.Invoke(ctx, queue, Call{Kind: KindIntrospect}, &intro); err != nil {
		return nil, blame.IntrospectionFailed(queue, err)
	}
	return &intro, nil
}
