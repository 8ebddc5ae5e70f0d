package stitch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/abhissng/conduit/adapters/events/memory"
	"github.com/abhissng/conduit/blame"
	"github.com/abhissng/conduit/rpc"
	"github.com/abhissng/conduit/stitch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventsSDL = `
type Event {
  id: ID!
  kind: String!
  entityId: ID!
}

type Query {
  event(id: ID!): Event
}
`

const entitiesSDL = `
type Entity {
  id: ID!
  name: String!
}

type Query {
  entity(id: ID!): Entity
}
`

type entity struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Secret string `json:"secret"`
}

func eventsSurface(t *testing.T) *stitch.Surface {
	t.Helper()
	s, err := stitch.NewSurface("events", eventsSDL, stitch.Resolvers{
		"Query.event": func(_ context.Context, args map[string]any) (any, error) {
			return map[string]any{"id": args["id"], "kind": "created", "entityId": "42"}, nil
		},
	})
	require.NoError(t, err)
	return s
}

func entitiesSurface(t *testing.T, claims chan<- map[string]any) *stitch.Surface {
	t.Helper()
	s, err := stitch.NewSurface("entities", entitiesSDL, stitch.Resolvers{
		"Query.entity": func(ctx context.Context, args map[string]any) (any, error) {
			if claims != nil {
				claims <- stitch.ClaimsFrom(ctx)
			}
			if args["id"] != "42" {
				return nil, blame.NotFound("entity", args["id"].(string))
			}
			return entity{ID: "42", Name: "X", Secret: "s"}, nil
		},
	})
	require.NoError(t, err)
	return s
}

type recorder struct {
	mu       sync.Mutex
	requests []*stitch.Request
}

func (r *recorder) wrap(next stitch.Executor) stitch.Executor {
	return stitch.ExecutorFunc(func(ctx context.Context, req *stitch.Request) (*stitch.Response, error) {
		r.mu.Lock()
		r.requests = append(r.requests, req)
		r.mu.Unlock()
		return next.Execute(ctx, req)
	})
}

func TestSurfaceProjectsSelection(t *testing.T) {
	s := entitiesSurface(t, nil)

	resp := s.Execute(context.Background(), &stitch.Request{Query: `
query {
  entity(id: "42") { ...EntityName id kind: __typename }
}
fragment EntityName on Entity { label: name }
`})

	require.Empty(t, resp.Errors)
	assert.Equal(t, map[string]any{"label": "X", "id": "42", "kind": "Entity"}, resp.Data["entity"])
}

func TestSurfaceReportsResolverErrors(t *testing.T) {
	s := entitiesSurface(t, nil)

	resp := s.Execute(context.Background(), &stitch.Request{Query: `{ missing: entity(id: "7") { name } }`})

	require.Len(t, resp.Errors, 1)
	assert.Nil(t, resp.Data["missing"])
	assert.Equal(t, []any{"missing"}, resp.Errors[0].Path)
	assert.Equal(t, string(blame.ErrorNotFound), resp.Errors[0].Extensions[stitch.ExtensionCode])
}

func TestSurfaceRequiresEveryResolver(t *testing.T) {
	_, err := stitch.NewSurface("entities", entitiesSDL, stitch.Resolvers{})
	require.Error(t, err)
	assert.True(t, blame.IsCode(err, blame.ErrorInvalidSchema))
}

func TestComposeRoutesFieldsToOwners(t *testing.T) {
	events, entities := &recorder{}, &recorder{}
	claims := make(chan map[string]any, 1)

	st, err := stitch.Compose([]*stitch.Backend{
		{Service: "events", SDL: eventsSDL, Executor: events.wrap(stitch.LocalExecutor(eventsSurface(t)))},
		{Service: "entities", SDL: entitiesSDL, Executor: entities.wrap(stitch.LocalExecutor(entitiesSurface(t, claims)))},
	})
	require.NoError(t, err)

	owner, ok := st.Owner("Query.entity")
	require.True(t, ok)
	assert.Equal(t, "entities", owner)

	resp, err := st.Execute(context.Background(), &stitch.Request{
		Query:     `query Q($e: ID!) { event(id: "7") { kind } ent: entity(id: $e) { name } }`,
		Variables: map[string]any{"e": "42"},
		Context:   map[string]any{"sub": "user-1"},
	})
	require.NoError(t, err)
	require.Empty(t, resp.Errors)
	assert.Equal(t, map[string]any{"kind": "created"}, resp.Data["event"])
	assert.Equal(t, map[string]any{"name": "X"}, resp.Data["ent"])

	require.Len(t, events.requests, 1)
	require.Len(t, entities.requests, 1)
	assert.NotContains(t, events.requests[0].Query, "entity")
	assert.Empty(t, events.requests[0].Variables)
	assert.NotContains(t, entities.requests[0].Query, "event")
	assert.Equal(t, map[string]any{"e": "42"}, entities.requests[0].Variables)
	assert.Equal(t, "user-1", (<-claims)["sub"])
}

func TestComposeRejectsFieldCollision(t *testing.T) {
	_, err := stitch.Compose([]*stitch.Backend{
		{Service: "entities", SDL: entitiesSDL},
		{Service: "entities-v2", SDL: entitiesSDL},
	})
	require.Error(t, err)
	assert.True(t, blame.IsCode(err, blame.ErrorFieldCollision))
}

func TestComposeRejectsTypeConflict(t *testing.T) {
	_, err := stitch.Compose([]*stitch.Backend{
		{Service: "entities", SDL: entitiesSDL},
		{Service: "audit", SDL: `
type Entity {
  id: ID!
  changedBy: String
}

type Query {
  audit(id: ID!): Entity
}
`},
	})
	require.Error(t, err)
	assert.True(t, blame.IsCode(err, blame.ErrorTypeConflict))
}

func TestComposeAcceptsIdenticalSharedTypes(t *testing.T) {
	st, err := stitch.Compose([]*stitch.Backend{
		{Service: "entities", SDL: entitiesSDL},
		{Service: "search", SDL: `
type Entity {
  id: ID!
  name: String!
}

type Query {
  search(name: String!): [Entity!]!
}
`},
	})
	require.NoError(t, err)
	assert.Contains(t, st.SDL(), "search")
}

func TestBackendFailureNullsOnlyItsFields(t *testing.T) {
	down := stitch.ExecutorFunc(func(context.Context, *stitch.Request) (*stitch.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	})
	backends := func() []*stitch.Backend {
		return []*stitch.Backend{
			{Service: "events", SDL: eventsSDL, Executor: down},
			{Service: "entities", SDL: entitiesSDL, Executor: stitch.LocalExecutor(entitiesSurface(t, nil))},
		}
	}
	req := &stitch.Request{Query: `{ event(id: "7") { kind } entity(id: "42") { name } }`}

	st, err := stitch.Compose(backends())
	require.NoError(t, err)
	resp, err := st.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, resp.Data["event"])
	assert.Equal(t, map[string]any{"name": "X"}, resp.Data["entity"])
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, string(blame.ErrorBackendFailed), resp.Errors[0].Extensions[stitch.ExtensionCode])
	assert.NotContains(t, resp.Errors[0].Extensions, stitch.ExtensionDetail)

	st, err = stitch.Compose(backends(), stitch.WithDebug(true))
	require.NoError(t, err)
	resp, err = st.Execute(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0].Extensions[stitch.ExtensionDetail], "connection refused")
}

func TestInvalidQueryIsReportedInResponse(t *testing.T) {
	st, err := stitch.Compose([]*stitch.Backend{
		{Service: "entities", SDL: entitiesSDL, Executor: stitch.LocalExecutor(entitiesSurface(t, nil))},
	})
	require.NoError(t, err)

	resp, err := st.Execute(context.Background(), &stitch.Request{Query: `{ entity(id: "42") { colour } }`})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Errors)
	assert.Nil(t, resp.Data)
}

func TestBuildOverBroker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	broker := memory.NewBroker()
	server := rpc.NewServer(broker)
	t.Cleanup(func() { _ = server.Close() })
	require.NoError(t, eventsSurface(t).Serve(ctx, server, "events-read"))
	require.NoError(t, entitiesSurface(t, nil).Serve(ctx, server, "entities-read"))

	client := rpc.NewClient(broker)
	require.NoError(t, client.Start(ctx))
	t.Cleanup(func() { _ = client.Close() })

	st, err := stitch.Build(ctx, client, []string{"events-read", "entities-read"})
	require.NoError(t, err)

	resp, err := st.Execute(ctx, &stitch.Request{Query: `{ event(id: "7") { id entityId } entity(id: "42") { id name } }`})
	require.NoError(t, err)
	require.Empty(t, resp.Errors)
	assert.Equal(t, map[string]any{"id": "7", "entityId": "42"}, resp.Data["event"])
	assert.Equal(t, map[string]any{"id": "42", "name": "X"}, resp.Data["entity"])
}

func TestBuildFailsWhenBackendIsMissing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	broker := memory.NewBroker()
	client := rpc.NewClient(broker)
	require.NoError(t, client.Start(ctx))
	t.Cleanup(func() { _ = client.Close() })

	_, err := stitch.Build(ctx, client, []string{"nobody-home"})
	require.Error(t, err)
	assert.True(t, blame.IsCode(err, blame.ErrorIntrospectionFailed))
}
