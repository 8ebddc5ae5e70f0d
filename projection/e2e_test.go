package projection_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abhissng/conduit/adapters/events"
	"github.com/abhissng/conduit/adapters/events/memory"
	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/oplog"
	"github.com/abhissng/conduit/projection"
	"github.com/abhissng/conduit/rpc"
	"github.com/abhissng/conduit/stitch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var entitySchema = projection.Schema{
	Type:       "Entity",
	Collection: "entity",
	Fields:     []projection.Field{{Name: "name"}},
	Relations:  []string{"tags"},
	Single:     "entity",
	Plural:     "entities",
}

func TestUpdateReachesEveryReadService(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	broker := memory.NewBroker()
	server := rpc.NewServer(broker)
	t.Cleanup(func() { _ = server.Close() })

	queues := []string{"entity-read-a", "entity-read-b"}
	oplogStore := oplog.NewMemoryStore()
	writes := oplog.NewLog(oplogStore, broker, queues)
	require.NoError(t, writes.Start(ctx))

	reads := make([]*projection.MemoryStore, len(queues))
	for i, queue := range queues {
		reads[i] = projection.NewMemoryStore()
		require.NoError(t, newApplier(t, reads[i]).Bind(ctx, server, queue))
	}

	_, err := writes.Record(ctx, oplog.KindCreate, "entity", "42", map[string]any{"name": "Y"}, nil)
	require.NoError(t, err)
	_, err = writes.Record(ctx, oplog.KindRelationAdd, "entity", "42", map[string]any{oplog.RelationKey: "tags", oplog.TargetKey: "blue"}, nil)
	require.NoError(t, err)
	_, err = writes.Record(ctx, oplog.KindUpdate, "entity", "42", map[string]any{"name": "X"}, nil)
	require.NoError(t, err)

	for i, store := range reads {
		require.Eventually(t, func() bool {
			doc, err := store.Get(ctx, "entity", "42")
			return err == nil && doc != nil && doc.Version == 3
		}, 2*time.Second, 10*time.Millisecond, "read service %d", i)

		surface, err := projection.NewSurface("entities", store, log.NewNopLogger(), entitySchema)
		require.NoError(t, err)
		resp := surface.Execute(ctx, &stitch.Request{Query: `{ entity(id: "42") { name tags } gone: entity(id: "7") { name } }`})
		require.Empty(t, resp.Errors)
		assert.Equal(t, map[string]any{"name": "X", "tags": []any{"blue"}}, resp.Data["entity"])
		assert.Nil(t, resp.Data["gone"])
	}

	pending, err := oplogStore.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

type flakyBroker struct {
	events.Broker
	down atomic.Bool
}

func (f *flakyBroker) Publish(ctx context.Context, msg *events.Message) error {
	if f.down.Load() {
		return errors.New("broker unreachable")
	}
	return f.Broker.Publish(ctx, msg)
}

func TestProjectionConvergesAfterFailedPublish(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	broker := &flakyBroker{Broker: memory.NewBroker()}
	server := rpc.NewServer(broker)
	t.Cleanup(func() { _ = server.Close() })

	oplogStore := oplog.NewMemoryStore()
	writes := oplog.NewLog(oplogStore, broker, []string{"entity-read"})
	require.NoError(t, writes.Start(ctx))

	read := projection.NewMemoryStore()
	require.NoError(t, newApplier(t, read).Bind(ctx, server, "entity-read"))

	broker.down.Store(true)
	_, err := writes.Record(ctx, oplog.KindCreate, "entity", "42", map[string]any{"name": "A", "email": "a@x"}, nil)
	require.NoError(t, err)
	broker.down.Store(false)
	_, err = writes.Record(ctx, oplog.KindUpdate, "entity", "42", map[string]any{"name": "B"}, nil)
	require.NoError(t, err)

	pending, err := oplogStore.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.Eventually(t, func() bool {
		doc, err := read.Get(ctx, "entity", "42")
		return err == nil && doc != nil && doc.Version == 2
	}, 2*time.Second, 10*time.Millisecond)
	doc, err := read.Get(ctx, "entity", "42")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "B", "email": "a@x"}, doc.Fields)
}

func TestSurfaceListsLiveDocuments(t *testing.T) {
	ctx := context.Background()
	store := projection.NewMemoryStore()
	a := newApplier(t, store)
	for i, id := range []string{"b", "a", "c"} {
		rec := record("r"+id, uint64(i+1), oplog.KindCreate, map[string]any{"name": id})
		rec.Identifier = id
		_, err := a.Apply(ctx, rec)
		require.NoError(t, err)
	}
	del := record("rd", 4, oplog.KindDelete, nil)
	del.Identifier = "b"
	_, err := a.Apply(ctx, del)
	require.NoError(t, err)

	surface, err := projection.NewSurface("entities", store, nil, entitySchema)
	require.NoError(t, err)

	resp := surface.Execute(ctx, &stitch.Request{Query: `{ entities { id } first: entities(limit: 1) { id } }`})
	require.Empty(t, resp.Errors)
	assert.Equal(t, []any{map[string]any{"id": "a"}, map[string]any{"id": "c"}}, resp.Data["entities"])
	assert.Equal(t, []any{map[string]any{"id": "a"}}, resp.Data["first"])
}
