package projection_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abhissng/conduit/adapters/events"
	"github.com/abhissng/conduit/adapters/events/memory"
	"github.com/abhissng/conduit/blame"
	"github.com/abhissng/conduit/oplog"
	"github.com/abhissng/conduit/projection"
	"github.com/abhissng/conduit/rpc"
	"github.com/abhissng/conduit/utils/constant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id string, seq uint64, op oplog.Kind, data map[string]any) *oplog.Record {
	return &oplog.Record{
		ID:         id,
		Sequence:   seq,
		Operation:  op,
		Collection: "entity",
		Identifier: "42",
		Data:       data,
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func newApplier(t *testing.T, store projection.Store) *projection.Applier {
	t.Helper()
	a := projection.NewApplier(store)
	t.Cleanup(a.Close)
	return a
}

func get(t *testing.T, store projection.Store) *projection.Document {
	t.Helper()
	doc, err := store.Get(context.Background(), "entity", "42")
	require.NoError(t, err)
	return doc
}

func TestDuplicateCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := projection.NewMemoryStore()
	a := newApplier(t, store)
	rec := record("r1", 1, oplog.KindCreate, map[string]any{"name": "Y"})

	applied, err := a.Apply(ctx, rec)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = a.Apply(ctx, rec)
	require.NoError(t, err)
	assert.False(t, applied)

	// a fresh applier has no memory of r1 and falls back to the version
	applied, err = newApplier(t, store).Apply(ctx, rec)
	require.NoError(t, err)
	assert.False(t, applied)

	doc := get(t, store)
	assert.Equal(t, map[string]any{"name": "Y"}, doc.Fields)
	assert.Equal(t, uint64(1), doc.Version)
}

func TestUnknownOperationLeavesStoreUntouched(t *testing.T) {
	store := projection.NewMemoryStore()

	_, err := newApplier(t, store).Apply(context.Background(), record("r1", 1, oplog.Kind(99), map[string]any{"name": "Y"}))

	require.Error(t, err)
	assert.True(t, blame.IsCode(err, blame.ErrorUnknownOperation))
	assert.Nil(t, get(t, store))
}

func TestUpdateMergesFields(t *testing.T) {
	ctx := context.Background()
	store := projection.NewMemoryStore()
	a := newApplier(t, store)

	_, err := a.Apply(ctx, record("r1", 1, oplog.KindCreate, map[string]any{"name": "Y", "colour": "red"}))
	require.NoError(t, err)
	_, err = a.Apply(ctx, record("r2", 2, oplog.KindUpdate, map[string]any{"name": "X", "colour": nil}))
	require.NoError(t, err)

	doc := get(t, store)
	assert.Equal(t, map[string]any{"name": "X"}, doc.Fields)
	assert.Equal(t, uint64(2), doc.Version)
}

func TestRelationsHaveSetSemantics(t *testing.T) {
	ctx := context.Background()
	store := projection.NewMemoryStore()
	a := newApplier(t, store)
	rel := func(target string) map[string]any {
		return map[string]any{oplog.RelationKey: "tags", oplog.TargetKey: target}
	}

	steps := []*oplog.Record{
		record("r1", 1, oplog.KindRelationAdd, rel("a")),
		record("r2", 2, oplog.KindRelationAdd, rel("a")),
		record("r3", 3, oplog.KindRelationAdd, rel("b")),
		record("r4", 4, oplog.KindRelationRemove, rel("a")),
		record("r5", 5, oplog.KindRelationRemove, rel("c")),
	}
	for _, rec := range steps {
		_, err := a.Apply(ctx, rec)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"b"}, get(t, store).Related("tags"))
}

func TestRelationRecordNeedsTarget(t *testing.T) {
	store := projection.NewMemoryStore()

	_, err := newApplier(t, store).Apply(context.Background(),
		record("r1", 1, oplog.KindRelationAdd, map[string]any{oplog.RelationKey: "tags"}))

	require.Error(t, err)
	assert.True(t, blame.IsCode(err, blame.ErrorRecordMalformed))
	assert.Nil(t, get(t, store))
}

func TestDeleteSurvivesLateRedelivery(t *testing.T) {
	ctx := context.Background()
	store := projection.NewMemoryStore()
	create := record("r1", 1, oplog.KindCreate, map[string]any{"name": "Y"})

	_, err := newApplier(t, store).Apply(ctx, create)
	require.NoError(t, err)
	_, err = newApplier(t, store).Apply(ctx, record("r2", 2, oplog.KindDelete, nil))
	require.NoError(t, err)

	applied, err := newApplier(t, store).Apply(ctx, create)
	require.NoError(t, err)
	assert.False(t, applied)

	doc := get(t, store)
	assert.True(t, doc.Deleted)
	assert.Nil(t, doc.Fields)
}

func TestDeleteOfUnknownIdentifierIsTolerated(t *testing.T) {
	store := projection.NewMemoryStore()

	applied, err := newApplier(t, store).Apply(context.Background(), record("r9", 9, oplog.KindDelete, nil))

	require.NoError(t, err)
	assert.True(t, applied)
	doc := get(t, store)
	assert.True(t, doc.Deleted)
	assert.Equal(t, uint64(9), doc.Version)
}

type flakyStore struct {
	projection.Store
	failures atomic.Int32
}

func (s *flakyStore) Put(ctx context.Context, doc *projection.Document) error {
	if s.failures.Add(-1) >= 0 {
		return blame.StoreFailed("put", errors.New("disk full"))
	}
	return s.Store.Put(ctx, doc)
}

func TestStoreFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: projection.NewMemoryStore()}
	store.failures.Store(1)
	a := newApplier(t, store)
	rec := record("r1", 1, oplog.KindCreate, map[string]any{"name": "Y"})

	_, err := a.Apply(ctx, rec)
	require.Error(t, err)
	assert.True(t, blame.IsComponent(err, constant.ErrStore))

	applied, err := a.Apply(ctx, rec)
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestHandleRejectsUndecodableRecord(t *testing.T) {
	_, err := newApplier(t, projection.NewMemoryStore()).Handle(context.Background(), &rpc.Request{
		Queue: "entity-read",
		Body:  []byte{0xff, 0xff},
	})

	require.Error(t, err)
	assert.True(t, blame.IsComponent(err, constant.ErrProtocol))
}

func TestBoundApplierRetriesUntilStoreRecovers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := memory.NewBroker()
	server := rpc.NewServer(broker)
	t.Cleanup(func() { _ = server.Close() })

	store := &flakyStore{Store: projection.NewMemoryStore()}
	store.failures.Store(2)
	require.NoError(t, newApplier(t, store).Bind(ctx, server, "entity-read"))

	body, err := oplog.Marshal(record("r1", 1, oplog.KindCreate, map[string]any{"name": "Y"}))
	require.NoError(t, err)
	require.NoError(t, broker.Publish(ctx, &events.Message{Queue: "entity-read", MessageID: "r1", Body: body}))

	require.Eventually(t, func() bool {
		doc, err := store.Get(ctx, "entity", "42")
		return err == nil && doc != nil && doc.Fields["name"] == "Y"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, broker.Rejected("entity-read"))
}
