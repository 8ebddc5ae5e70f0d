package oplog_test

import (
	"context"
	"testing"

	"github.com/abhissng/conduit/adapters/events/memory"
	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/blame"
	"github.com/abhissng/conduit/oplog"
	"github.com/abhissng/conduit/stitch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recordMutation = `mutation Rec($op: String!, $id: ID, $data: JSON) {
  record(operation: $op, collection: "entity", identifier: $id, data: $data) { operation collection identifier sequence }
}`

func TestCommandSurfaceRecordsAndReplicates(t *testing.T) {
	ctx := context.Background()
	broker := memory.NewBroker()
	store := oplog.NewMemoryStore()
	l := oplog.NewLog(store, broker, targets)
	require.NoError(t, l.Start(ctx))

	surface, err := oplog.NewCommandSurface("oplog", l, log.NewNopLogger())
	require.NoError(t, err)

	resp := surface.Execute(ctx, &stitch.Request{
		Query:     recordMutation,
		Variables: map[string]any{"op": "update", "id": "42", "data": map[string]any{"name": "X"}},
	})
	require.Empty(t, resp.Errors)
	assert.Equal(t, map[string]any{
		"operation":  "update",
		"collection": "entity",
		"identifier": "42",
		"sequence":   float64(1),
	}, resp.Data["record"])

	for _, q := range targets {
		got := drainQueue(t, broker, q, 1)
		assert.Equal(t, "X", got[0].Data["name"])
	}

	resp = surface.Execute(ctx, &stitch.Request{Query: `{ replicationTargets }`})
	require.Empty(t, resp.Errors)
	assert.Equal(t, []any{targets[0], targets[1]}, resp.Data["replicationTargets"])
}

func TestCommandSurfaceRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	store := oplog.NewMemoryStore()
	l := oplog.NewLog(store, memory.NewBroker(), nil)
	surface, err := oplog.NewCommandSurface("oplog", l, nil)
	require.NoError(t, err)

	resp := surface.Execute(ctx, &stitch.Request{
		Query:     recordMutation,
		Variables: map[string]any{"op": "upsert", "id": "42"},
	})
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, string(blame.ErrorUnknownOperation), resp.Errors[0].Extensions[stitch.ExtensionCode])
	assert.Nil(t, resp.Data["record"])

	resp = surface.Execute(ctx, &stitch.Request{
		Query:     recordMutation,
		Variables: map[string]any{"op": "create", "data": "not an object"},
	})
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, string(blame.ErrorInvalidQuery), resp.Errors[0].Extensions[stitch.ExtensionCode])
	assert.Equal(t, 0, store.Len())
}
