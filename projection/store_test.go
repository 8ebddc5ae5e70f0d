package projection_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abhissng/conduit/adapters/mongo"
	"github.com/abhissng/conduit/projection"
	"github.com/abhissng/conduit/utils/random"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]projection.Store {
	t.Helper()
	ctx := context.Background()
	out := map[string]projection.Store{"memory": projection.NewMemoryStore()}

	lite, err := projection.OpenSQLite(ctx, filepath.Join(t.TempDir(), "projection.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = lite.Close() })
	out["sqlite"] = lite

	if uri := os.Getenv("CONDUIT_TEST_MONGO_URI"); uri != "" {
		m, err := mongo.NewMongoManager(mongo.WithURI(uri, "conduit_test"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = m.Disconnect(context.Background()) })
		ms, err := projection.NewMongoStore(ctx, m, "projections_"+random.GenerateUUIDString())
		require.NoError(t, err)
		out["mongo"] = ms
	}
	return out
}

func jsonOf(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}

func TestStores(t *testing.T) {
	updated := time.Date(2026, 3, 4, 5, 6, 7, 8_000_000, time.UTC)

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			missing, err := store.Get(ctx, "entity", "nope")
			require.NoError(t, err)
			assert.Nil(t, missing)

			docs := []*projection.Document{
				{Collection: "entity", ID: "42", Fields: map[string]any{"name": "X", "size": 3.5}, Relations: map[string][]string{"tags": {"a", "b"}}, Version: 7, UpdatedAt: updated},
				{Collection: "entity", ID: "41", Fields: map[string]any{"name": "W"}, Version: 2, UpdatedAt: updated},
				{Collection: "entity", ID: "40", Version: 3, Deleted: true, UpdatedAt: updated},
				{Collection: "event", ID: "1", Fields: map[string]any{"kind": "created"}, Version: 1, UpdatedAt: updated},
			}
			for _, doc := range docs {
				require.NoError(t, store.Put(ctx, doc))
			}

			got, err := store.Get(ctx, "entity", "42")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "entity", got.Collection)
			assert.Equal(t, "42", got.ID)
			assert.JSONEq(t, jsonOf(t, docs[0].Fields), jsonOf(t, got.Fields))
			assert.Equal(t, []string{"a", "b"}, got.Related("tags"))
			assert.Equal(t, uint64(7), got.Version)
			assert.True(t, updated.Equal(got.UpdatedAt))

			tomb, err := store.Get(ctx, "entity", "40")
			require.NoError(t, err)
			require.NotNil(t, tomb)
			assert.True(t, tomb.Deleted)

			live, err := store.List(ctx, "entity", 0)
			require.NoError(t, err)
			require.Len(t, live, 2)
			assert.Equal(t, "41", live[0].ID)
			assert.Equal(t, "42", live[1].ID)

			limited, err := store.List(ctx, "entity", 1)
			require.NoError(t, err)
			require.Len(t, limited, 1)
			assert.Equal(t, "41", limited[0].ID)

			docs[1].Fields["name"] = "V"
			docs[1].Version = 5
			require.NoError(t, store.Put(ctx, docs[1]))
			got, err = store.Get(ctx, "entity", "41")
			require.NoError(t, err)
			assert.Equal(t, "V", got.Fields["name"])
			assert.Equal(t, uint64(5), got.Version)
		})
	}
}
