package respcache_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abhissng/conduit/adapters/redis"
	"github.com/abhissng/conduit/respcache"
	"github.com/abhissng/conduit/stitch"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingExecutor struct {
	calls atomic.Int32
	resp  *stitch.Response
	err   error
}

func (e *countingExecutor) Execute(context.Context, *stitch.Request) (*stitch.Response, error) {
	e.calls.Add(1)
	return e.resp, e.err
}

func entityResponse() *stitch.Response {
	return &stitch.Response{Data: map[string]any{
		"entity": map[string]any{"name": "X", "size": 3.5, "tags": []any{"a", "b"}},
	}}
}

func lruCache(t *testing.T, opts ...respcache.Option) *respcache.Cache {
	t.Helper()
	store := respcache.NewLRUStore(16)
	t.Cleanup(store.Close)
	return respcache.New(store, opts...)
}

func encode(t *testing.T, resp *stitch.Response) string {
	t.Helper()
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	return string(raw)
}

var entityQuery = &stitch.Request{Query: `{ entity(id: "42") { name size tags } }`}

func TestRepeatedQueryHitsBackendOnce(t *testing.T) {
	ctx := context.Background()
	backend := &countingExecutor{resp: entityResponse()}
	exec := lruCache(t).Wrap("entities", backend)

	first, err := exec.Execute(ctx, entityQuery)
	require.NoError(t, err)
	second, err := exec.Execute(ctx, entityQuery)
	require.NoError(t, err)

	assert.Equal(t, int32(1), backend.calls.Load())
	assert.Equal(t, encode(t, first), encode(t, second))
	assert.JSONEq(t, encode(t, entityResponse()), encode(t, first))
}

func TestLiteralAndVariableShareKey(t *testing.T) {
	literal, ok, err := respcache.Key("entities", &stitch.Request{Query: `{ entity(id: "42") { name } }`})
	require.NoError(t, err)
	require.True(t, ok)

	variable, ok, err := respcache.Key("entities", &stitch.Request{
		Query:     `query ($id: ID!) { entity(id: $id) { name } }`,
		Variables: map[string]any{"id": "42"},
	})
	require.NoError(t, err)
	require.True(t, ok)

	defaulted, _, err := respcache.Key("entities", &stitch.Request{
		Query: `query ($id: ID! = "42") { entity(id: $id) { name } }`,
	})
	require.NoError(t, err)

	assert.Equal(t, literal, variable)
	assert.Equal(t, literal, defaulted)
}

func TestKeyDistinguishesRequests(t *testing.T) {
	base := `{ entity(id: "42") { name } }`
	others := map[string]string{
		"argument":  `{ entity(id: "43") { name } }`,
		"selection": `{ entity(id: "42") { name size } }`,
		"alias":     `{ e: entity(id: "42") { name } }`,
	}
	want, _, err := respcache.Key("entities", &stitch.Request{Query: base})
	require.NoError(t, err)

	other, _, err := respcache.Key("search", &stitch.Request{Query: base})
	require.NoError(t, err)
	assert.NotEqual(t, want, other, "service")

	for name, q := range others {
		got, _, err := respcache.Key("entities", &stitch.Request{Query: q})
		require.NoError(t, err)
		assert.NotEqual(t, want, got, name)
	}
}

func TestMutationsBypassCache(t *testing.T) {
	ctx := context.Background()
	req := &stitch.Request{Query: `mutation { rename(id: "42", name: "X") { name } }`}

	_, ok, err := respcache.Key("entities", req)
	require.NoError(t, err)
	assert.False(t, ok)

	backend := &countingExecutor{resp: entityResponse()}
	exec := lruCache(t).Wrap("entities", backend)
	for i := 0; i < 2; i++ {
		_, err := exec.Execute(ctx, req)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), backend.calls.Load())
}

func TestFailuresAreNotCached(t *testing.T) {
	ctx := context.Background()
	cases := map[string]*countingExecutor{
		"graphql error":  {resp: &stitch.Response{Errors: []*stitch.Error{{Message: "not found"}}}},
		"executor error": {err: errors.New("backend down")},
	}
	for name, backend := range cases {
		t.Run(name, func(t *testing.T) {
			exec := lruCache(t).Wrap("entities", backend)
			_, _ = exec.Execute(ctx, entityQuery)
			_, _ = exec.Execute(ctx, entityQuery)
			assert.Equal(t, int32(2), backend.calls.Load())
		})
	}
}

func TestHitAuthorizerCanRefuseCachedResponse(t *testing.T) {
	ctx := context.Background()
	backend := &countingExecutor{resp: entityResponse()}
	deny := func(_ context.Context, req *stitch.Request, _ *stitch.Response) error {
		if req.Context["role"] != "admin" {
			return errors.New("forbidden")
		}
		return nil
	}
	exec := lruCache(t, respcache.WithHitAuthorizer(deny)).Wrap("entities", backend)

	admin := &stitch.Request{Query: entityQuery.Query, Context: map[string]any{"role": "admin"}}
	guest := &stitch.Request{Query: entityQuery.Query, Context: map[string]any{"role": "guest"}}

	_, err := exec.Execute(ctx, admin)
	require.NoError(t, err)
	_, err = exec.Execute(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, int32(1), backend.calls.Load())

	_, err = exec.Execute(ctx, guest)
	require.NoError(t, err)
	assert.Equal(t, int32(2), backend.calls.Load())
}

func TestEntriesExpire(t *testing.T) {
	ctx := context.Background()
	backend := &countingExecutor{resp: entityResponse()}
	exec := lruCache(t, respcache.WithTTL(30*time.Millisecond)).Wrap("entities", backend)

	_, err := exec.Execute(ctx, entityQuery)
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	_, err = exec.Execute(ctx, entityQuery)
	require.NoError(t, err)

	assert.Equal(t, int32(2), backend.calls.Load())
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	rm, err := redis.NewRedisManager(ctx, redis.Config{Addr: srv.Addr(), KeyPrefix: "gw:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rm.Close() })

	backend := &countingExecutor{resp: entityResponse()}
	exec := respcache.New(respcache.NewRedisStore(rm)).Wrap("entities", backend)

	first, err := exec.Execute(ctx, entityQuery)
	require.NoError(t, err)
	second, err := exec.Execute(ctx, entityQuery)
	require.NoError(t, err)
	assert.Equal(t, int32(1), backend.calls.Load())
	assert.Equal(t, encode(t, first), encode(t, second))

	key, _, err := respcache.Key("entities", entityQuery)
	require.NoError(t, err)
	assert.True(t, srv.Exists("gw:"+key))

	srv.FastForward(respcache.DefaultTTL + time.Second)
	_, err = exec.Execute(ctx, entityQuery)
	require.NoError(t, err)
	assert.Equal(t, int32(2), backend.calls.Load())
}
