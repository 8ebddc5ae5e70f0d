package rpc_test

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/abhissng/conduit/adapters/events"
	"github.com/abhissng/conduit/adapters/events/memory"
	"github.com/abhissng/conduit/blame"
	"github.com/abhissng/conduit/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedClient(t *testing.T, broker events.Broker) *rpc.Client {
	t.Helper()
	client := rpc.NewClient(broker)
	require.NoError(t, client.Start(context.Background()))
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func reply(t *testing.T, broker events.Broker, req *events.Message, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	body, err := json.Marshal(rpc.Reply{Data: raw})
	require.NoError(t, err)
	require.NoError(t, broker.Publish(context.Background(), &events.Message{
		Queue:         req.ReplyTo,
		CorrelationID: req.CorrelationID,
		Body:          body,
	}))
}

func TestCallBeforeStartFailsFast(t *testing.T) {
	client := rpc.NewClient(memory.NewBroker())

	_, err := client.Call(context.Background(), "rpc.events", map[string]int{"n": 1})
	require.Error(t, err)
	assert.True(t, blame.IsCode(err, blame.ErrorClientNotStarted))
}

func TestConcurrentCallsResolveOutOfOrder(t *testing.T) {
	ctx := context.Background()
	broker := memory.NewBroker()
	require.NoError(t, broker.DeclareQueue(ctx, "rpc.square", false))

	const n = 25
	received := make(chan *events.Message, n)
	_, err := broker.Consume(ctx, "rpc.square", events.ConsumeOptions{AutoAck: true}, func(_ context.Context, d events.Delivery) {
		received <- d.Message()
	})
	require.NoError(t, err)

	client := startedClient(t, broker)

	results := make([]int, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			errs[i] = client.Invoke(ctx, "rpc.square", i, &results[i])
		}(i)
	}

	requests := make([]*events.Message, 0, n)
	for len(requests) < n {
		select {
		case m := <-received:
			requests = append(requests, m)
		case <-time.After(5 * time.Second):
			t.Fatalf("received %d of %d requests", len(requests), n)
		}
	}

	seen := map[string]bool{}
	for _, m := range requests {
		assert.False(t, seen[m.CorrelationID], "correlation id %s reused", m.CorrelationID)
		seen[m.CorrelationID] = true
	}

	// answer in reverse arrival order
	for i := len(requests) - 1; i >= 0; i-- {
		var v int
		require.NoError(t, json.Unmarshal(requests[i].Body, &v))
		reply(t, broker, requests[i], v*v)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, i*i, results[i])
	}
	assert.Zero(t, client.Pending())
}

func TestWaitTimeoutRemovesPendingCall(t *testing.T) {
	broker := memory.NewBroker()
	client := startedClient(t, broker)

	// nobody declared the queue, so the call is never answered
	f, err := client.Call(context.Background(), "rpc.nowhere", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, client.Pending())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.Wait(ctx)
	require.Error(t, err)
	assert.True(t, blame.IsCode(err, blame.ErrorCallTimeout))
	assert.Zero(t, client.Pending())

	// a late reply for the abandoned call is dropped
	reply(t, broker, &events.Message{ReplyTo: client.ReplyQueue(), CorrelationID: f.CorrelationID()}, 1)
	_, err = f.Wait(context.Background())
	assert.True(t, blame.IsCode(err, blame.ErrorCallTimeout))
}

func TestInvokeAppliesDefaultTimeout(t *testing.T) {
	client := rpc.NewClient(memory.NewBroker(), rpc.WithCallTimeout(20*time.Millisecond))
	require.NoError(t, client.Start(context.Background()))
	defer client.Close()

	err := client.Invoke(context.Background(), "rpc.nowhere", nil, nil)
	assert.True(t, blame.IsCode(err, blame.ErrorCallTimeout))
}

func TestCloseFailsPendingCalls(t *testing.T) {
	client := rpc.NewClient(memory.NewBroker())
	require.NoError(t, client.Start(context.Background()))

	futures := make([]*rpc.Future, 3)
	for i := range futures {
		f, err := client.Call(context.Background(), "rpc.nowhere", i)
		require.NoError(t, err)
		futures[i] = f
	}

	require.NoError(t, client.Close())
	for _, f := range futures {
		_, err := f.Wait(context.Background())
		assert.True(t, blame.IsCode(err, blame.ErrorClientClosed))
	}

	_, err := client.Call(context.Background(), "rpc.nowhere", nil)
	assert.True(t, blame.IsCode(err, blame.ErrorClientClosed))
}

func TestDomainErrorPassesThrough(t *testing.T) {
	ctx := context.Background()
	broker := memory.NewBroker()
	server := rpc.NewServer(broker)
	defer server.Close()

	require.NoError(t, server.Serve(ctx, "rpc.entities", func(_ context.Context, req *rpc.Request) (any, error) {
		var q struct {
			ID string `json:"id"`
		}
		if err := req.Decode(&q); err != nil {
			return nil, err
		}
		return nil, blame.NotFound("entity", q.ID)
	}, false))

	client := startedClient(t, broker)
	err := client.Invoke(ctx, "rpc.entities", map[string]string{"id": "42"}, nil)
	require.Error(t, err)
	assert.True(t, blame.IsCode(err, blame.ErrorNotFound))

	b := blame.AsBlame(err)
	assert.Equal(t, "42", b.FetchFields()["identifier"])
	assert.Equal(t, "entity 42 not found", b.FetchMessage())
}

func TestUnknownCorrelationIsDropped(t *testing.T) {
	broker := memory.NewBroker()
	client := startedClient(t, broker)

	f, err := client.Call(context.Background(), "rpc.nowhere", nil)
	require.NoError(t, err)

	other := strconv.Itoa(1000)
	reply(t, broker, &events.Message{ReplyTo: client.ReplyQueue(), CorrelationID: other}, "stray")

	select {
	case <-f.Done():
		t.Fatal("stray reply resolved an unrelated call")
	case <-time.After(30 * time.Millisecond):
	}
	assert.Equal(t, 1, client.Pending())
}
