package prometheus_test

import (
	"testing"
	"time"

	"github.com/abhissng/conduit/adapters/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsUsePrivateRegistry(t *testing.T) {
	first := prometheus.NewMetricsCollector(prometheus.WithServiceName("conduit-gateway"))
	// a second collector with the same namespace must not collide
	second := prometheus.NewMetricsCollector(prometheus.WithServiceName("conduit-gateway"))

	first.ObserveCall("rpc.events", "ok", 10*time.Millisecond)
	first.ObserveCall("rpc.events", "ok", 20*time.Millisecond)
	second.ObserveCacheLookup("hit")

	families, err := first.Registry().Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["conduit_gateway_rpc_calls_total"])
	assert.True(t, names["conduit_gateway_rpc_call_duration_seconds"])
	assert.False(t, names["conduit_gateway_cache_lookups_total"], "no lookups recorded on first collector")

	count, err := testutil.GatherAndCount(second.Registry(), "conduit_gateway_cache_lookups_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilCollectorIsNoop(t *testing.T) {
	var mc *prometheus.MetricsCollector
	assert.NotPanics(t, func() {
		mc.ObserveCall("q", "ok", time.Second)
		mc.ObserveServed("q", "ok")
		mc.ObservePublish("ok")
		mc.ObserveApply("create", "ok")
		mc.ObserveCacheLookup("miss")
		mc.ObserveHTTP("POST", "/graphql", "200", time.Second, 10)
	})
}
