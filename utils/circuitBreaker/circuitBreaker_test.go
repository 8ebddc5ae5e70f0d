package circuitBreaker_test

import (
	"errors"
	"testing"

	"github.com/abhissng/conduit/utils/circuitBreaker"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var transitions []gobreaker.State
	cb := circuitBreaker.NewCircuitBreaker(
		circuitBreaker.WithName("test"),
		circuitBreaker.WithConsecutiveFailures(2),
		circuitBreaker.WithOnStateChange(func(_ string, _, to gobreaker.State) {
			transitions = append(transitions, to)
		}),
	)

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		_, err := cb.Execute(func() (any, error) { return nil, boom })
		assert.ErrorIs(t, err, boom)
	}

	_, err := cb.Execute(func() (any, error) { return "unreached", nil })
	assert.True(t, circuitBreaker.IsOpen(err))
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)
	assert.False(t, circuitBreaker.IsOpen(boom))
}
