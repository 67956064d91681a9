package dispatch

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateIdle:        "idle",
		StatePolling:     "polling",
		StateMatching:    "matching",
		StateDispatching: "dispatching",
		StateSleeping:    "sleeping",
		State(42):        "unknown",
	}
	for s, want := range tests {
		assert.Equal(t, want, s.String())
	}
}

func TestSetEnabled_UpdatesGauge(t *testing.T) {
	p := &Pipeline{}

	p.SetEnabled(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(enabledGauge))

	p.SetEnabled(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(enabledGauge))
}

func TestSetState_UpdatesGauge(t *testing.T) {
	p := &Pipeline{}

	p.setState(StateDispatching)

	assert.Equal(t, StateDispatching, p.State())
	assert.Equal(t, float64(StateDispatching), testutil.ToFloat64(stateGauge))
}
