package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

type recordedEvent struct {
	endpoint string
	message  string
}

type eventRecorder struct{ events []recordedEvent }

func (r *eventRecorder) CircuitBreakerEvent(_, endpoint, message string, _ map[string]interface{}) {
	r.events = append(r.events, recordedEvent{endpoint: endpoint, message: message})
}

func newTestManager() (*HealthManager, *fakeClock, *eventRecorder) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	events := &eventRecorder{}
	hm := NewHealthManager(DefaultConfig(), nil)
	hm.now = clock.now
	hm.SetEventLogger(events)
	return hm, clock, events
}

func TestRecordFailure_OpensCircuitAtThreshold(t *testing.T) {
	hm, clock, events := newTestManager()

	hm.RecordFailure("u1")
	assert.True(t, hm.IsHealthy("u1"), "below threshold")

	hm.RecordFailure("u1")
	assert.False(t, hm.IsHealthy("u1"))

	failures, open, retry, exists := hm.GetHealthDebug("u1")
	assert.True(t, exists)
	assert.True(t, open)
	assert.Equal(t, 2, failures)
	assert.Equal(t, clock.t.Add(30*time.Second), retry)
	assert.Equal(t, []recordedEvent{{endpoint: "u1", message: "circuit opened"}}, events.events)

	clock.t = clock.t.Add(31 * time.Second)
	assert.True(t, hm.IsHealthy("u1"), "probe allowed after backoff")
}

func TestRecordFailure_BackoffIsCapped(t *testing.T) {
	hm, clock, _ := newTestManager()

	for i := 0; i < 20; i++ {
		hm.RecordFailure("u1")
	}

	_, _, retry, _ := hm.GetHealthDebug("u1")
	assert.Equal(t, clock.t.Add(5*time.Minute), retry)
}

func TestRecordSuccess_ClosesCircuit(t *testing.T) {
	hm, _, events := newTestManager()

	hm.RecordFailure("u1")
	hm.RecordFailure("u1")
	hm.RecordSuccess("u1")

	failures, open, _, _ := hm.GetHealthDebug("u1")
	assert.False(t, open)
	assert.Zero(t, failures)
	assert.True(t, hm.IsHealthy("u1"))
	assert.Len(t, events.events, 2)
	assert.Equal(t, "circuit closed", events.events[1].message)
	assert.InDelta(t, 1.0/3.0, hm.CalculateSuccessRate("u1"), 1e-9)
}

func TestSelectHealthyEndpoint(t *testing.T) {
	hm, _, _ := newTestManager()
	endpoints := []string{"u1", "u2", "u3"}
	index := 0

	assert.Equal(t, "u1", hm.SelectHealthyEndpoint(endpoints, &index))
	assert.Equal(t, "u2", hm.SelectHealthyEndpoint(endpoints, &index))

	hm.RecordFailure("u3")
	hm.RecordFailure("u3")
	assert.Equal(t, "u1", hm.SelectHealthyEndpoint(endpoints, &index), "u3 is skipped")

	assert.Empty(t, hm.SelectHealthyEndpoint(nil, &index))
}

func TestSelectHealthyEndpoint_FallbackWhenAllUnhealthy(t *testing.T) {
	hm, _, _ := newTestManager()
	endpoints := []string{"u1", "u2"}
	for _, endpoint := range endpoints {
		hm.RecordFailure(endpoint)
		hm.RecordFailure(endpoint)
	}

	index := 0
	assert.Equal(t, "u1", hm.SelectHealthyEndpoint(endpoints, &index))
	assert.Equal(t, 1, index)
}

func TestReorderBySuccess(t *testing.T) {
	hm, clock, _ := newTestManager()
	hm.InitializeEndpoints([]string{"u1", "u2", "u3"})

	hm.RecordFailure("u1")
	hm.RecordFailure("u1")
	hm.RecordSuccess("u3")
	clock.t = clock.t.Add(10 * time.Minute)

	endpoints := []string{"u1", "u2", "u3"}
	assert.True(t, hm.ReorderBySuccess(endpoints))
	assert.Equal(t, []string{"u3", "u2", "u1"}, endpoints)

	assert.False(t, hm.ReorderBySuccess(endpoints), "within reorder interval")
	assert.False(t, hm.ReorderBySuccess([]string{"solo"}))
}

func TestSnapshot(t *testing.T) {
	hm, _, _ := newTestManager()
	hm.InitializeEndpoints([]string{"u1", "u2"})

	assert.Len(t, hm.Snapshot(), 2)
}
