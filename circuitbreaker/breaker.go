package circuitbreaker

import (
	"time"
)

// RecordFailure marks an endpoint as failed and potentially opens its circuit
func (hm *HealthManager) RecordFailure(endpoint string) {
	hm.healthMutex.Lock()
	defer hm.healthMutex.Unlock()

	health, exists := hm.healthMap[endpoint]
	if !exists {
		health = &EndpointHealth{URL: endpoint}
		hm.healthMap[endpoint] = health
	}

	now := hm.now()
	health.FailureCount++
	health.TotalRequests++
	health.LastFailureTime = now

	if health.FailureCount < hm.config.FailureThreshold {
		hm.log.Warn("⚠️ Endpoint failure recorded: %s (failures: %d/%d)",
			endpoint, health.FailureCount, hm.config.FailureThreshold)
		return
	}

	// Linear backoff per failure over the threshold, capped at max
	failuresOverThreshold := health.FailureCount - hm.config.FailureThreshold + 1
	backoff := time.Duration(int64(hm.config.BackoffDuration) * int64(failuresOverThreshold))
	if backoff > hm.config.MaxBackoffDuration {
		backoff = hm.config.MaxBackoffDuration
	}

	health.CircuitOpen = true
	health.NextRetryTime = now.Add(backoff)

	hm.log.Warn("🚨 Circuit breaker opened for endpoint %s (failures: %d, retry in: %v)",
		endpoint, health.FailureCount, backoff)
	if hm.events != nil {
		hm.events.CircuitBreakerEvent("", endpoint, "circuit opened", map[string]interface{}{
			"failures": health.FailureCount,
			"backoff":  backoff.String(),
		})
	}
}

// RecordSuccess marks an endpoint as successful and potentially closes its circuit
func (hm *HealthManager) RecordSuccess(endpoint string) {
	hm.healthMutex.Lock()
	defer hm.healthMutex.Unlock()

	health, exists := hm.healthMap[endpoint]
	if !exists {
		health = &EndpointHealth{URL: endpoint}
		hm.healthMap[endpoint] = health
	}

	health.SuccessCount++
	health.TotalRequests++
	health.LastSuccessTime = hm.now()

	switch {
	case health.CircuitOpen:
		health.CircuitOpen = false
		health.FailureCount = 0
		health.NextRetryTime = time.Time{}
		hm.log.Info("✅ Circuit breaker closed for endpoint %s (recovered)", endpoint)
		if hm.events != nil {
			hm.events.CircuitBreakerEvent("", endpoint, "circuit closed", nil)
		}
	case health.FailureCount > 0:
		health.FailureCount = 0
		hm.log.Info("✅ Endpoint recovered: %s (failure count reset)", endpoint)
	}
}

// SelectHealthyEndpoint returns the next healthy endpoint from a list, advancing
// currentIndex round-robin. With no healthy endpoint it falls back to the next one.
func (hm *HealthManager) SelectHealthyEndpoint(endpoints []string, currentIndex *int) string {
	if len(endpoints) == 0 {
		return ""
	}
	if *currentIndex >= len(endpoints) || *currentIndex < 0 {
		*currentIndex = 0
	}

	for attempts := 0; attempts < len(endpoints); attempts++ {
		endpoint := endpoints[*currentIndex]
		*currentIndex = (*currentIndex + 1) % len(endpoints)

		if hm.IsHealthy(endpoint) {
			return endpoint
		}

		failureCount, circuitOpen, nextRetry, _ := hm.GetHealthDebug(endpoint)
		hm.log.Debug("⚠️ Skipping unhealthy endpoint: %s (failures: %d, circuit: %v, retry: %v)",
			endpoint, failureCount, circuitOpen, nextRetry)
	}

	endpoint := endpoints[*currentIndex]
	*currentIndex = (*currentIndex + 1) % len(endpoints)
	hm.log.Warn("⚠️ No healthy endpoints found, using fallback: %s", endpoint)
	return endpoint
}
