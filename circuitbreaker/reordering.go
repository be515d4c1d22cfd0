package circuitbreaker

import (
	"sort"
	"time"
)

const reorderInterval = 5 * time.Minute

// endpointScore represents an endpoint with its performance metrics
type endpointScore struct {
	url         string
	successRate float64
	isHealthy   bool
}

// ReorderBySuccess sorts endpoints in place, healthy first and then by success
// rate, at most once per reorder interval. It reports whether the order changed.
func (hm *HealthManager) ReorderBySuccess(endpoints []string) bool {
	if len(endpoints) <= 1 {
		return false
	}
	now := hm.now()

	hm.healthMutex.RLock()
	shouldReorder := len(hm.healthMap) == 0
	for _, health := range hm.healthMap {
		if now.Sub(health.LastReorderCheck) > reorderInterval {
			shouldReorder = true
			break
		}
	}
	hm.healthMutex.RUnlock()

	if !shouldReorder {
		return false
	}

	scores := make([]endpointScore, len(endpoints))
	for i, endpoint := range endpoints {
		scores[i] = endpointScore{
			url:         endpoint,
			successRate: hm.CalculateSuccessRate(endpoint),
			isHealthy:   hm.IsHealthy(endpoint),
		}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].isHealthy != scores[j].isHealthy {
			return scores[i].isHealthy
		}
		return scores[i].successRate > scores[j].successRate
	})

	hasChanged := false
	for i, score := range scores {
		if endpoints[i] != score.url {
			hasChanged = true
		}
		endpoints[i] = score.url
	}

	hm.healthMutex.Lock()
	for _, health := range hm.healthMap {
		health.LastReorderCheck = now
	}
	hm.healthMutex.Unlock()

	if hasChanged {
		hm.log.Info("🔄 Reordered upstream endpoints by success rate:")
		for i, score := range scores {
			hm.log.Info("   %d. %s (success rate: %.2f%%, healthy: %t)",
				i+1, score.url, score.successRate*100, score.isHealthy)
		}
	}

	return hasChanged
}
