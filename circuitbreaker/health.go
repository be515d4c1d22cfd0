package circuitbreaker

import (
	"sync"
	"time"

	"artifact-proxy/logger"
)

// EndpointHealth tracks the health status of an endpoint
type EndpointHealth struct {
	URL              string    `json:"url"`
	FailureCount     int       `json:"failure_count"`
	SuccessCount     int       `json:"success_count"`
	TotalRequests    int       `json:"total_requests"`
	LastFailureTime  time.Time `json:"last_failure_time"`
	LastSuccessTime  time.Time `json:"last_success_time"`
	CircuitOpen      bool      `json:"circuit_open"`
	NextRetryTime    time.Time `json:"next_retry_time"`
	LastReorderCheck time.Time `json:"last_reorder_check"`
}

// Config controls circuit breaker behavior
type Config struct {
	FailureThreshold   int           `json:"failure_threshold"`    // Number of failures before opening circuit
	BackoffDuration    time.Duration `json:"backoff_duration"`     // How long to wait before retrying failed endpoint
	MaxBackoffDuration time.Duration `json:"max_backoff_duration"` // Maximum backoff time
	ResetTimeout       time.Duration `json:"reset_timeout"`        // Time to reset failure count after success
}

// DefaultConfig returns sensible defaults for circuit breaker
func DefaultConfig() Config {
	return Config{
		FailureThreshold:   2,
		BackoffDuration:    30 * time.Second,
		MaxBackoffDuration: 5 * time.Minute,
		ResetTimeout:       1 * time.Minute,
	}
}

// EventLogger receives circuit state changes as structured events
type EventLogger interface {
	CircuitBreakerEvent(requestID, endpoint, message string, fields map[string]interface{})
}

// HealthManager manages endpoint health tracking
type HealthManager struct {
	config      Config
	healthMap   map[string]*EndpointHealth
	healthMutex sync.RWMutex
	log         logger.Logger
	events      EventLogger
	now         func() time.Time
}

// NewHealthManager creates a new health manager
func NewHealthManager(config Config, log logger.Logger) *HealthManager {
	return &HealthManager{
		config:    config,
		healthMap: make(map[string]*EndpointHealth),
		log:       logger.OrNop(log).WithComponent(logger.ComponentCircuitBreaker),
		now:       time.Now,
	}
}

// SetEventLogger sets the structured logger for circuit state changes
func (hm *HealthManager) SetEventLogger(events EventLogger) {
	hm.events = events
}

// InitializeEndpoints initializes health tracking for all endpoints
func (hm *HealthManager) InitializeEndpoints(endpoints []string) {
	hm.healthMutex.Lock()
	defer hm.healthMutex.Unlock()

	for _, endpoint := range endpoints {
		if _, exists := hm.healthMap[endpoint]; !exists {
			hm.healthMap[endpoint] = &EndpointHealth{URL: endpoint}
		}
	}
}

// IsHealthy checks if an endpoint is available (circuit closed)
func (hm *HealthManager) IsHealthy(endpoint string) bool {
	hm.healthMutex.RLock()
	defer hm.healthMutex.RUnlock()

	health, exists := hm.healthMap[endpoint]
	if !exists {
		return true // Unknown endpoints are assumed healthy
	}

	// An open circuit lets a probe through once the backoff has elapsed
	if health.CircuitOpen {
		return hm.now().After(health.NextRetryTime)
	}
	return true
}

// GetHealthDebug returns debug information about an endpoint's health
func (hm *HealthManager) GetHealthDebug(endpoint string) (failureCount int, circuitOpen bool, nextRetryTime time.Time, exists bool) {
	hm.healthMutex.RLock()
	defer hm.healthMutex.RUnlock()

	health, exists := hm.healthMap[endpoint]
	if !exists {
		return 0, false, time.Time{}, false
	}

	return health.FailureCount, health.CircuitOpen, health.NextRetryTime, true
}

// Snapshot returns a copy of every tracked endpoint's health, for /health
func (hm *HealthManager) Snapshot() []EndpointHealth {
	hm.healthMutex.RLock()
	defer hm.healthMutex.RUnlock()

	out := make([]EndpointHealth, 0, len(hm.healthMap))
	for _, health := range hm.healthMap {
		out = append(out, *health)
	}
	return out
}

// CalculateSuccessRate calculates the success rate for an endpoint
func (hm *HealthManager) CalculateSuccessRate(endpoint string) float64 {
	hm.healthMutex.RLock()
	defer hm.healthMutex.RUnlock()

	health, exists := hm.healthMap[endpoint]
	if !exists || health.TotalRequests == 0 {
		return 0.5 // Default neutral rate for new endpoints
	}

	return float64(health.SuccessCount) / float64(health.TotalRequests)
}
