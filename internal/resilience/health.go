package resilience

import (
	"context"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Name    string        `json:"name"`
	Status  HealthStatus  `json:"status"`
	Message string        `json:"message,omitempty"`
	Latency time.Duration `json:"latency_ns"`
}

// HealthCheck checks one component.
type HealthCheck func(ctx context.Context) ComponentHealth

// SystemHealth is the aggregated result of all checks.
type SystemHealth struct {
	Status     HealthStatus      `json:"status"`
	Uptime     string            `json:"uptime"`
	Components []ComponentHealth `json:"components"`
}

// HealthMonitor runs registered checks on demand.
type HealthMonitor struct {
	mu        sync.RWMutex
	startTime time.Time
	checks    map[string]HealthCheck
}

// NewHealthMonitor creates an empty monitor.
func NewHealthMonitor() *HealthMonitor {
	return &HealthMonitor{
		startTime: time.Now(),
		checks:    make(map[string]HealthCheck),
	}
}

// RegisterComponent adds or replaces a named check.
func (m *HealthMonitor) RegisterComponent(name string, check HealthCheck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// Check runs every registered check. The overall status is the worst
// component status.
func (m *HealthMonitor) Check(ctx context.Context) SystemHealth {
	m.mu.RLock()
	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	checks := make(map[string]HealthCheck, len(m.checks))
	for k, v := range m.checks {
		checks[k] = v
	}
	m.mu.RUnlock()
	sort.Strings(names)

	health := SystemHealth{
		Status:     HealthStatusHealthy,
		Uptime:     time.Since(m.startTime).Round(time.Second).String(),
		Components: make([]ComponentHealth, 0, len(names)),
	}
	for _, name := range names {
		start := time.Now()
		c := checks[name](ctx)
		c.Name = name
		if c.Latency == 0 {
			c.Latency = time.Since(start)
		}
		health.Components = append(health.Components, c)
		health.Status = worse(health.Status, c.Status)
	}
	return health
}

func worse(a, b HealthStatus) HealthStatus {
	rank := map[HealthStatus]int{HealthStatusHealthy: 0, HealthStatusDegraded: 1, HealthStatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// CircuitHealthCheck reports an open circuit as degraded: requests can
// still be served from other sources, just not from that upstream.
func CircuitHealthCheck(cb *CircuitBreaker) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		switch cb.State() {
		case CircuitOpen:
			return ComponentHealth{Status: HealthStatusDegraded, Message: "circuit open"}
		case CircuitHalfOpen:
			return ComponentHealth{Status: HealthStatusDegraded, Message: "circuit half-open"}
		}
		return ComponentHealth{Status: HealthStatusHealthy}
	}
}

// DatabaseHealthCheck creates a health check for a database.
func DatabaseHealthCheck(ping func(ctx context.Context) error) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		start := time.Now()
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := ping(ctx); err != nil {
			return ComponentHealth{
				Status:  HealthStatusUnhealthy,
				Message: err.Error(),
				Latency: time.Since(start),
			}
		}
		return ComponentHealth{Status: HealthStatusHealthy, Latency: time.Since(start)}
	}
}
