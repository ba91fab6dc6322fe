package observability

import (
	"context"
	"time"
)

// Pinger is the reachability probe every storage backend provides.
type Pinger interface {
	Ping(ctx context.Context) error
}

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus is the result of a dependency check.
type HealthStatus struct {
	Status    string        `json:"status"`
	Latency   time.Duration `json:"latency_ms"`
	Message   string        `json:"message,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// HealthChecker probes the storage backend with a bounded timeout.
type HealthChecker struct {
	store   Pinger
	timeout time.Duration
}

// NewHealthChecker creates a health checker over the given store.
func NewHealthChecker(store Pinger, timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthChecker{store: store, timeout: timeout}
}

// Check probes the store and reports its status.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	status := HealthStatus{Status: StatusHealthy, Timestamp: start}
	err := h.store.Ping(ctx)
	status.Latency = time.Since(start) / time.Millisecond

	if err != nil {
		status.Status = StatusUnhealthy
		status.Message = err.Error()
	}
	return status
}

// Healthy reports whether the store is currently reachable.
func (h *HealthChecker) Healthy(ctx context.Context) bool {
	return h.Check(ctx).Status == StatusHealthy
}
