package resilience

import (
	"sync"

	"realtime-backend/internal/types"
)

// DegradationManager is the process-wide registry of currently-degraded
// services. It is constructed once by the composition root and injected
// everywhere a component may need to report or consult degraded status.
type DegradationManager struct {
	mu      sync.RWMutex
	reasons map[string]string
}

// NewDegradationManager builds an empty registry; nothing is degraded.
func NewDegradationManager() *DegradationManager {
	return &DegradationManager{reasons: make(map[string]string)}
}

// MarkDegraded records that service is currently degraded for reason. A nil
// receiver (no manager wired) is a no-op, so callers on the hot path never
// need a separate nil check.
func (d *DegradationManager) MarkDegraded(service, reason string) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reasons[service] = reason
}

// Recover clears a service's degraded flag. Nil-safe, see MarkDegraded.
func (d *DegradationManager) Recover(service string) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.reasons, service)
}

// IsDegraded reports whether service is currently flagged. Nil-safe.
func (d *DegradationManager) IsDegraded(service string) bool {
	if d == nil {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.reasons[service]
	return ok
}

// GetSystemHealth returns the aggregate health snapshot. Nil-safe: a gateway
// built without a manager reports healthy.
func (d *DegradationManager) GetSystemHealth() types.SystemHealth {
	if d == nil {
		return types.SystemHealth{Status: "healthy"}
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := "healthy"
	services := make([]string, 0, len(d.reasons))
	reasons := make(map[string]string, len(d.reasons))
	for svc, reason := range d.reasons {
		services = append(services, svc)
		reasons[svc] = reason
		status = "degraded"
	}
	return types.SystemHealth{
		Status:           status,
		DegradedServices: services,
		Reasons:          reasons,
	}
}
