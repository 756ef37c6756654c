package monitor

import (
	"fmt"

	"github.com/google/uuid"
)

// Severity grades an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert kinds.
const (
	AlertMemoryPressure     = "memory_pressure"
	AlertInvalidationRate   = "invalidation_rate"
	AlertSlowOperations     = "slow_operations"
	AlertRemoteUnreachable  = "remote_unreachable"
)

// Alert is derived on read by comparing current statistics against the
// configured thresholds. Alerts are never persisted.
type Alert struct {
	ID       string         `json:"id"`
	Severity Severity       `json:"severity"`
	Kind     string         `json:"kind"`
	Message  string         `json:"message"`
	Context  map[string]any `json:"context,omitempty"`
}

func newAlert(severity Severity, kind, message string, ctx map[string]any) Alert {
	return Alert{
		ID:       uuid.NewString(),
		Severity: severity,
		Kind:     kind,
		Message:  message,
		Context:  ctx,
	}
}

// alertsLocked derives the current alert set from an already-built report.
// Callers hold m.mu.
func (m *Monitor) alertsLocked(rep Report) []Alert {
	var alerts []Alert

	mem := rep.Memory.CurrentL1Bytes
	switch {
	case mem >= m.cfg.MemoryCriticalBytes:
		alerts = append(alerts, newAlert(SeverityCritical, AlertMemoryPressure,
			fmt.Sprintf("L1 memory use %d bytes exceeds critical threshold", mem),
			map[string]any{"l1_bytes": mem, "threshold": m.cfg.MemoryCriticalBytes}))
	case mem >= m.cfg.MemoryWarnBytes:
		alerts = append(alerts, newAlert(SeverityWarning, AlertMemoryPressure,
			fmt.Sprintf("L1 memory use %d bytes exceeds warning threshold", mem),
			map[string]any{"l1_bytes": mem, "threshold": m.cfg.MemoryWarnBytes}))
	}

	switch {
	case rep.InvalidationRate >= m.cfg.InvalidationCriticalPerHour:
		alerts = append(alerts, newAlert(SeverityCritical, AlertInvalidationRate,
			fmt.Sprintf("invalidation rate %.1f/hour exceeds critical threshold", rep.InvalidationRate),
			map[string]any{"rate": rep.InvalidationRate, "threshold": m.cfg.InvalidationCriticalPerHour}))
	case rep.InvalidationRate >= m.cfg.InvalidationWarnPerHour:
		alerts = append(alerts, newAlert(SeverityWarning, AlertInvalidationRate,
			fmt.Sprintf("invalidation rate %.1f/hour exceeds warning threshold", rep.InvalidationRate),
			map[string]any{"rate": rep.InvalidationRate, "threshold": m.cfg.InvalidationWarnPerHour}))
	}

	if n := len(rep.SlowOperations); n > 0 {
		alerts = append(alerts, newAlert(SeverityInfo, AlertSlowOperations,
			fmt.Sprintf("%d operations above %.1fx their category mean", n, m.cfg.SlowOpMultiplier),
			map[string]any{"count": n}))
	}

	if !rep.RemoteReachable && rep.RemoteNote != "" {
		alerts = append(alerts, newAlert(SeverityWarning, AlertRemoteUnreachable,
			"remote cache tier unreachable, serving from L1 only",
			map[string]any{"note": rep.RemoteNote}))
	}

	return alerts
}
