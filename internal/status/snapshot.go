// internal/status/snapshot.go
package status

// Snapshot represents exactly what the writer is allowed to deliver.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Health         uint16
	LastErrorCode  uint16
	SecondsInError uint16
	CycleSuccesses uint16
	CycleErrors    uint16
}

// InError reports whether seconds_in_error is counting.
func (s Snapshot) InError() bool {
	return s.Health == HealthError || s.Health == HealthPartial
}
