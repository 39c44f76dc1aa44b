// internal/orchestrator/runner.go
package orchestrator

import (
	"context"
	"time"
)

// Run polls once immediately, then on every interval tick, and emits each
// CycleResult on out. No overlap: ticks that fire during a cycle are dropped.
// Returns when ctx ends; an aborted cycle emits nothing.
func (o *Orchestrator) Run(ctx context.Context, out chan<- CycleResult) {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		res, err := o.Cycle(ctx)
		if err == nil {
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
