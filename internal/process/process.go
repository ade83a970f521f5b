// Package process provides the process functions a station drives while in
// Execute. Each one models a unit of domain work (a dwell, a simulated
// move) and cooperates with the machine by polling for signals, so a long
// step can be interrupted mid-way and resumed with its elapsed time
// preserved.
package process

import (
	"context"
	"time"

	"github.com/KevinKickass/PackStationCore/internal/packml"
)

// DefaultPollInterval is the slice length cooperative processes sleep
// between signal polls.
const DefaultPollInterval = 50 * time.Millisecond

// Dwell returns a process that occupies the machine for its duration
// budget, the way a fill or cure step holds real hardware. It sleeps in
// pollInterval slices and checks for pending external signals between
// slices; fault injection stays at the machine's own checkpoints.
func Dwell(pollInterval time.Duration) packml.Process {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	return packml.ProcessFunc(func(ctx context.Context, budget time.Duration, m *packml.Machine) (packml.Signal, error) {
		deadline := time.Now().Add(budget)

		for {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return packml.SignalNone, nil
			}

			if sig := m.Requested(); sig != packml.SignalNone {
				return sig, nil
			}

			slice := pollInterval
			if remaining < slice {
				slice = remaining
			}

			select {
			case <-ctx.Done():
				// Shutdown; run the stop sequence rather than vanish.
				return packml.SignalStop, nil
			case <-time.After(slice):
			}
		}
	})
}

// Move returns a process that simulates travel through a fixed number of
// path segments, splitting the duration budget evenly across them. Each
// segment boundary is a full machine checkpoint, so injected faults can
// fire between segments the way they do between waypoints of a real move.
func Move(segments int, pollInterval time.Duration) packml.Process {
	if segments < 1 {
		segments = 1
	}
	dwell := Dwell(pollInterval)

	return packml.ProcessFunc(func(ctx context.Context, budget time.Duration, m *packml.Machine) (packml.Signal, error) {
		perSegment := budget / time.Duration(segments)

		for i := 0; i < segments; i++ {
			if i > 0 {
				if sig := m.Checkpoint(); sig != packml.SignalNone {
					return sig, nil
				}
			}
			if sig, err := dwell.Execute(ctx, perSegment, m); sig != packml.SignalNone || err != nil {
				return sig, err
			}
		}
		return packml.SignalNone, nil
	})
}
