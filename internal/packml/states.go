package packml

import "time"

// State is a PackML equipment state. Idle is both the initial state and the
// state every cycle returns to, whether it completes, stops or aborts.
type State string

const (
	StateIdle         State = "idle"
	StateStarting     State = "starting"
	StateExecute      State = "execute"
	StateHolding      State = "holding"
	StateHeld         State = "held"
	StateUnholding    State = "unholding"
	StateSuspending   State = "suspending"
	StateSuspended    State = "suspended"
	StateUnsuspending State = "unsuspending"
	StateCompleting   State = "completing"
	StateComplete     State = "complete"
	StateResetting    State = "resetting"
	StateStopping     State = "stopping"
	StateStopped      State = "stopped"
	StateAborting     State = "aborting"
	StateAborted      State = "aborted"
	StateClearing     State = "clearing"
)

// Signal is an internal control-flow signal. Signals are values checked at
// defined checkpoints, never errors; the machine absorbs all of them and
// still returns to Idle.
type Signal int

const (
	SignalNone Signal = iota
	SignalAbort
	SignalStop
	SignalHold
	SignalSuspend
)

func (s Signal) String() string {
	switch s {
	case SignalNone:
		return "none"
	case SignalAbort:
		return "abort"
	case SignalStop:
		return "stop"
	case SignalHold:
		return "hold"
	case SignalSuspend:
		return "suspend"
	default:
		return "unknown"
	}
}

// ParseSignal maps an external request string to a Signal.
func ParseSignal(s string) (Signal, bool) {
	switch s {
	case "abort":
		return SignalAbort, true
	case "stop":
		return SignalStop, true
	case "hold":
		return SignalHold, true
	case "suspend":
		return SignalSuspend, true
	default:
		return SignalNone, false
	}
}

// Snapshot is the externally published view of one machine after a
// transition. The active command identifier is never part of Queued; on
// transitions into Idle or Resetting it is cleared before the snapshot is
// built.
type Snapshot struct {
	StationID string    `json:"station_id"`
	State     State     `json:"state"`
	ActiveID  string    `json:"active_id,omitempty"`
	Queued    []string  `json:"queued"`
	Timestamp time.Time `json:"timestamp"`
}

// SnapshotPublisher receives every snapshot, in transition order. Publish
// errors are logged and ignored; a failing publisher must not stall the
// machine.
type SnapshotPublisher interface {
	PublishSnapshot(snap Snapshot) error
}

// ProgressPublisher receives progress ratios in [0,1] while a machine is
// executing. Same fire-and-forget contract as SnapshotPublisher.
type ProgressPublisher interface {
	PublishProgress(stationID string, ratio float64) error
}
