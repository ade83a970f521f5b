package packml

import (
	"context"
	"sync"
	"time"

	"github.com/KevinKickass/PackStationCore/internal/command"
	"go.uber.org/zap"
)

// DefaultTransitionDelay paces state changes so they are observable on a
// human/monitoring timescale. It is not required for correctness and tests
// run with zero.
const DefaultTransitionDelay = 100 * time.Millisecond

// Process is one unit of domain work the machine drives while in Execute.
// It receives a duration budget and the running machine for cooperative
// signal checks, and reports how it ended: SignalNone for normal
// completion, or the signal that interrupted it. A returned error is a
// domain failure outside the signal set and is mapped to an abort.
type Process interface {
	Execute(ctx context.Context, budget time.Duration, m *Machine) (Signal, error)
}

// ProcessFunc adapts a plain function to the Process interface.
type ProcessFunc func(ctx context.Context, budget time.Duration, m *Machine) (Signal, error)

func (f ProcessFunc) Execute(ctx context.Context, budget time.Duration, m *Machine) (Signal, error) {
	return f(ctx, budget, m)
}

// Config holds the per-machine tuning knobs.
type Config struct {
	StationID          string
	TransitionDelay    time.Duration
	ProgressInterval   time.Duration
	MonitorJoinTimeout time.Duration
}

// Machine models one piece of equipment through the PackML lifecycle:
// Idle, Starting, Execute, Completing, Complete, Resetting, plus the
// Hold, Suspend, Stop and Abort branches. A machine owns its state
// exclusively; external callers influence it only through RequestSignal
// and the command queue.
type Machine struct {
	logger   *zap.Logger
	cfg      Config
	queue    *command.Queue
	injector *FaultInjector
	snapPub  SnapshotPublisher
	progPub  ProgressPublisher
	monitor  *ProgressMonitor

	// runMu serializes Run invocations. One machine executes one command
	// at a time.
	runMu sync.Mutex

	mu        sync.RWMutex
	state     State
	activeID  string
	elapsed   time.Duration
	total     time.Duration
	stepStart time.Time
	inStep    bool
	requested Signal
	outcome   State
}

func NewMachine(logger *zap.Logger, cfg Config, queue *command.Queue, injector *FaultInjector, snapPub SnapshotPublisher, progPub ProgressPublisher) *Machine {
	m := &Machine{
		logger:   logger,
		cfg:      cfg,
		queue:    queue,
		injector: injector,
		snapPub:  snapPub,
		progPub:  progPub,
		state:    StateIdle,
	}
	m.monitor = NewProgressMonitor(logger, progPub, cfg.StationID, cfg.ProgressInterval, cfg.MonitorJoinTimeout)
	return m
}

// State returns the current PackML state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// ActiveCommand returns the identifier of the command being executed, or
// empty when the machine is idle.
func (m *Machine) ActiveCommand() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeID
}

// Elapsed returns the accumulated execution time of the active command,
// including the in-flight process step. It never decreases across Hold or
// Suspend resumes.
func (m *Machine) Elapsed() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e := m.elapsed
	if m.inStep {
		e += time.Since(m.stepStart)
	}
	return e
}

// TotalBudget returns the total duration budget of the active command, or
// zero when none is set.
func (m *Machine) TotalBudget() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total
}

// ProgressRatio returns elapsed/total clamped to [0,1], or zero when no
// budget is set.
func (m *Machine) ProgressRatio() float64 {
	total := m.TotalBudget()
	if total <= 0 {
		return 0
	}
	ratio := float64(m.Elapsed()) / float64(total)
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

// LastOutcome reports how the most recent cycle ended: Complete, Stopped
// or Aborted. Empty until a first cycle has finished.
func (m *Machine) LastOutcome() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.outcome
}

func (m *Machine) setOutcome(s State) {
	m.mu.Lock()
	m.outcome = s
	m.mu.Unlock()
}

// RequestSignal registers an external hold/suspend/stop/abort request. The
// request is consumed at the next checkpoint; hold and suspend are only
// consumed while the machine is executing.
func (m *Machine) RequestSignal(sig Signal) {
	if sig == SignalNone {
		return
	}
	m.mu.Lock()
	// Abort outranks everything, stop outranks hold/suspend.
	if sig == SignalAbort || m.requested == SignalNone ||
		(sig == SignalStop && m.requested != SignalAbort) {
		m.requested = sig
	}
	m.mu.Unlock()

	m.logger.Info("Signal requested",
		zap.String("station_id", m.cfg.StationID),
		zap.String("signal", sig.String()))
}

// Requested consumes a pending external signal if one is eligible in the
// current state. Processes poll this between slices of work so an operator
// stop or abort interrupts a long dwell mid-way.
func (m *Machine) Requested() Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.takePendingLocked(m.state == StateExecute)
}

// Checkpoint runs a full fault check with Execute-eligible banding.
// Processes with internal units of work call this between units.
func (m *Machine) Checkpoint() Signal {
	return m.checkpoint(true)
}

func (m *Machine) takePendingLocked(executing bool) Signal {
	sig := m.requested
	if sig == SignalNone {
		return SignalNone
	}
	if (sig == SignalHold || sig == SignalSuspend) && !executing {
		// Not eligible here; leave it pending.
		return SignalNone
	}
	m.requested = SignalNone
	return sig
}

// checkpoint consumes an eligible external request first, then samples the
// fault injector. Checkpoints sit before starting, after entering Execute,
// and around each unit of process work. Stop and abort unwinds never
// re-check.
func (m *Machine) checkpoint(executing bool) Signal {
	m.mu.Lock()
	sig := m.takePendingLocked(executing)
	m.mu.Unlock()
	if sig != SignalNone {
		return sig
	}
	if m.injector == nil {
		return SignalNone
	}
	return m.injector.Sample(executing)
}

// Run executes one command through the full PackML cycle and returns once
// the machine is back at Idle. All signals are absorbed internally;
// nothing is reported to the caller beyond the published snapshot stream.
func (m *Machine) Run(ctx context.Context, cmd *command.Command, proc Process) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	m.begin(cmd)

	m.logger.Info("Command execution started",
		zap.String("station_id", m.cfg.StationID),
		zap.String("command_id", cmd.ID),
		zap.Duration("duration", cmd.Duration),
		zap.Duration("max_duration", cmd.MaxDuration))

	m.transitionTo(StateStarting, m.cfg.TransitionDelay)

	// Pre-start checkpoint (Execute bands not live yet).
	if sig := m.checkpoint(false); sig == SignalAbort || sig == SignalStop {
		m.unwind(sig)
		return
	}

	// No pacing delay on the Starting -> Execute edge.
	m.transitionTo(StateExecute, 0)

	for {
		// Checkpoint on Execute entry / before each unit of work.
		sig := m.checkpoint(true)

		if sig == SignalNone {
			m.monitor.Start(m)

			budget := m.stepBudget(cmd)
			m.stepBegin()
			var err error
			sig, err = proc.Execute(ctx, budget, m)
			m.stepEnd()

			m.monitor.Stop()

			if err != nil {
				// Domain failures are outside the signal set; the
				// documented policy maps them to an abort.
				m.logger.Error("Process failed, aborting",
					zap.String("station_id", m.cfg.StationID),
					zap.String("command_id", cmd.ID),
					zap.Error(err))
				sig = SignalAbort
			}

			if sig == SignalNone {
				// Checkpoint after the unit of work.
				sig = m.checkpoint(true)
			}
		}

		switch sig {
		case SignalNone:
			m.complete()
			return

		case SignalHold:
			if esc := m.sideBranch(StateHolding, StateHeld, StateUnholding); esc != SignalNone {
				m.unwind(esc)
				return
			}
			m.transitionTo(StateExecute, m.cfg.TransitionDelay)

		case SignalSuspend:
			if esc := m.sideBranch(StateSuspending, StateSuspended, StateUnsuspending); esc != SignalNone {
				m.unwind(esc)
				return
			}
			m.transitionTo(StateExecute, m.cfg.TransitionDelay)

		default:
			m.unwind(sig)
			return
		}
	}
}

func (m *Machine) begin(cmd *command.Command) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeID = cmd.ID
	m.elapsed = 0
	m.inStep = false
	m.total = cmd.MaxDuration
	if m.total <= 0 {
		m.total = cmd.Duration
	}
}

// stepBudget clamps the requested duration to what remains of the
// max-duration budget.
func (m *Machine) stepBudget(cmd *command.Command) time.Duration {
	budget := cmd.Duration
	if cmd.MaxDuration > 0 {
		remaining := cmd.MaxDuration - m.Elapsed()
		if remaining < 0 {
			remaining = 0
		}
		if budget <= 0 || budget > remaining {
			budget = remaining
		}
	}
	return budget
}

func (m *Machine) stepBegin() {
	m.mu.Lock()
	m.stepStart = time.Now()
	m.inStep = true
	m.mu.Unlock()
}

// stepEnd folds the wall-clock time of the step into the elapsed
// accumulator, so Hold/Suspend resumes pick up where they left off.
func (m *Machine) stepEnd() {
	m.mu.Lock()
	m.elapsed += time.Since(m.stepStart)
	m.inStep = false
	m.mu.Unlock()
}

// sideBranch walks Holding->Held->Unholding (or the Suspend counterparts)
// with non-Execute fault checks at each step. A stop or abort during the
// branch escalates; hold/suspend bands are not live until the machine is
// back in Execute.
func (m *Machine) sideBranch(entering, parked, leaving State) Signal {
	for _, st := range []State{entering, parked, leaving} {
		m.transitionTo(st, m.cfg.TransitionDelay)
		if sig := m.checkpoint(false); sig == SignalAbort || sig == SignalStop {
			return sig
		}
	}
	return SignalNone
}

// complete runs the happy-path tail. With a duration budget set, progress
// is forced to 1.0 once before the completing sequence publishes.
func (m *Machine) complete() {
	m.setOutcome(StateComplete)

	if m.TotalBudget() > 0 && m.progPub != nil {
		if err := m.progPub.PublishProgress(m.cfg.StationID, 1.0); err != nil {
			m.logger.Warn("Final progress publish failed",
				zap.String("station_id", m.cfg.StationID),
				zap.Error(err))
		}
	}

	m.transitionTo(StateCompleting, m.cfg.TransitionDelay)
	m.transitionTo(StateComplete, m.cfg.TransitionDelay)
	m.transitionTo(StateResetting, m.cfg.TransitionDelay)
	m.transitionTo(StateIdle, m.cfg.TransitionDelay)
}

// unwind runs the stop or abort sequence. No fault checks happen on the
// way down; an unwind must not recursively fault.
func (m *Machine) unwind(sig Signal) {
	m.logger.Info("Unwinding",
		zap.String("station_id", m.cfg.StationID),
		zap.String("signal", sig.String()),
		zap.String("command_id", m.ActiveCommand()))

	switch sig {
	case SignalAbort:
		m.setOutcome(StateAborted)
		m.transitionTo(StateAborting, m.cfg.TransitionDelay)
		m.transitionTo(StateAborted, m.cfg.TransitionDelay)
		m.transitionTo(StateClearing, m.cfg.TransitionDelay)
		m.transitionTo(StateStopped, m.cfg.TransitionDelay)
		m.transitionTo(StateIdle, m.cfg.TransitionDelay)
	default:
		m.setOutcome(StateStopped)
		m.transitionTo(StateStopping, m.cfg.TransitionDelay)
		m.transitionTo(StateStopped, m.cfg.TransitionDelay)
		m.transitionTo(StateResetting, m.cfg.TransitionDelay)
		m.transitionTo(StateIdle, m.cfg.TransitionDelay)
	}
}

// transitionTo sets the new state, clears the active command bookkeeping
// when entering Idle or Resetting, publishes the snapshot for exactly this
// transition, and then sleeps the pacing delay. Snapshots go out strictly
// in transition order, one per transition.
func (m *Machine) transitionTo(s State, delay time.Duration) {
	m.mu.Lock()
	m.state = s
	if s == StateIdle || s == StateResetting {
		if m.activeID != "" {
			m.queue.Release(m.activeID)
			m.activeID = ""
		}
	}
	snap := Snapshot{
		StationID: m.cfg.StationID,
		State:     s,
		ActiveID:  m.activeID,
		Queued:    m.queue.Pending(),
		Timestamp: time.Now(),
	}
	m.mu.Unlock()

	m.logger.Debug("State transition",
		zap.String("station_id", m.cfg.StationID),
		zap.String("state", string(s)),
		zap.String("active_id", snap.ActiveID))

	if m.snapPub != nil {
		if err := m.snapPub.PublishSnapshot(snap); err != nil {
			m.logger.Warn("Snapshot publish failed",
				zap.String("station_id", m.cfg.StationID),
				zap.String("state", string(s)),
				zap.Error(err))
		}
	}

	if delay > 0 {
		time.Sleep(delay)
	}
}
