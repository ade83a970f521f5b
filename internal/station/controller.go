package station

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/KevinKickass/PackStationCore/internal/command"
	"github.com/KevinKickass/PackStationCore/internal/packml"
	"github.com/KevinKickass/PackStationCore/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config describes one station.
type Config struct {
	ID                 string
	TransitionDelay    time.Duration
	ProgressInterval   time.Duration
	MonitorJoinTimeout time.Duration
	FaultProbability   float64
	Seed               int64 // 0 seeds from the wall clock
	DefaultDuration    time.Duration
}

// Status is the health/diagnostic view of one station.
type Status struct {
	ID          string       `json:"id"`
	State       packml.State `json:"state"`
	ActiveID    string       `json:"active_id,omitempty"`
	Progress    float64      `json:"progress"`
	Queued      []string     `json:"queued"`
	LastOutcome packml.State `json:"last_outcome,omitempty"`
}

// Controller binds one command queue to one PackML machine and owns the
// dispatch loop: a single goroutine pops the queue head and runs it to
// Idle, then tries the next. Enqueue only wakes that goroutine, so the
// next command is never dispatched recursively from inside a finishing
// run.
type Controller struct {
	logger  *zap.Logger
	cfg     Config
	queue   *command.Queue
	machine *packml.Machine
	proc    packml.Process
	store   *storage.PostgresClient // nil when history is disabled

	recordsMu sync.Mutex
	records   map[string]uuid.UUID // command id -> history row id

	runCtx    context.Context
	runCancel context.CancelFunc
	wake      chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewController(
	logger *zap.Logger,
	cfg Config,
	proc packml.Process,
	snapPub packml.SnapshotPublisher,
	progPub packml.ProgressPublisher,
	store *storage.PostgresClient,
) *Controller {
	var src rand.Source
	if cfg.Seed != 0 {
		src = rand.NewSource(cfg.Seed)
	}
	injector := packml.NewFaultInjector(cfg.FaultProbability, src)

	queue := command.NewQueue()
	machine := packml.NewMachine(logger, packml.Config{
		StationID:          cfg.ID,
		TransitionDelay:    cfg.TransitionDelay,
		ProgressInterval:   cfg.ProgressInterval,
		MonitorJoinTimeout: cfg.MonitorJoinTimeout,
	}, queue, injector, snapPub, progPub)

	runCtx, runCancel := context.WithCancel(context.Background())

	return &Controller{
		logger:    logger,
		cfg:       cfg,
		queue:     queue,
		machine:   machine,
		proc:      proc,
		store:     store,
		records:   make(map[string]uuid.UUID),
		runCtx:    runCtx,
		runCancel: runCancel,
		wake:      make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start launches the dispatch loop.
func (c *Controller) Start() {
	c.startOnce.Do(func() {
		go c.dispatchLoop()
		c.logger.Info("Station started", zap.String("station_id", c.cfg.ID))
	})
}

// Stop requests a stop of the active command, if any, and shuts the
// dispatch loop down. It waits for the loop to exit or the context to
// expire.
func (c *Controller) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() {
		if c.machine.State() != packml.StateIdle {
			c.machine.RequestSignal(packml.SignalStop)
		}
		close(c.stopCh)
		c.runCancel()
	})

	select {
	case <-c.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("station %s did not stop in time", c.cfg.ID)
	}
}

// Enqueue registers a command and wakes the dispatch loop. A duplicate
// identifier is ignored and reported as not added.
func (c *Controller) Enqueue(cmd *command.Command) bool {
	if cmd.Duration <= 0 && cmd.MaxDuration <= 0 {
		cmd.Duration = c.cfg.DefaultDuration
	}

	added := c.queue.Enqueue(cmd)
	if added {
		c.logger.Info("Command enqueued",
			zap.String("station_id", c.cfg.ID),
			zap.String("command_id", cmd.ID),
			zap.Int("queue_length", c.queue.Len()))
		c.recordEnqueued(cmd)

		select {
		case c.wake <- struct{}{}:
		default:
		}
	}
	return added
}

// Unregister removes a queued command. The second return value reports
// that the removal was rejected because the command is active.
func (c *Controller) Unregister(id string) (removed, active bool) {
	if c.queue.Active() == id {
		return false, true
	}
	return c.queue.Unregister(id), false
}

// RequestSignal forwards an external hold/suspend/stop/abort request to
// the machine. Rejected when no command is running.
func (c *Controller) RequestSignal(sig packml.Signal) error {
	if c.machine.State() == packml.StateIdle {
		return fmt.Errorf("station %s has no active command", c.cfg.ID)
	}
	c.machine.RequestSignal(sig)
	return nil
}

// Status returns the current station view.
func (c *Controller) Status() Status {
	return Status{
		ID:          c.cfg.ID,
		State:       c.machine.State(),
		ActiveID:    c.machine.ActiveCommand(),
		Progress:    c.machine.ProgressRatio(),
		Queued:      c.queue.Pending(),
		LastOutcome: c.machine.LastOutcome(),
	}
}

// Queue exposes the queue for diagnostic reads.
func (c *Controller) Queue() *command.Queue {
	return c.queue
}

// Machine exposes the machine for diagnostic reads.
func (c *Controller) Machine() *packml.Machine {
	return c.machine
}

// History returns recent command records, newest first. Empty without a
// configured store.
func (c *Controller) History(ctx context.Context, limit int) ([]storage.CommandRecord, error) {
	if c.store == nil {
		return nil, nil
	}
	return c.store.ListCommandHistory(ctx, c.cfg.ID, limit)
}

func (c *Controller) dispatchLoop() {
	defer close(c.doneCh)

	for {
		select {
		case <-c.stopCh:
			return
		case <-c.wake:
		}

		for {
			select {
			case <-c.stopCh:
				return
			default:
			}

			cmd := c.queue.TryDispatch()
			if cmd == nil {
				break
			}

			c.recordStarted(cmd)
			c.machine.Run(c.runCtx, cmd, c.proc)
			c.recordFinished(cmd)
		}
	}
}

func (c *Controller) recordEnqueued(cmd *command.Command) {
	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	recordID, err := c.store.RecordCommandEnqueued(ctx, c.cfg.ID, cmd.ID, cmd.EnqueuedAt)
	if err != nil {
		c.logger.Warn("Failed to record command", zap.String("command_id", cmd.ID), zap.Error(err))
		return
	}
	c.recordsMu.Lock()
	c.records[cmd.ID] = recordID
	c.recordsMu.Unlock()
}

func (c *Controller) recordStarted(cmd *command.Command) {
	recordID, ok := c.recordFor(cmd.ID, false)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.store.RecordCommandStarted(ctx, recordID, time.Now()); err != nil {
		c.logger.Warn("Failed to record command start", zap.String("command_id", cmd.ID), zap.Error(err))
	}
}

func (c *Controller) recordFinished(cmd *command.Command) {
	recordID, ok := c.recordFor(cmd.ID, true)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	outcome := string(c.machine.LastOutcome())
	if err := c.store.RecordCommandFinished(ctx, recordID, time.Now(), outcome); err != nil {
		c.logger.Warn("Failed to record command finish", zap.String("command_id", cmd.ID), zap.Error(err))
	}
}

func (c *Controller) recordFor(commandID string, drop bool) (uuid.UUID, bool) {
	if c.store == nil {
		return uuid.Nil, false
	}
	c.recordsMu.Lock()
	defer c.recordsMu.Unlock()
	recordID, ok := c.records[commandID]
	if ok && drop {
		delete(c.records, commandID)
	}
	return recordID, ok
}
