package packml

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultProgressInterval is the tick interval of the progress monitor.
	DefaultProgressInterval = 100 * time.Millisecond

	// DefaultMonitorJoinTimeout bounds how long Stop waits for the tick
	// loop to exit before giving up.
	DefaultMonitorJoinTimeout = 500 * time.Millisecond
)

// progressSource is the view of the machine the monitor observes.
type progressSource interface {
	State() State
	Elapsed() time.Duration
	TotalBudget() time.Duration
}

// ProgressMonitor publishes elapsed/total ratios on a fixed tick while its
// source is in Execute. It is started on every entry into Execute and
// stopped on every exit, so one command's lifetime may see many
// Start/Stop cycles across Hold and Suspend branches.
type ProgressMonitor struct {
	logger      *zap.Logger
	pub         ProgressPublisher
	stationID   string
	interval    time.Duration
	joinTimeout time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewProgressMonitor(logger *zap.Logger, pub ProgressPublisher, stationID string, interval, joinTimeout time.Duration) *ProgressMonitor {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	if joinTimeout <= 0 {
		joinTimeout = DefaultMonitorJoinTimeout
	}
	return &ProgressMonitor{
		logger:      logger,
		pub:         pub,
		stationID:   stationID,
		interval:    interval,
		joinTimeout: joinTimeout,
	}
}

// Start launches the tick loop. It is a no-op when the monitor is already
// running, when no publisher is wired, or when the source has no total
// duration budget.
func (pm *ProgressMonitor) Start(src progressSource) {
	if pm.pub == nil || src.TotalBudget() <= 0 {
		return
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.running {
		return
	}
	pm.running = true
	pm.stopCh = make(chan struct{})
	pm.doneCh = make(chan struct{})

	go pm.tickLoop(src, pm.stopCh, pm.doneCh)
}

// Stop signals the tick loop and waits up to the join timeout for it to
// exit. The wait is best effort; the caller proceeds regardless.
func (pm *ProgressMonitor) Stop() {
	pm.mu.Lock()
	if !pm.running {
		pm.mu.Unlock()
		return
	}
	pm.running = false
	stopCh, doneCh := pm.stopCh, pm.doneCh
	pm.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
	case <-time.After(pm.joinTimeout):
		pm.logger.Warn("Progress monitor did not stop in time",
			zap.String("station_id", pm.stationID),
			zap.Duration("timeout", pm.joinTimeout))
	}
}

func (pm *ProgressMonitor) tickLoop(src progressSource, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(pm.interval)
	defer ticker.Stop()

	last := -1.0
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
		}

		if src.State() != StateExecute {
			continue
		}
		total := src.TotalBudget()
		if total <= 0 {
			continue
		}

		ratio := math.Min(float64(src.Elapsed())/float64(total), 1.0)
		if ratio == last {
			continue
		}
		last = ratio

		if err := pm.pub.PublishProgress(pm.stationID, ratio); err != nil {
			pm.logger.Warn("Progress publish failed",
				zap.String("station_id", pm.stationID),
				zap.Error(err))
		}
	}
}
