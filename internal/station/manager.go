package station

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/KevinKickass/PackStationCore/internal/config"
	"github.com/KevinKickass/PackStationCore/internal/packml"
	"github.com/KevinKickass/PackStationCore/internal/process"
	"github.com/KevinKickass/PackStationCore/internal/storage"
	"go.uber.org/zap"
)

// Manager owns all station controllers of one service instance. Stations
// run independently; each has its own queue and machine.
type Manager struct {
	logger      *zap.Logger
	controllers map[string]*Controller
}

// NewManager builds one controller per station definition. Zero-valued
// fields of a definition inherit the service-wide station defaults.
func NewManager(
	logger *zap.Logger,
	defaults config.StationConfig,
	defs []config.StationDef,
	snapPub packml.SnapshotPublisher,
	progPub packml.ProgressPublisher,
	store *storage.PostgresClient,
) (*Manager, error) {
	m := &Manager{
		logger:      logger,
		controllers: make(map[string]*Controller, len(defs)),
	}

	for _, def := range defs {
		cfg := Config{
			ID:                 def.ID,
			TransitionDelay:    defaults.TransitionDelay,
			ProgressInterval:   defaults.ProgressInterval,
			MonitorJoinTimeout: defaults.MonitorJoinTimeout,
			FaultProbability:   defaults.FaultProbability,
			DefaultDuration:    def.DefaultDuration,
		}
		if def.FaultProbability != nil {
			cfg.FaultProbability = *def.FaultProbability
		}
		if def.Seed != nil {
			cfg.Seed = *def.Seed
		}

		proc, err := buildProcess(def, defaults)
		if err != nil {
			return nil, fmt.Errorf("station %s: %w", def.ID, err)
		}

		m.controllers[def.ID] = NewController(logger, cfg, proc, snapPub, progPub, store)
	}

	return m, nil
}

func buildProcess(def config.StationDef, defaults config.StationConfig) (packml.Process, error) {
	switch def.Process {
	case "", "dwell":
		return process.Dwell(defaults.ProcessPollInterval), nil
	case "move":
		segments := def.Segments
		if segments <= 0 {
			segments = 4
		}
		return process.Move(segments, defaults.ProcessPollInterval), nil
	default:
		return nil, fmt.Errorf("unknown process kind %q", def.Process)
	}
}

// Get returns the controller for one station.
func (m *Manager) Get(id string) (*Controller, bool) {
	c, ok := m.controllers[id]
	return c, ok
}

// List returns the status of every station, ordered by id.
func (m *Manager) List() []Status {
	out := make([]Status, 0, len(m.controllers))
	for _, c := range m.controllers {
		out = append(out, c.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// StartAll starts every dispatch loop.
func (m *Manager) StartAll() {
	for _, c := range m.controllers {
		c.Start()
	}
	m.logger.Info("All stations started", zap.Int("count", len(m.controllers)))
}

// StopAll stops every station concurrently and waits for all of them.
func (m *Manager) StopAll(ctx context.Context) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(m.controllers))

	for _, c := range m.controllers {
		wg.Add(1)
		go func(c *Controller) {
			defer wg.Done()
			if err := c.Stop(ctx); err != nil {
				errCh <- err
			}
		}(c)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		return err
	}
	return nil
}
