package system

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/KevinKickass/PackStationCore/internal/api/rest"
	"github.com/KevinKickass/PackStationCore/internal/api/websocket"
	"github.com/KevinKickass/PackStationCore/internal/auth"
	"github.com/KevinKickass/PackStationCore/internal/config"
	"github.com/KevinKickass/PackStationCore/internal/packml"
	"github.com/KevinKickass/PackStationCore/internal/station"
	"github.com/KevinKickass/PackStationCore/internal/storage"
	"go.uber.org/zap"
)

// LifecycleManager wires the stations, publishers and API surfaces
// together and drives startup and graceful shutdown.
type LifecycleManager struct {
	config      *config.Config
	storage     *storage.PostgresClient // nil when history is disabled
	stations    *station.Manager
	wsHub       *websocket.Hub
	authService *auth.AuthService
	logger      *zap.Logger

	restServer *rest.Server

	stateMu      sync.RWMutex
	currentState SystemState

	shutdownOnce sync.Once
}

func NewLifecycleManager(store *storage.PostgresClient, cfg *config.Config, logger *zap.Logger) (*LifecycleManager, error) {
	defs, err := config.LoadStations(cfg.Stations.File)
	if err != nil {
		return nil, fmt.Errorf("failed to load station definitions: %w", err)
	}

	wsHub := websocket.NewHub(logger)
	authService := auth.NewAuthService(cfg.Auth)

	hubPub := station.NewHubPublisher(wsHub)

	var snapPub packml.SnapshotPublisher = hubPub
	if store != nil {
		snapPub = station.MultiSnapshotPublisher{hubPub, station.NewSnapshotRecorder(store)}
	}

	stations, err := station.NewManager(logger, cfg.Station, defs, snapPub, hubPub, store)
	if err != nil {
		return nil, fmt.Errorf("failed to build stations: %w", err)
	}

	return &LifecycleManager{
		config:       cfg,
		storage:      store,
		stations:     stations,
		wsHub:        wsHub,
		authService:  authService,
		logger:       logger,
		currentState: StateInitializing,
	}, nil
}

// Stations returns the station manager
func (lm *LifecycleManager) Stations() *station.Manager {
	return lm.stations
}

// Start starts the entire system
func (lm *LifecycleManager) Start() error {
	lm.logger.Info("Starting PackStationCore")

	lm.setState(StateInitializing)

	if lm.storage != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := lm.storage.EnsureHistorySchema(ctx); err != nil {
			lm.setState(StateError)
			return fmt.Errorf("failed to prepare history schema: %w", err)
		}
	}

	go lm.wsHub.Run()

	lm.stations.StartAll()

	restServer, err := rest.NewServer(lm.config, lm.stations, lm.logger, lm.wsHub, lm.authService)
	if err != nil {
		lm.setState(StateError)
		return err
	}
	lm.restServer = restServer

	if err := lm.restServer.Start(); err != nil {
		lm.setState(StateError)
		return fmt.Errorf("failed to start REST API: %w", err)
	}

	lm.setState(StateRunning)
	lm.broadcastStatus()

	lm.logger.Info("System started successfully",
		zap.Int("http_port", lm.config.Server.HTTPPort),
		zap.Int("stations", len(lm.stations.List())))

	return nil
}

// Shutdown gracefully shuts down the system
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down system")

		lm.setState(StateStopping)
		lm.broadcastStatus()

		shutdownErr = lm.gracefulShutdown(ctx)

		lm.setState(StateStopped)
	})

	return shutdownErr
}

func (lm *LifecycleManager) gracefulShutdown(ctx context.Context) error {
	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	// 1. Stop all stations (active commands run their stop sequence)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := lm.stations.StopAll(ctx); err != nil {
			errChan <- fmt.Errorf("station shutdown failed: %w", err)
		}
	}()

	// 2. REST API server graceful shutdown
	if lm.restServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			if err := lm.restServer.Shutdown(shutdownCtx); err != nil {
				errChan <- fmt.Errorf("rest api shutdown failed: %w", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		lm.logger.Info("Graceful shutdown completed")
		return nil
	case <-ctx.Done():
		lm.logger.Warn("Shutdown timeout, forcing stop")
		return fmt.Errorf("shutdown timeout exceeded")
	case err := <-errChan:
		return err
	}
}

func (lm *LifecycleManager) setState(state SystemState) {
	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()
	lm.currentState = state
}

// GetCurrentStatus returns the current system status.
func (lm *LifecycleManager) GetCurrentStatus() SystemStatus {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()

	return SystemStatus{
		State:     lm.currentState,
		Stations:  len(lm.stations.List()),
		Timestamp: time.Now().Unix(),
	}
}

func (lm *LifecycleManager) broadcastStatus() {
	status := lm.GetCurrentStatus()
	lm.wsHub.Broadcast(websocket.NewMessage(websocket.MessageTypeSystemStatus, status))
}
