package station

import (
	"context"
	"time"

	"github.com/KevinKickass/PackStationCore/internal/api/websocket"
	"github.com/KevinKickass/PackStationCore/internal/packml"
	"github.com/KevinKickass/PackStationCore/internal/storage"
)

// HubPublisher pushes snapshots and progress updates onto the WebSocket
// hub. Broadcast never blocks, so publishing cannot stall a machine.
type HubPublisher struct {
	hub *websocket.Hub
}

func NewHubPublisher(hub *websocket.Hub) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) PublishSnapshot(snap packml.Snapshot) error {
	p.hub.Broadcast(websocket.NewStationSnapshotMessage(
		snap.StationID, string(snap.State), snap.ActiveID, snap.Queued, snap.Timestamp))
	return nil
}

func (p *HubPublisher) PublishProgress(stationID string, ratio float64) error {
	p.hub.Broadcast(websocket.NewStationProgressMessage(stationID, ratio))
	return nil
}

// SnapshotRecorder persists every snapshot into the history store.
type SnapshotRecorder struct {
	store *storage.PostgresClient
}

func NewSnapshotRecorder(store *storage.PostgresClient) *SnapshotRecorder {
	return &SnapshotRecorder{store: store}
}

func (r *SnapshotRecorder) PublishSnapshot(snap packml.Snapshot) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return r.store.RecordSnapshot(ctx, storage.SnapshotRecord{
		StationID: snap.StationID,
		State:     string(snap.State),
		ActiveID:  snap.ActiveID,
		Queued:    snap.Queued,
		CreatedAt: snap.Timestamp,
	})
}

// MultiSnapshotPublisher fans one snapshot out to several publishers. The
// machine logs publish errors and keeps going, so one failing sink never
// hides the others.
type MultiSnapshotPublisher []packml.SnapshotPublisher

func (m MultiSnapshotPublisher) PublishSnapshot(snap packml.Snapshot) error {
	var firstErr error
	for _, pub := range m {
		if err := pub.PublishSnapshot(snap); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
