package websocket

import "time"

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Station state messages
	MessageTypeStationSnapshot MessageType = "station_snapshot"
	MessageTypeStationProgress MessageType = "station_progress"

	// System messages
	MessageTypeSystemStatus MessageType = "system_status"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// StationSnapshotData carries one published PackML snapshot.
type StationSnapshotData struct {
	StationID string    `json:"station_id"`
	State     string    `json:"state"`
	ActiveID  string    `json:"active_id,omitempty"`
	Queued    []string  `json:"queued"`
	Timestamp time.Time `json:"timestamp"`
}

// StationProgressData carries one progress update of an executing command.
type StationProgressData struct {
	StationID string  `json:"station_id"`
	Progress  float64 `json:"progress"`
}

// NewMessage creates a new message with current timestamp
func NewMessage(msgType MessageType, data interface{}) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

func NewStationSnapshotMessage(stationID, state, activeID string, queued []string, ts time.Time) Message {
	return NewMessage(MessageTypeStationSnapshot, StationSnapshotData{
		StationID: stationID,
		State:     state,
		ActiveID:  activeID,
		Queued:    queued,
		Timestamp: ts,
	})
}

func NewStationProgressMessage(stationID string, progress float64) Message {
	return NewMessage(MessageTypeStationProgress, StationProgressData{
		StationID: stationID,
		Progress:  progress,
	})
}
