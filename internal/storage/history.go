package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnsureHistorySchema creates the history tables if they do not exist.
func (p *PostgresClient) EnsureHistorySchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS command_history (
			id UUID PRIMARY KEY,
			station_id TEXT NOT NULL,
			command_id TEXT NOT NULL,
			enqueued_at TIMESTAMPTZ NOT NULL,
			started_at TIMESTAMPTZ,
			finished_at TIMESTAMPTZ,
			outcome TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_command_history_station
			ON command_history (station_id, enqueued_at DESC);

		CREATE TABLE IF NOT EXISTS snapshot_history (
			id UUID PRIMARY KEY,
			station_id TEXT NOT NULL,
			state TEXT NOT NULL,
			active_id TEXT,
			queued TEXT[],
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_snapshot_history_station
			ON snapshot_history (station_id, created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure history schema: %w", err)
	}
	return nil
}

// RecordCommandEnqueued inserts a history row for a newly accepted command
// and returns the row id used by the later updates.
func (p *PostgresClient) RecordCommandEnqueued(ctx context.Context, stationID, commandID string, enqueuedAt time.Time) (uuid.UUID, error) {
	id := uuid.New()
	_, err := p.pool.Exec(ctx, `
		INSERT INTO command_history (id, station_id, command_id, enqueued_at)
		VALUES ($1, $2, $3, $4)`,
		id, stationID, commandID, enqueuedAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to record command: %w", err)
	}
	return id, nil
}

// RecordCommandStarted stamps the dispatch time of a command.
func (p *PostgresClient) RecordCommandStarted(ctx context.Context, recordID uuid.UUID, startedAt time.Time) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE command_history SET started_at = $2 WHERE id = $1`,
		recordID, startedAt)
	if err != nil {
		return fmt.Errorf("failed to record command start: %w", err)
	}
	return nil
}

// RecordCommandFinished stamps the completion time and outcome.
func (p *PostgresClient) RecordCommandFinished(ctx context.Context, recordID uuid.UUID, finishedAt time.Time, outcome string) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE command_history SET finished_at = $2, outcome = $3 WHERE id = $1`,
		recordID, finishedAt, outcome)
	if err != nil {
		return fmt.Errorf("failed to record command finish: %w", err)
	}
	return nil
}

// RecordSnapshot persists one published snapshot.
func (p *PostgresClient) RecordSnapshot(ctx context.Context, rec SnapshotRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO snapshot_history (id, station_id, state, active_id, queued, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.StationID, rec.State, rec.ActiveID, rec.Queued, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record snapshot: %w", err)
	}
	return nil
}

// ListCommandHistory returns the most recent command records for one
// station, newest first.
func (p *PostgresClient) ListCommandHistory(ctx context.Context, stationID string, limit int) ([]CommandRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.pool.Query(ctx, `
		SELECT id, station_id, command_id, enqueued_at, started_at, finished_at, outcome
		FROM command_history
		WHERE station_id = $1
		ORDER BY enqueued_at DESC
		LIMIT $2`,
		stationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query command history: %w", err)
	}
	defer rows.Close()

	var records []CommandRecord
	for rows.Next() {
		var rec CommandRecord
		var outcome *string
		if err := rows.Scan(&rec.ID, &rec.StationID, &rec.CommandID,
			&rec.EnqueuedAt, &rec.StartedAt, &rec.FinishedAt, &outcome); err != nil {
			return nil, fmt.Errorf("failed to scan command history row: %w", err)
		}
		if outcome != nil {
			rec.Outcome = *outcome
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
