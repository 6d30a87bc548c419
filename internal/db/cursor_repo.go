package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"tickwise/internal/types"
)

// SensorCursorRepository persists the opaque per-sensor cursor between
// evaluation ticks. It implements types.CursorStore. The cursor is stored
// verbatim: its internal structure belongs to the evaluation routine, not
// the storage layer.
type SensorCursorRepository struct {
	db DBTX
}

// NewSensorCursorRepository creates a SensorCursorRepository backed by the
// given database connection (pool or transaction).
func NewSensorCursorRepository(db DBTX) *SensorCursorRepository {
	return &SensorCursorRepository{db: db}
}

// LoadCursor returns the persisted cursor for a sensor, or "" when the
// sensor has never completed a tick.
func (r *SensorCursorRepository) LoadCursor(ctx context.Context, sensorName string) (string, error) {
	var cursor string
	err := r.db.QueryRow(ctx,
		`SELECT cursor FROM sensor_cursors WHERE sensor_name = $1`,
		sensorName,
	).Scan(&cursor)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to load sensor cursor", err)
	}
	return cursor, nil
}

// SaveCursor upserts the cursor after a successful tick. The write is the
// commit point of the tick: a crash before it re-evaluates from the old
// cursor, a crash after it resumes from the new one.
func (r *SensorCursorRepository) SaveCursor(ctx context.Context, sensorName string, cursor string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sensor_cursors (sensor_name, cursor, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (sensor_name) DO UPDATE
		   SET cursor = EXCLUDED.cursor,
		       updated_at = EXCLUDED.updated_at`,
		sensorName, cursor, time.Now().UTC(),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save sensor cursor", err)
	}
	return nil
}
