package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tickwise/internal/types"
)

// RunRepository records launched runs and implements types.RunLauncher.
// Launches are idempotent on (sensor_name, run_key): a request whose key
// matches an existing run returns that run's ID without inserting.
type RunRepository struct {
	db DBTX
}

// NewRunRepository creates a RunRepository backed by the given database
// connection (pool or transaction).
func NewRunRepository(db DBTX) *RunRepository {
	return &RunRepository{db: db}
}

// LaunchRun inserts a queued run for the request and returns its ID. When
// the request carries a run key already seen for this sensor, the existing
// run's ID is returned instead.
func (r *RunRepository) LaunchRun(ctx context.Context, sensorName string, req types.RunRequest) (string, error) {
	if req.RunKey != "" {
		var existingID string
		err := r.db.QueryRow(ctx,
			`SELECT id FROM runs WHERE sensor_name = $1 AND run_key = $2`,
			sensorName, req.RunKey,
		).Scan(&existingID)
		if err == nil {
			return existingID, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return "", types.NewAppError(types.ErrCodeInternalDB, "failed to check existing run key", err)
		}
	}

	runID := uuid.New().String()
	_, err := r.db.Exec(ctx,
		`INSERT INTO runs (id, sensor_name, job_name, run_key, tags, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		runID, sensorName, req.JobName, req.RunKey, req.Tags,
		string(types.RunStatusQueued), time.Now().UTC(),
	)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to insert run", err)
	}
	return runID, nil
}

// RunByID fetches one run.
func (r *RunRepository) RunByID(ctx context.Context, runID string) (*types.Run, error) {
	var (
		run    types.Run
		status string
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, job_name, run_key, tags, status, created_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.JobName, &run.RunKey, &run.Tags, &status, &run.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load run", err)
	}
	run.Status = types.RunStatus(status)
	return &run, nil
}
