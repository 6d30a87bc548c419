package types

import (
	"context"
	"io"
)

// EventLogStore provides ordered access to the instance event log.
// Implementations must return records ordered by StorageID in the requested
// direction; limit <= 0 means no limit.
type EventLogStore interface {
	EventRecords(ctx context.Context, filter EventRecordsFilter, ascending bool, limit int) ([]EventRecord, error)
}

// Instance is the persistent-instance collaborator a sensor evaluation
// binds to. It couples the event log with a lifecycle: instances resolved
// lazily by a context are closed when the context's scope ends.
type Instance interface {
	EventLogStore
	io.Closer
	// Ephemeral reports whether the instance is backed by non-durable
	// storage. Externally-invoked evaluation requires a durable instance.
	Ephemeral() bool
}

// RunLauncher resolves and launches the run described by a RunRequest,
// returning the launched run's ID. Launchers are expected to be idempotent
// on RunKey.
type RunLauncher interface {
	LaunchRun(ctx context.Context, sensorName string, req RunRequest) (string, error)
}

// CursorStore persists the opaque cursor string between sensor evaluations.
// The cursor must round-trip byte-for-byte; its internal structure is owned
// entirely by the user evaluation routine.
type CursorStore interface {
	LoadCursor(ctx context.Context, sensorName string) (string, error)
	SaveCursor(ctx context.Context, sensorName string, cursor string) error
}
