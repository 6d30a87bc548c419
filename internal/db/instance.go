package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"tickwise/internal/types"
)

// PostgresInstance is the durable types.Instance: a pgx pool plus the
// event-log repository bound to it.
type PostgresInstance struct {
	*EventLogRepository
	pool *pgxpool.Pool
}

// NewPostgresInstance wraps an existing pool. The caller keeps ownership of
// the pool unless the instance was resolved through an InstanceRef.
func NewPostgresInstance(pool *pgxpool.Pool) *PostgresInstance {
	return &PostgresInstance{
		EventLogRepository: NewEventLogRepository(pool),
		pool:               pool,
	}
}

// Pool exposes the underlying pool for repositories that share the
// instance's connection.
func (i *PostgresInstance) Pool() *pgxpool.Pool { return i.pool }

// Close releases the pool.
func (i *PostgresInstance) Close() error {
	i.pool.Close()
	return nil
}

// Ephemeral always reports false; PostgreSQL-backed instances are durable.
func (i *PostgresInstance) Ephemeral() bool { return false }

// InstanceRef is a serialized pointer to a durable instance, resolvable
// from any process. Sensor contexts resolve it lazily so ticks that never
// touch the event log never open a connection.
type InstanceRef struct {
	DSN string
}

// Resolve opens a pool against the referenced database and verifies
// connectivity.
func (r InstanceRef) Resolve(ctx context.Context) (types.Instance, error) {
	pool, err := pgxpool.New(ctx, r.DSN)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to create connection pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to reach referenced instance", err)
	}
	return NewPostgresInstance(pool), nil
}
