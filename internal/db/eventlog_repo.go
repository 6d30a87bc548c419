package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tickwise/internal/types"
)

// EventLogRepository reads the event_records table, the append-only log of
// asset materializations and observations. It implements
// types.EventLogStore; StorageID is the table's bigserial primary key, so
// cursor comparisons ride the index.
type EventLogRepository struct {
	db DBTX
}

// NewEventLogRepository creates an EventLogRepository backed by the given
// database connection (pool or transaction).
func NewEventLogRepository(db DBTX) *EventLogRepository {
	return &EventLogRepository{db: db}
}

// eventRecordsQuery renders the filter into SQL with positional args.
func eventRecordsQuery(filter types.EventRecordsFilter, ascending bool, limit int) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.EventType != "" {
		conds = append(conds, "event_type = "+arg(string(filter.EventType)))
	}
	if len(filter.AssetKey.Path) > 0 {
		conds = append(conds, "asset_key = "+arg(filter.AssetKey.String()))
	}
	if filter.AfterCursor != nil {
		conds = append(conds, "storage_id > "+arg(*filter.AfterCursor))
	}
	if len(filter.AssetPartitions) > 0 {
		conds = append(conds, "partition = ANY("+arg(filter.AssetPartitions)+")")
	}

	query := "SELECT storage_id, event_type, asset_key, partition, event_timestamp FROM event_records"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if ascending {
		query += " ORDER BY storage_id ASC"
	} else {
		query += " ORDER BY storage_id DESC"
	}
	if limit > 0 {
		query += " LIMIT " + arg(limit)
	}
	return query, args
}

// EventRecords returns log entries matching the filter, ordered by storage
// offset in the requested direction. limit <= 0 returns all matches.
func (r *EventLogRepository) EventRecords(ctx context.Context, filter types.EventRecordsFilter, ascending bool, limit int) ([]types.EventRecord, error) {
	query, args := eventRecordsQuery(filter, ascending, limit)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query event records", err)
	}
	defer rows.Close()

	var records []types.EventRecord
	for rows.Next() {
		var (
			rec       types.EventRecord
			eventType string
			assetKey  string
			partition string
			ts        time.Time
		)
		if err := rows.Scan(&rec.StorageID, &eventType, &assetKey, &partition, &ts); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan event record", err)
		}
		rec.EventType = types.EventType(eventType)
		rec.AssetKey = types.NewAssetKey(strings.Split(assetKey, "/")...)
		rec.Partition = partition
		rec.Timestamp = ts
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate event records", err)
	}
	return records, nil
}

// AppendEvent inserts one log entry and returns its storage offset. Used by
// ingestion paths and tests; sensor evaluation itself only reads.
func (r *EventLogRepository) AppendEvent(ctx context.Context, eventType types.EventType, key types.AssetKey, partition string, ts time.Time) (int64, error) {
	var storageID int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO event_records (event_type, asset_key, partition, event_timestamp)
		 VALUES ($1, $2, $3, $4)
		 RETURNING storage_id`,
		string(eventType), key.String(), partition, ts,
	).Scan(&storageID)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to append event record", err)
	}
	return storageID, nil
}
