package sensor

import (
	"context"
	"encoding/json"
	"fmt"

	"tickwise/internal/schedule"
	"tickwise/internal/types"
)

// AssetSpec pairs a monitored asset key with its partition definition.
// Partitions is nil for unpartitioned assets.
type AssetSpec struct {
	Key        types.AssetKey
	Partitions *schedule.TimeWindowPartitions
}

// partitionCursor is one asset's entry in a partitioned cursor: the last
// partition consumed and the event-log offset of its materialization.
type partitionCursor struct {
	PartitionKey string `json:"partition_key"`
	StorageID    int64  `json:"storage_id"`
}

// PartitionedContext is the evaluation context for sensors monitoring
// partitioned assets. Its cursor is a JSON object mapping each canonical
// asset key string to a (partition key, offset) pair.
type PartitionedContext struct {
	*Context
	assets  []AssetSpec
	updated bool
}

// NewPartitionedContext builds a partitioned context over the given asset
// specs.
func NewPartitionedContext(cfg ContextConfig, assets []AssetSpec) *PartitionedContext {
	return &PartitionedContext{Context: NewContext(cfg), assets: assets}
}

// BuildPartitionedContext is the out-of-band counterpart of
// NewPartitionedContext; it checks instance durability.
func BuildPartitionedContext(cfg ContextConfig, assets []AssetSpec) (*PartitionedContext, error) {
	base, err := BuildContext(cfg)
	if err != nil {
		return nil, err
	}
	return &PartitionedContext{Context: base, assets: assets}, nil
}

// Assets returns the monitored asset specs.
func (c *PartitionedContext) Assets() []AssetSpec { return c.assets }

func (c *PartitionedContext) resetCursorUpdated() { c.updated = false }
func (c *PartitionedContext) cursorUpdated() bool { return c.updated }

func (c *PartitionedContext) cursorEntries() (map[string]partitionCursor, error) {
	entries := make(map[string]partitionCursor)
	if c.Cursor() == "" {
		return entries, nil
	}
	if err := json.Unmarshal([]byte(c.Cursor()), &entries); err != nil {
		return nil, types.NewAppError(types.ErrCodeSensorInvalidCursor,
			fmt.Sprintf("cursor %q is not a valid partitioned asset cursor", c.Cursor()), err)
	}
	return entries, nil
}

// findAsset resolves an asset key against the monitored set. A nil key is
// allowed when exactly one asset is monitored.
func (c *PartitionedContext) findAsset(key *types.AssetKey) (AssetSpec, error) {
	if key == nil {
		if len(c.assets) != 1 {
			return AssetSpec{}, types.NewAppError(types.ErrCodeSensorInvalidInvocation,
				"an asset key must be given when more than one asset is monitored", nil)
		}
		return c.assets[0], nil
	}
	for _, spec := range c.assets {
		if spec.Key.String() == key.String() {
			return spec, nil
		}
	}
	return AssetSpec{}, types.NewAppError(types.ErrCodeSensorInvalidInvocation,
		fmt.Sprintf("asset %q is not monitored by this sensor", key.String()), nil)
}

// CursorPartition returns the last consumed partition key for the given
// asset (nil selects the single monitored asset), empty when the asset has
// not been consumed yet.
func (c *PartitionedContext) CursorPartition(key *types.AssetKey) (string, error) {
	spec, err := c.findAsset(key)
	if err != nil {
		return "", err
	}
	entries, err := c.cursorEntries()
	if err != nil {
		return "", err
	}
	return entries[spec.Key.String()].PartitionKey, nil
}

// LatestRecordsByKey fetches, per monitored asset, the most recent
// materialization past the asset's cursor offset, restricted to partitions
// that exist in the asset's partition set (unpartitioned specs are not
// restricted). Assets with nothing new map to nil.
func (c *PartitionedContext) LatestRecordsByKey(ctx context.Context) (map[string]*types.EventRecord, error) {
	entries, err := c.cursorEntries()
	if err != nil {
		return nil, err
	}
	inst, err := c.Instance(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*types.EventRecord, len(c.assets))
	for _, spec := range c.assets {
		filter := types.EventRecordsFilter{
			EventType: types.EventTypeMaterialization,
			AssetKey:  spec.Key,
		}
		// Unpartitioned specs take no partition filter.
		if spec.Partitions != nil {
			partitions, err := spec.Partitions.Keys(c.now())
			if err != nil {
				return nil, err
			}
			filter.AssetPartitions = partitions
		}
		if entry, ok := entries[spec.Key.String()]; ok {
			after := entry.StorageID
			filter.AfterCursor = &after
		}
		records, err := inst.EventRecords(ctx, filter, false, 1)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			out[spec.Key.String()] = nil
			continue
		}
		rec := records[0]
		out[spec.Key.String()] = &rec
	}
	return out, nil
}

// LatestByPartition fetches, per monitored asset, the most recent
// materialization of each partition past the asset's cursor offset. The
// outer map is keyed by canonical asset key, the inner by partition key.
func (c *PartitionedContext) LatestByPartition(ctx context.Context) (map[string]map[string]types.EventRecord, error) {
	entries, err := c.cursorEntries()
	if err != nil {
		return nil, err
	}
	inst, err := c.Instance(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]map[string]types.EventRecord, len(c.assets))
	for _, spec := range c.assets {
		filter := types.EventRecordsFilter{
			EventType: types.EventTypeMaterialization,
			AssetKey:  spec.Key,
		}
		if entry, ok := entries[spec.Key.String()]; ok {
			after := entry.StorageID
			filter.AfterCursor = &after
		}
		// Descending order so the first record seen per partition is its
		// most recent materialization.
		records, err := inst.EventRecords(ctx, filter, false, 0)
		if err != nil {
			return nil, err
		}
		byPartition := make(map[string]types.EventRecord)
		for _, rec := range records {
			if rec.Partition == "" {
				continue
			}
			if _, seen := byPartition[rec.Partition]; !seen {
				byPartition[rec.Partition] = rec
			}
		}
		out[spec.Key.String()] = byPartition
	}
	return out, nil
}

// AdvanceCursor moves the per-asset cursor entries past the given records,
// keyed by canonical asset key string. Nil records leave that asset's
// entry unchanged.
func (c *PartitionedContext) AdvanceCursor(records map[string]*types.EventRecord) error {
	entries, err := c.cursorEntries()
	if err != nil {
		return err
	}
	for key, rec := range records {
		if rec != nil {
			entries[key] = partitionCursor{PartitionKey: rec.Partition, StorageID: rec.StorageID}
		}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode partitioned cursor", err)
	}
	c.UpdateCursor(string(raw))
	c.updated = true
	return nil
}

// AdvanceAllCursors fetches the latest record for every monitored asset
// and advances past all of them.
func (c *PartitionedContext) AdvanceAllCursors(ctx context.Context) error {
	latest, err := c.LatestRecordsByKey(ctx)
	if err != nil {
		return err
	}
	return c.AdvanceCursor(latest)
}

// MapPartition maps a partition key of the from asset's partition set onto
// the to set's overlapping keys. A nil from selects the single monitored
// asset's definition.
func (c *PartitionedContext) MapPartition(key string, from *types.AssetKey, to *schedule.TimeWindowPartitions) ([]string, error) {
	spec, err := c.findAsset(from)
	if err != nil {
		return nil, err
	}
	if spec.Partitions == nil {
		return nil, types.NewAppError(types.ErrCodeSensorInvalidDefinition,
			fmt.Sprintf("asset %q has no partition definition", spec.Key.String()), nil)
	}
	return schedule.MapPartitionKeys(key, spec.Partitions, to, c.now())
}
