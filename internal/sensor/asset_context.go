package sensor

import (
	"context"
	"encoding/json"
	"fmt"

	"tickwise/internal/types"
)

// MultiAssetContext is the evaluation context for sensors that monitor a
// fixed set of asset keys. Its cursor is a JSON object mapping each
// canonical asset key string to the highest event-log offset already
// consumed for that asset.
type MultiAssetContext struct {
	*Context
	assetKeys []types.AssetKey
	updated   bool
}

// NewMultiAssetContext builds a multi-asset context over the given keys.
func NewMultiAssetContext(cfg ContextConfig, assetKeys []types.AssetKey) *MultiAssetContext {
	return &MultiAssetContext{Context: NewContext(cfg), assetKeys: assetKeys}
}

// BuildMultiAssetContext is the out-of-band counterpart of
// NewMultiAssetContext; it checks instance durability.
func BuildMultiAssetContext(cfg ContextConfig, assetKeys []types.AssetKey) (*MultiAssetContext, error) {
	base, err := BuildContext(cfg)
	if err != nil {
		return nil, err
	}
	return &MultiAssetContext{Context: base, assetKeys: assetKeys}, nil
}

// AssetKeys returns the monitored key set.
func (c *MultiAssetContext) AssetKeys() []types.AssetKey { return c.assetKeys }

func (c *MultiAssetContext) resetCursorUpdated() { c.updated = false }
func (c *MultiAssetContext) cursorUpdated() bool { return c.updated }

// cursorOffsets decodes the JSON cursor into per-asset offsets. An empty
// cursor decodes to an empty map.
func (c *MultiAssetContext) cursorOffsets() (map[string]int64, error) {
	offsets := make(map[string]int64)
	if c.Cursor() == "" {
		return offsets, nil
	}
	if err := json.Unmarshal([]byte(c.Cursor()), &offsets); err != nil {
		return nil, types.NewAppError(types.ErrCodeSensorInvalidCursor,
			fmt.Sprintf("cursor %q is not a valid asset cursor", c.Cursor()), err)
	}
	return offsets, nil
}

// LatestRecordsByKey fetches, per asset key, the most recent
// materialization past the asset's cursor offset. Keys with no new
// materialization map to nil. With no arguments every monitored key is
// fetched.
func (c *MultiAssetContext) LatestRecordsByKey(ctx context.Context, keys ...types.AssetKey) (map[string]*types.EventRecord, error) {
	if len(keys) == 0 {
		keys = c.assetKeys
	}
	offsets, err := c.cursorOffsets()
	if err != nil {
		return nil, err
	}
	inst, err := c.Instance(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*types.EventRecord, len(keys))
	for _, key := range keys {
		filter := types.EventRecordsFilter{
			EventType: types.EventTypeMaterialization,
			AssetKey:  key,
		}
		if off, ok := offsets[key.String()]; ok {
			after := off
			filter.AfterCursor = &after
		}
		records, err := inst.EventRecords(ctx, filter, false, 1)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			out[key.String()] = nil
			continue
		}
		rec := records[0]
		out[key.String()] = &rec
	}
	return out, nil
}

// RecordsForKey fetches up to limit materializations for one asset past
// its cursor offset, in ascending storage order.
func (c *MultiAssetContext) RecordsForKey(ctx context.Context, key types.AssetKey, limit int) ([]types.EventRecord, error) {
	offsets, err := c.cursorOffsets()
	if err != nil {
		return nil, err
	}
	inst, err := c.Instance(ctx)
	if err != nil {
		return nil, err
	}
	filter := types.EventRecordsFilter{
		EventType: types.EventTypeMaterialization,
		AssetKey:  key,
	}
	if off, ok := offsets[key.String()]; ok {
		after := off
		filter.AfterCursor = &after
	}
	return inst.EventRecords(ctx, filter, true, limit)
}

// AdvanceCursor moves the per-asset offsets past the given records, keyed
// by canonical asset key string. Nil records leave that asset's offset
// unchanged. The merged cursor is staged via UpdateCursor.
func (c *MultiAssetContext) AdvanceCursor(records map[string]*types.EventRecord) error {
	offsets, err := c.cursorOffsets()
	if err != nil {
		return err
	}
	for key, rec := range records {
		if rec != nil {
			offsets[key] = rec.StorageID
		}
	}
	raw, err := json.Marshal(offsets)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode asset cursor", err)
	}
	c.UpdateCursor(string(raw))
	c.updated = true
	return nil
}

// AdvanceAllCursors fetches the latest record for every monitored asset
// and advances past all of them.
func (c *MultiAssetContext) AdvanceAllCursors(ctx context.Context) error {
	latest, err := c.LatestRecordsByKey(ctx)
	if err != nil {
		return err
	}
	return c.AdvanceCursor(latest)
}
