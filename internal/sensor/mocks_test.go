package sensor

import (
	"context"
	"sort"

	"tickwise/internal/types"
)

// mockInstance is an in-memory event log implementing types.Instance.
type mockInstance struct {
	records   []types.EventRecord
	ephemeral bool
	closed    bool
	queries   int
	err       error
}

func (m *mockInstance) EventRecords(_ context.Context, filter types.EventRecordsFilter, ascending bool, limit int) ([]types.EventRecord, error) {
	m.queries++
	if m.err != nil {
		return nil, m.err
	}
	var out []types.EventRecord
	for _, rec := range m.records {
		if filter.EventType != "" && rec.EventType != filter.EventType {
			continue
		}
		if len(filter.AssetKey.Path) > 0 && rec.AssetKey.String() != filter.AssetKey.String() {
			continue
		}
		if filter.AfterCursor != nil && rec.StorageID <= *filter.AfterCursor {
			continue
		}
		if len(filter.AssetPartitions) > 0 && !containsString(filter.AssetPartitions, rec.Partition) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if ascending {
			return out[i].StorageID < out[j].StorageID
		}
		return out[i].StorageID > out[j].StorageID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockInstance) Close() error {
	m.closed = true
	return nil
}

func (m *mockInstance) Ephemeral() bool { return m.ephemeral }

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// mockRef resolves to a fixed instance, counting resolutions.
type mockRef struct {
	inst     *mockInstance
	resolved int
	err      error
}

func (r *mockRef) Resolve(context.Context) (types.Instance, error) {
	r.resolved++
	if r.err != nil {
		return nil, r.err
	}
	return r.inst, nil
}
