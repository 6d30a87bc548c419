package sensor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"tickwise/internal/types"
)

// AssetEvaluationFunc is the routine of a single-asset sensor. It is
// invoked only when a new materialization of the monitored asset exists,
// and receives that record.
type AssetEvaluationFunc func(ctx context.Context, ec EvalContext, record types.EventRecord) ([]types.SensorResult, error)

// AssetSensorConfig configures a single-asset sensor.
type AssetSensorConfig struct {
	Name          string
	Description   string
	AssetKey      types.AssetKey
	MinInterval   time.Duration
	JobName       string
	JobNames      []string
	Evaluation    AssetEvaluationFunc
	DefaultStatus Status
}

// NewAssetSensor builds a sensor that watches one asset key. The cursor is
// the decimal storage offset of the last materialization seen; it advances
// automatically after every invocation of the routine.
func NewAssetSensor(cfg AssetSensorConfig) (*Definition, error) {
	if len(cfg.AssetKey.Path) == 0 {
		return nil, types.NewAppError(types.ErrCodeSensorInvalidDefinition,
			fmt.Sprintf("asset sensor %q requires an asset key", cfg.Name), nil)
	}
	if cfg.Evaluation == nil {
		return nil, types.NewAppError(types.ErrCodeSensorInvalidDefinition,
			fmt.Sprintf("asset sensor %q has no evaluation function", cfg.Name), nil)
	}
	userFn := cfg.Evaluation
	assetKey := cfg.AssetKey

	wrapped := func(ctx context.Context, ec EvalContext) ([]types.SensorResult, error) {
		filter := types.EventRecordsFilter{
			EventType: types.EventTypeMaterialization,
			AssetKey:  assetKey,
		}
		if cur := ec.Cursor(); cur != "" {
			after, err := strconv.ParseInt(cur, 10, 64)
			if err != nil {
				return nil, types.NewAppError(types.ErrCodeSensorInvalidCursor,
					fmt.Sprintf("cursor %q is not a valid storage offset", cur), err)
			}
			filter.AfterCursor = &after
		}
		inst, err := ec.Instance(ctx)
		if err != nil {
			return nil, err
		}
		records, err := inst.EventRecords(ctx, filter, false, 1)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, nil
		}
		record := records[0]
		results, err := userFn(ctx, ec, record)
		if err != nil {
			return nil, err
		}
		ec.UpdateCursor(strconv.FormatInt(record.StorageID, 10))
		return results, nil
	}

	return NewDefinition(DefinitionConfig{
		Name:          cfg.Name,
		Description:   cfg.Description,
		MinInterval:   cfg.MinInterval,
		JobName:       cfg.JobName,
		JobNames:      cfg.JobNames,
		Evaluation:    wrapped,
		DefaultStatus: cfg.DefaultStatus,
	})
}

// MultiAssetEvaluationFunc is the routine of a multi-asset sensor.
type MultiAssetEvaluationFunc func(ctx context.Context, ec *MultiAssetContext) ([]types.SensorResult, error)

// MultiAssetSensorConfig configures a sensor over a fixed set of asset
// keys.
type MultiAssetSensorConfig struct {
	Name          string
	Description   string
	AssetKeys     []types.AssetKey
	MinInterval   time.Duration
	JobName       string
	JobNames      []string
	Evaluation    MultiAssetEvaluationFunc
	DefaultStatus Status
}

// NewMultiAssetSensor builds a sensor whose routine sees a
// MultiAssetContext. Routines that produce run requests must advance the
// context cursor or the tick fails.
func NewMultiAssetSensor(cfg MultiAssetSensorConfig) (*Definition, error) {
	if len(cfg.AssetKeys) == 0 {
		return nil, types.NewAppError(types.ErrCodeSensorInvalidDefinition,
			fmt.Sprintf("multi-asset sensor %q requires at least one asset key", cfg.Name), nil)
	}
	userFn := cfg.Evaluation
	if userFn == nil {
		return nil, types.NewAppError(types.ErrCodeSensorInvalidDefinition,
			fmt.Sprintf("multi-asset sensor %q has no evaluation function", cfg.Name), nil)
	}
	assetKeys := cfg.AssetKeys

	wrapped := func(ctx context.Context, ec EvalContext) ([]types.SensorResult, error) {
		mac, ok := ec.(*MultiAssetContext)
		if !ok {
			return nil, types.NewAppError(types.ErrCodeSensorInvalidInvocation,
				fmt.Sprintf("multi-asset sensor %q requires a multi-asset evaluation context", cfg.Name), nil)
		}
		return userFn(ctx, mac)
	}

	def, err := NewDefinition(DefinitionConfig{
		Name:          cfg.Name,
		Description:   cfg.Description,
		MinInterval:   cfg.MinInterval,
		JobName:       cfg.JobName,
		JobNames:      cfg.JobNames,
		Evaluation:    wrapped,
		DefaultStatus: cfg.DefaultStatus,
	})
	if err != nil {
		return nil, err
	}
	def.wrapContext = func(base *Context) EvalContext {
		return &MultiAssetContext{Context: base, assetKeys: assetKeys}
	}
	return def, nil
}

// PartitionedEvaluationFunc is the routine of a partitioned-asset sensor.
type PartitionedEvaluationFunc func(ctx context.Context, ec *PartitionedContext) ([]types.SensorResult, error)

// PartitionedSensorConfig configures a sensor over partitioned assets.
type PartitionedSensorConfig struct {
	Name          string
	Description   string
	Assets        []AssetSpec
	MinInterval   time.Duration
	JobName       string
	JobNames      []string
	Evaluation    PartitionedEvaluationFunc
	DefaultStatus Status
}

// NewPartitionedAssetSensor builds a sensor whose routine sees a
// PartitionedContext. The cursor-advance rule of multi-asset sensors
// applies.
func NewPartitionedAssetSensor(cfg PartitionedSensorConfig) (*Definition, error) {
	if len(cfg.Assets) == 0 {
		return nil, types.NewAppError(types.ErrCodeSensorInvalidDefinition,
			fmt.Sprintf("partitioned sensor %q requires at least one asset", cfg.Name), nil)
	}
	userFn := cfg.Evaluation
	if userFn == nil {
		return nil, types.NewAppError(types.ErrCodeSensorInvalidDefinition,
			fmt.Sprintf("partitioned sensor %q has no evaluation function", cfg.Name), nil)
	}
	assets := cfg.Assets

	wrapped := func(ctx context.Context, ec EvalContext) ([]types.SensorResult, error) {
		pc, ok := ec.(*PartitionedContext)
		if !ok {
			return nil, types.NewAppError(types.ErrCodeSensorInvalidInvocation,
				fmt.Sprintf("partitioned sensor %q requires a partitioned evaluation context", cfg.Name), nil)
		}
		return userFn(ctx, pc)
	}

	def, err := NewDefinition(DefinitionConfig{
		Name:          cfg.Name,
		Description:   cfg.Description,
		MinInterval:   cfg.MinInterval,
		JobName:       cfg.JobName,
		JobNames:      cfg.JobNames,
		Evaluation:    wrapped,
		DefaultStatus: cfg.DefaultStatus,
	})
	if err != nil {
		return nil, err
	}
	def.wrapContext = func(base *Context) EvalContext {
		return &PartitionedContext{Context: base, assets: assets}
	}
	return def, nil
}
