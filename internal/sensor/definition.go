package sensor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tickwise/internal/types"
)

// Status is the default run state of a definition when first registered.
type Status string

const (
	StatusRunning Status = "RUNNING"
	StatusStopped Status = "STOPPED"
)

// DefaultMinInterval is the minimum seconds between evaluations when a
// definition does not set its own.
const DefaultMinInterval = 30 * time.Second

// EvaluationFunc is the user routine invoked once per tick. It may return
// any mix of RunRequest, SkipReason and RunReaction values; classification
// of that mix is the engine's job, not the routine's.
type EvaluationFunc func(ctx context.Context, ec EvalContext) ([]types.SensorResult, error)

// Definition is a registered sensor: a named evaluation routine bound to
// zero or more target jobs.
type Definition struct {
	name          string
	description   string
	minInterval   time.Duration
	targets       []string
	evalFn        EvaluationFunc
	defaultStatus Status

	// wrapContext upgrades the daemon's base context to the variant the
	// routine expects (asset-aware sensors set this).
	wrapContext func(base *Context) EvalContext
}

// DefinitionConfig configures a sensor definition. JobName and JobNames
// are mutually exclusive.
type DefinitionConfig struct {
	Name          string
	Description   string
	MinInterval   time.Duration
	JobName       string
	JobNames      []string
	Evaluation    EvaluationFunc
	DefaultStatus Status
}

// NewDefinition validates and builds a sensor definition.
func NewDefinition(cfg DefinitionConfig) (*Definition, error) {
	if cfg.Name == "" {
		return nil, types.NewAppError(types.ErrCodeSensorInvalidDefinition,
			"sensor definitions require a name", nil)
	}
	if cfg.Evaluation == nil {
		return nil, types.NewAppError(types.ErrCodeSensorInvalidDefinition,
			fmt.Sprintf("sensor %q has no evaluation function", cfg.Name), nil)
	}
	if cfg.JobName != "" && len(cfg.JobNames) > 0 {
		return nil, types.NewAppError(types.ErrCodeSensorInvalidDefinition,
			fmt.Sprintf("sensor %q sets both job name and job names", cfg.Name), nil)
	}
	targets := cfg.JobNames
	if cfg.JobName != "" {
		targets = []string{cfg.JobName}
	}
	minInterval := cfg.MinInterval
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	status := cfg.DefaultStatus
	if status == "" {
		status = StatusStopped
	}
	return &Definition{
		name:          cfg.Name,
		description:   cfg.Description,
		minInterval:   minInterval,
		targets:       targets,
		evalFn:        cfg.Evaluation,
		defaultStatus: status,
	}, nil
}

// Name returns the sensor name.
func (d *Definition) Name() string { return d.name }

// Description returns the human-readable description.
func (d *Definition) Description() string { return d.description }

// MinInterval is the minimum duration between evaluation ticks.
func (d *Definition) MinInterval() time.Duration { return d.minInterval }

// Targets returns the job names the sensor may request runs of.
func (d *Definition) Targets() []string { return d.targets }

// DefaultStatus is the run state the sensor starts in when registered.
func (d *Definition) DefaultStatus() Status { return d.defaultStatus }

// NewEvalContext upgrades a base per-tick context to the variant this
// definition's routine expects.
func (d *Definition) NewEvalContext(base *Context) EvalContext {
	if d.wrapContext != nil {
		return d.wrapContext(base)
	}
	return base
}

// EvaluateTick runs one evaluation: invoke the routine, classify its
// results, validate run-request targeting, enforce cursor advancement for
// asset-aware contexts, and package the outcome.
func (d *Definition) EvaluateTick(ctx context.Context, ec EvalContext) (*types.ExecutionData, error) {
	if ec == nil {
		return nil, types.NewAppError(types.ErrCodeSensorInvalidInvocation,
			fmt.Sprintf("sensor %q was evaluated without a context", d.name), nil)
	}
	tracker, tracked := ec.(assetCursorTracker)
	if tracked {
		tracker.resetCursorUpdated()
	}

	results, err := d.evalFn(ctx, ec)
	if err != nil {
		return nil, fmt.Errorf("evaluating sensor %q: %w", d.name, err)
	}

	runRequests, skip, reactions, err := d.classify(results)
	if err != nil {
		return nil, err
	}
	if err := d.validateRunRequests(runRequests); err != nil {
		return nil, err
	}
	if tracked && len(runRequests) > 0 && !tracker.cursorUpdated() {
		return nil, types.NewAppError(types.ErrCodeSensorCursorNotAdvanced,
			fmt.Sprintf("sensor %q returned run requests but its cursor was not updated; "+
				"the same materializations would be processed again next tick", d.name), nil)
	}

	var skipMessage string
	if skip != nil {
		skipMessage = skip.Message
	} else if len(runRequests) == 0 && len(reactions) == 0 {
		skipMessage = "sensor function returned an empty result"
	}
	return types.NewExecutionData(runRequests, skipMessage, ec.Cursor(), reactions)
}

// classify partitions the routine's results into the three result kinds,
// rejecting mixes that are ambiguous: a skip is only meaningful as the
// routine's sole output.
func (d *Definition) classify(results []types.SensorResult) ([]types.RunRequest, *types.SkipReason, []types.RunReaction, error) {
	var (
		runRequests []types.RunRequest
		skips       []types.SkipReason
		reactions   []types.RunReaction
	)
	for _, r := range results {
		switch v := r.(type) {
		case nil:
			// A bare nil placeholder counts as no result.
		case types.RunRequest:
			runRequests = append(runRequests, v)
		case types.SkipReason:
			skips = append(skips, v)
		case types.RunReaction:
			reactions = append(reactions, v)
		default:
			return nil, nil, nil, types.NewAppError(types.ErrCodeSensorUnexpectedResult,
				fmt.Sprintf("sensor %q returned an unexpected result of type %T", d.name, r), nil)
		}
	}

	if len(skips) > 0 {
		switch {
		case len(runRequests) > 0:
			return nil, nil, nil, types.NewAppError(types.ErrCodeSensorSkipConflict,
				fmt.Sprintf("sensor %q returned multiple results: expected a single skip reason or one or more run requests, received both", d.name), nil)
		case len(reactions) > 0:
			return nil, nil, nil, types.NewAppError(types.ErrCodeSensorSkipConflict,
				fmt.Sprintf("sensor %q returned multiple results: received both a run reaction and a skip reason", d.name), nil)
		case len(skips) > 1:
			return nil, nil, nil, types.NewAppError(types.ErrCodeSensorSkipConflict,
				fmt.Sprintf("sensor %q returned multiple results: expected a single skip reason, received multiple", d.name), nil)
		}
	}
	var skip *types.SkipReason
	if len(skips) == 1 {
		skip = &skips[0]
	}
	return runRequests, skip, reactions, nil
}

// validateRunRequests checks every run request against the definition's
// job targets.
func (d *Definition) validateRunRequests(runRequests []types.RunRequest) error {
	if len(runRequests) == 0 {
		return nil
	}
	if len(d.targets) == 0 {
		return types.NewAppError(types.ErrCodeSensorMissingTarget,
			fmt.Sprintf("sensor %q returned a run request but has no job target configured", d.name), nil)
	}
	for _, req := range runRequests {
		if req.JobName == "" {
			if len(d.targets) > 1 {
				return types.NewAppErrorWithDetails(types.ErrCodeSensorUnknownTarget,
					fmt.Sprintf("sensor %q did not specify a job name for the requested run; expected one of: %s",
						d.name, strings.Join(d.targets, ", ")), nil,
					map[string]any{"expected": d.targets})
			}
			continue
		}
		if !contains(d.targets, req.JobName) {
			return types.NewAppErrorWithDetails(types.ErrCodeSensorUnknownTarget,
				fmt.Sprintf("sensor %q requested a run of job %q; expected one of: %s",
					d.name, req.JobName, strings.Join(d.targets, ", ")), nil,
				map[string]any{"expected": d.targets})
		}
	}
	return nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
