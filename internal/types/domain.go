// Package types defines the shared domain model for the Tickwise platform:
// event log records, sensor evaluation results, and the error taxonomy.
// It has no dependencies on other internal packages so that every layer
// (schedule math, sensor engine, storage, daemon) can share these types
// without import cycles.
package types

import (
	"strings"
	"time"
)

// AssetKey identifies a monitored asset. Multi-part keys are joined with
// "/" in their string form (e.g. "warehouse/daily_orders").
type AssetKey struct {
	Path []string
}

// NewAssetKey builds an AssetKey from path segments.
func NewAssetKey(path ...string) AssetKey {
	return AssetKey{Path: path}
}

// String renders the key in its canonical "/"-joined form. This form is
// used as the map key inside asset cursors and must be stable.
func (k AssetKey) String() string {
	return strings.Join(k.Path, "/")
}

// EventType classifies entries in the event log.
type EventType string

const (
	EventTypeMaterialization EventType = "asset_materialization"
	EventTypeObservation     EventType = "asset_observation"
)

// EventRecord is one entry in the instance event log. StorageID is a
// monotonically increasing offset assigned by the log; cursors advance
// past it to avoid reprocessing.
type EventRecord struct {
	StorageID int64
	EventType EventType
	AssetKey  AssetKey
	// Partition is the partition label attached to the event, empty for
	// unpartitioned assets.
	Partition string
	Timestamp time.Time
}

// EventRecordsFilter narrows an event log query. AfterCursor, when non-nil,
// restricts results to records with StorageID strictly greater than the
// given offset. AssetPartitions, when non-empty, restricts results to the
// named partitions.
type EventRecordsFilter struct {
	EventType       EventType
	AssetKey        AssetKey
	AfterCursor     *int64
	AssetPartitions []string
}

// SensorResult is the closed set of values a sensor evaluation routine may
// produce: RunRequest, SkipReason, or RunReaction. The interface is sealed
// so that classification in the evaluation engine is exhaustive.
type SensorResult interface {
	isSensorResult()
}

// RunRequest asks the caller to launch one run of a targeted job.
type RunRequest struct {
	// RunKey is a user-provided idempotence token. The launcher skips a
	// request whose key matches an already-launched run.
	RunKey string
	// JobName selects the target job. Required when the sensor declares
	// multiple targets; optional (defaults to the single target) otherwise.
	JobName string
	Tags    map[string]string
	// RunConfig is passed opaquely to the launched run.
	RunConfig map[string]any
}

func (RunRequest) isSensorResult() {}

// SkipReason signals that no action is needed this tick.
type SkipReason struct {
	Message string
}

func (SkipReason) isSensorResult() {}

// RunReaction is the legacy result kind reporting on a run that already
// happened (e.g. a failure hook). Carried through classification untouched.
type RunReaction struct {
	RunID string
	Err   error
}

func (RunReaction) isSensorResult() {}

// ExecutionData is the output of one sensor evaluation tick.
//
// Invariant: RunRequests and SkipMessage are never both non-empty; use
// NewExecutionData to construct.
type ExecutionData struct {
	RunRequests  []RunRequest
	SkipMessage  string
	Cursor       string
	RunReactions []RunReaction
}

// NewExecutionData packages a tick's outcome, enforcing the run-or-skip
// exclusivity invariant.
func NewExecutionData(runRequests []RunRequest, skipMessage string, cursor string, reactions []RunReaction) (*ExecutionData, error) {
	if len(runRequests) > 0 && skipMessage != "" {
		return nil, NewAppError(ErrCodeInternalUnexpected, "found both skip data and run request data", nil)
	}
	return &ExecutionData{
		RunRequests:  runRequests,
		SkipMessage:  skipMessage,
		Cursor:       cursor,
		RunReactions: reactions,
	}, nil
}

// RunStatus tracks the lifecycle of a launched run.
type RunStatus string

const (
	RunStatusQueued  RunStatus = "queued"
	RunStatusStarted RunStatus = "started"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// Run is a launched execution of a job, created from a RunRequest.
type Run struct {
	ID        string
	JobName   string
	RunKey    string
	Tags      map[string]string
	Status    RunStatus
	CreatedAt time.Time
}
