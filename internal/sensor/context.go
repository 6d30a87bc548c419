// Package sensor implements sensor evaluation: per-tick contexts carrying
// an opaque cursor, asset-aware context variants over the event log, and
// the evaluation engine that classifies user-routine results into run
// requests, skips, and reactions.
package sensor

import (
	"context"
	"time"

	"tickwise/internal/types"
)

// Ref lazily resolves a persistent instance. Implementations live with the
// storage layer; contexts built from a Ref own the resolved instance and
// close it when the context closes.
type Ref interface {
	Resolve(ctx context.Context) (types.Instance, error)
}

// EvalContext is the surface the evaluation engine and user routines share.
// The concrete type is *Context or one of its asset-aware variants.
type EvalContext interface {
	Cursor() string
	UpdateCursor(cursor string)
	Instance(ctx context.Context) (types.Instance, error)
	RepositoryName() string
}

// assetCursorTracker is implemented by asset-aware contexts whose cursor
// advancement is enforced by the engine: a tick that produces run requests
// without advancing the cursor fails.
type assetCursorTracker interface {
	resetCursorUpdated()
	cursorUpdated() bool
}

// Context is the per-tick evaluation context for a plain sensor. It is not
// safe for concurrent use; each tick gets a fresh context.
type Context struct {
	ref    Ref
	inst   types.Instance
	owned  bool
	cursor string

	lastCompletionTime time.Time
	lastRunKey         string
	repositoryName     string
	now                func() time.Time
}

// ContextConfig carries everything a daemon (or test harness) knows about
// the tick being evaluated. Either Instance or Ref may be set; Instance
// wins and is not closed by the context.
type ContextConfig struct {
	Ref      Ref
	Instance types.Instance
	// Cursor is the opaque cursor persisted after the previous successful
	// tick, empty on the first evaluation.
	Cursor             string
	LastCompletionTime time.Time
	LastRunKey         string
	RepositoryName     string
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewContext builds a per-tick context. Daemon-side constructor; for
// out-of-band invocation use BuildContext, which checks durability.
func NewContext(cfg ContextConfig) *Context {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Context{
		ref:                cfg.Ref,
		inst:               cfg.Instance,
		cursor:             cfg.Cursor,
		lastCompletionTime: cfg.LastCompletionTime,
		lastRunKey:         cfg.LastRunKey,
		repositoryName:     cfg.RepositoryName,
		now:                now,
	}
}

// BuildContext builds a context for direct, out-of-band invocation of a
// sensor. A provided instance must be durable so that cursor state written
// during evaluation can outlive the call.
func BuildContext(cfg ContextConfig) (*Context, error) {
	if cfg.Instance != nil && cfg.Instance.Ephemeral() {
		return nil, types.NewAppError(types.ErrCodeInstanceNotDurable,
			"direct sensor invocation requires a durable instance", nil)
	}
	return NewContext(cfg), nil
}

// Instance returns the bound instance, resolving it from the Ref on first
// use. Instances resolved here are owned by the context and closed by
// Close.
func (c *Context) Instance(ctx context.Context) (types.Instance, error) {
	if c.inst != nil {
		return c.inst, nil
	}
	if c.ref == nil {
		return nil, types.NewAppError(types.ErrCodeInstanceNotConfigured,
			"attempted to access the instance, but no instance or instance reference was provided", nil)
	}
	inst, err := c.ref.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	c.inst = inst
	c.owned = true
	return c.inst, nil
}

// Close releases an instance the context resolved itself. Instances passed
// in by the caller are left open.
func (c *Context) Close() error {
	if !c.owned || c.inst == nil {
		return nil
	}
	err := c.inst.Close()
	c.inst = nil
	c.owned = false
	return err
}

// Cursor returns the opaque cursor as of the start of the tick, or as last
// set by UpdateCursor during it.
func (c *Context) Cursor() string { return c.cursor }

// UpdateCursor stages a new cursor value. It is persisted by the caller
// only if the tick completes successfully.
func (c *Context) UpdateCursor(cursor string) { c.cursor = cursor }

// LastCompletionTime is the completion time of the previous tick, zero on
// the first evaluation.
func (c *Context) LastCompletionTime() time.Time { return c.lastCompletionTime }

// LastRunKey is the run key of the last launched run. Legacy field kept
// for routines that dedupe on it instead of the cursor.
func (c *Context) LastRunKey() string { return c.lastRunKey }

// RepositoryName names the repository the sensor is defined in.
func (c *Context) RepositoryName() string { return c.repositoryName }
