package sensor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickwise/internal/types"
)

func TestContextLazyInstance(t *testing.T) {
	ref := &mockRef{inst: &mockInstance{}}
	ec := NewContext(ContextConfig{Ref: ref})

	inst, err := ec.Instance(context.Background())
	require.NoError(t, err)
	require.NotNil(t, inst)
	assert.Equal(t, 1, ref.resolved)

	// Second access reuses the resolved instance.
	_, err = ec.Instance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ref.resolved)

	// Close releases only instances the context resolved itself.
	require.NoError(t, ec.Close())
	assert.True(t, ref.inst.closed)
}

func TestContextWithoutInstance(t *testing.T) {
	ec := NewContext(ContextConfig{})
	_, err := ec.Instance(context.Background())
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInstanceNotConfigured, appErr.Code)
}

func TestContextDoesNotCloseProvidedInstance(t *testing.T) {
	inst := &mockInstance{}
	ec := NewContext(ContextConfig{Instance: inst})
	_, err := ec.Instance(context.Background())
	require.NoError(t, err)
	require.NoError(t, ec.Close())
	assert.False(t, inst.closed)
}

func TestBuildContextRejectsEphemeralInstance(t *testing.T) {
	_, err := BuildContext(ContextConfig{Instance: &mockInstance{ephemeral: true}})
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInstanceNotDurable, appErr.Code)

	_, err = BuildContext(ContextConfig{Instance: &mockInstance{}})
	require.NoError(t, err)
}

func TestContextCursorRoundTrip(t *testing.T) {
	ec := NewContext(ContextConfig{Cursor: "opaque-bytes-123"})
	assert.Equal(t, "opaque-bytes-123", ec.Cursor())
	ec.UpdateCursor(`{"arbitrary": "json"}`)
	assert.Equal(t, `{"arbitrary": "json"}`, ec.Cursor())
}
