package state

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aonescu/kubespresso/internal/types"
)

func TestMemoryCluster_ApplyAssignsVersions(t *testing.T) {
	c := NewMemoryCluster()

	first := c.Apply(types.Resource{Kind: "Job", Namespace: "ns", Name: "a"})
	second := c.Apply(types.Resource{Kind: "Job", Namespace: "ns", Name: "b"})

	assert.Equal(t, "1", first.Version)
	assert.Equal(t, "2", second.Version)

	got, ok := c.Get("Job", "ns", "a")
	require.True(t, ok)
	assert.Equal(t, "1", got.Version)
	assert.NotNil(t, got.Annotations)
}

func TestMemoryCluster_ConditionalPatch(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCluster()
	res := c.Apply(types.Resource{Kind: "Job", Namespace: "ns", Name: "a",
		Annotations: map[string]string{"keep": "me"}})

	patch := types.AnnotationPatch{Annotations: map[string]string{"set": "1"}}
	updated, err := c.ConditionalPatch(ctx, res, patch, res.Version)
	require.NoError(t, err)
	assert.Equal(t, "2", updated.Version)
	assert.Equal(t, "me", updated.Annotations["keep"])
	assert.Equal(t, "1", updated.Annotations["set"])

	_, err = c.ConditionalPatch(ctx, res, patch, res.Version)
	assert.True(t, errors.Is(err, types.ErrConflict))
}

func TestMemoryCluster_PatchMissing(t *testing.T) {
	c := NewMemoryCluster()
	_, err := c.ConditionalPatch(context.Background(), types.Resource{Kind: "Job", Name: "gone"},
		types.AnnotationPatch{}, "1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, types.ErrConflict))
}

func TestMemoryCluster_SnapshotsAreIsolated(t *testing.T) {
	c := NewMemoryCluster()
	res := c.Apply(types.Resource{Kind: "Job", Name: "a", Annotations: map[string]string{"k": "v"}})

	res.Annotations["k"] = "mutated"

	got, _ := c.Get("Job", "", "a")
	assert.Equal(t, "v", got.Annotations["k"])
}

func TestMemoryCluster_CancelledContext(t *testing.T) {
	c := NewMemoryCluster()
	res := c.Apply(types.Resource{Kind: "Job", Name: "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ConditionalPatch(ctx, res, types.AnnotationPatch{}, res.Version)
	assert.ErrorIs(t, err, context.Canceled)
}
