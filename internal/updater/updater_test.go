package updater

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aonescu/kubespresso/internal/annotations"
	"github.com/aonescu/kubespresso/internal/state"
	"github.com/aonescu/kubespresso/internal/types"
)

type failingPatcher struct {
	err error
}

func (f failingPatcher) ConditionalPatch(context.Context, types.Resource, types.AnnotationPatch, string) (types.Resource, error) {
	return types.Resource{}, f.err
}

type recordingPatcher struct {
	version string
	patch   types.AnnotationPatch
}

func (r *recordingPatcher) ConditionalPatch(_ context.Context, res types.Resource, patch types.AnnotationPatch, version string) (types.Resource, error) {
	r.version = version
	r.patch = patch
	return res, nil
}

func seed(c *state.MemoryCluster) types.Resource {
	return c.Apply(types.Resource{
		Kind:        "Job",
		Namespace:   "default",
		Name:        "train-model",
		Annotations: map[string]string{annotations.ExpectedDuration: "120"},
	})
}

func TestApplyMarker_WritesMarker(t *testing.T) {
	c := state.NewMemoryCluster()
	res := seed(c)
	u := New(c, nil)

	result, err := u.ApplyMarker(context.Background(), res, time.Unix(1000, 0))
	require.NoError(t, err)
	assert.Equal(t, Applied, result)

	stored, ok := c.Get("Job", "default", "train-model")
	require.True(t, ok)
	assert.Equal(t, "1000", stored.Annotations[annotations.LastCoffee])
	assert.Equal(t, "120", stored.Annotations[annotations.ExpectedDuration])
	assert.NotEqual(t, res.Version, stored.Version)
}

func TestApplyMarker_SecondWriteWithSameTokenConflicts(t *testing.T) {
	c := state.NewMemoryCluster()
	res := seed(c)
	u := New(c, nil)

	first, err := u.ApplyMarker(context.Background(), res, time.Unix(1000, 0))
	require.NoError(t, err)
	second, err := u.ApplyMarker(context.Background(), res, time.Unix(1001, 0))
	require.NoError(t, err)

	assert.Equal(t, Applied, first)
	assert.Equal(t, Conflict, second)

	stored, _ := c.Get("Job", "default", "train-model")
	assert.Equal(t, "1000", stored.Annotations[annotations.LastCoffee])
}

func TestApplyMarker_StaleToken(t *testing.T) {
	c := state.NewMemoryCluster()
	res := seed(c)

	// someone else touched the Job after our snapshot
	c.Apply(types.Resource{Kind: "Job", Namespace: "default", Name: "train-model"})

	result, err := New(c, nil).ApplyMarker(context.Background(), res, time.Unix(1000, 0))
	require.NoError(t, err)
	assert.Equal(t, Conflict, result)
}

func TestApplyMarker_ConcurrentWriters(t *testing.T) {
	for round := 0; round < 20; round++ {
		c := state.NewMemoryCluster()
		res := seed(c)
		u := New(c, nil)

		const writers = 8
		results := make([]Result, writers)
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				r, err := u.ApplyMarker(context.Background(), res, time.Unix(int64(1000+i), 0))
				assert.NoError(t, err)
				results[i] = r
			}(i)
		}
		wg.Wait()

		applied := 0
		for _, r := range results {
			if r == Applied {
				applied++
			} else {
				assert.Equal(t, Conflict, r)
			}
		}
		assert.Equal(t, 1, applied, "round %d", round)
	}
}

func TestApplyMarker_StoreFault(t *testing.T) {
	boom := errors.New("connection refused")
	u := New(failingPatcher{err: boom}, nil)

	result, err := u.ApplyMarker(context.Background(), types.Resource{Kind: "Job", Name: "x", Version: "3"}, time.Unix(1, 0))
	require.Error(t, err)
	assert.Equal(t, Result(""), result)
	assert.ErrorIs(t, err, types.ErrStoreFault)
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, types.ErrConflict))
}

func TestApplyMarker_WrappedConflict(t *testing.T) {
	u := New(failingPatcher{err: errors.Join(errors.New("409"), types.ErrConflict)}, nil)

	result, err := u.ApplyMarker(context.Background(), types.Resource{Kind: "Job", Name: "x"}, time.Unix(1, 0))
	require.NoError(t, err)
	assert.Equal(t, Conflict, result)
}

func TestApplyMarker_PatchContents(t *testing.T) {
	p := &recordingPatcher{}
	u := New(p, nil)

	_, err := u.ApplyMarker(context.Background(), types.Resource{Kind: "Job", Name: "x"}, time.Unix(1234, 0))
	require.NoError(t, err)

	assert.Equal(t, types.UnsetVersion, p.version)
	assert.Equal(t, map[string]string{annotations.LastCoffee: "1234"}, p.patch.Annotations)
}
