package state

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/aonescu/kubespresso/internal/types"
)

// MemoryCluster is an in-process resource store with the same conditional
// write semantics as the API server: every successful write bumps the
// version token, and a write carrying an older token is rejected.
type MemoryCluster struct {
	mu        sync.Mutex
	resources map[string]types.Resource
	version   int64
}

func NewMemoryCluster() *MemoryCluster {
	return &MemoryCluster{
		resources: make(map[string]types.Resource),
	}
}

func clusterKey(kind, namespace, name string) string {
	return kind + "/" + namespace + "/" + name
}

// Apply creates or replaces a resource and returns the stored snapshot with
// its new version token.
func (c *MemoryCluster) Apply(res types.Resource) types.Resource {
	c.mu.Lock()
	defer c.mu.Unlock()

	res.Annotations = copyAnnotations(res.Annotations)
	res.Version = c.nextVersion()
	c.resources[clusterKey(res.Kind, res.Namespace, res.Name)] = res
	return snapshot(res)
}

func (c *MemoryCluster) Get(kind, namespace, name string) (types.Resource, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, ok := c.resources[clusterKey(kind, namespace, name)]
	if !ok {
		return types.Resource{}, false
	}
	return snapshot(res), true
}

func (c *MemoryCluster) Delete(kind, namespace, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.resources, clusterKey(kind, namespace, name))
}

func (c *MemoryCluster) ConditionalPatch(ctx context.Context, res types.Resource, patch types.AnnotationPatch, expectedVersion string) (types.Resource, error) {
	if err := ctx.Err(); err != nil {
		return types.Resource{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := clusterKey(res.Kind, res.Namespace, res.Name)
	current, ok := c.resources[key]
	if !ok {
		return types.Resource{}, fmt.Errorf("%s not found", key)
	}
	if current.Version != expectedVersion {
		return types.Resource{}, fmt.Errorf("%w: %s is at version %s, patch expected %s",
			types.ErrConflict, key, current.Version, expectedVersion)
	}

	current.Annotations = copyAnnotations(current.Annotations)
	for k, v := range patch.Annotations {
		current.Annotations[k] = v
	}
	current.Version = c.nextVersion()
	c.resources[key] = current
	return snapshot(current), nil
}

func (c *MemoryCluster) nextVersion() string {
	c.version++
	return strconv.FormatInt(c.version, 10)
}

func snapshot(res types.Resource) types.Resource {
	res.Annotations = copyAnnotations(res.Annotations)
	return res
}

func copyAnnotations(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
