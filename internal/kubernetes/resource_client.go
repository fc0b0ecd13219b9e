package k8s

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	k8stypes "k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"

	"github.com/aonescu/kubespresso/internal/annotations"
	"github.com/aonescu/kubespresso/internal/types"
)

// ResourceClient reads and conditionally patches objects of one resource type.
type ResourceClient struct {
	client dynamic.Interface
	gvr    schema.GroupVersionResource
	logger *zap.Logger
}

func NewResourceClient(client dynamic.Interface, gvr schema.GroupVersionResource, logger *zap.Logger) *ResourceClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResourceClient{
		client: client,
		gvr:    gvr,
		logger: logger.Named("resource-client"),
	}
}

// ConditionalPatch sends a merge patch carrying expectedVersion as
// metadata.resourceVersion. The API server answers 409 when the object moved
// on, which is reported as types.ErrConflict.
func (c *ResourceClient) ConditionalPatch(ctx context.Context, res types.Resource, patch types.AnnotationPatch, expectedVersion string) (types.Resource, error) {
	body, err := annotations.MergePatch(patch, expectedVersion)
	if err != nil {
		return types.Resource{}, fmt.Errorf("failed to build patch: %w", err)
	}

	obj, err := c.client.Resource(c.gvr).Namespace(res.Namespace).Patch(
		ctx, res.Name, k8stypes.MergePatchType, body,
		metav1.PatchOptions{FieldManager: FieldManager},
	)
	if err != nil {
		if apierrors.IsConflict(err) {
			return types.Resource{}, fmt.Errorf("%w: %v", types.ErrConflict, err)
		}
		return types.Resource{}, err
	}

	c.logger.Debug("Patched annotations",
		zap.String("namespace", res.Namespace),
		zap.String("name", res.Name),
		zap.String("resource_version", obj.GetResourceVersion()))
	return ResourceFromObject(obj, res.Kind)
}

// Get returns the current snapshot of namespace/name.
func (c *ResourceClient) Get(ctx context.Context, kind, namespace, name string) (types.Resource, error) {
	obj, err := c.client.Resource(c.gvr).Namespace(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return types.Resource{}, err
	}
	return ResourceFromObject(obj, kind)
}
