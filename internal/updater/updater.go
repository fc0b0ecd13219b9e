package updater

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aonescu/kubespresso/internal/annotations"
	"github.com/aonescu/kubespresso/internal/types"
)

// Patcher submits a conditional annotation patch to the store that owns the
// resource. It must return an error wrapping types.ErrConflict when
// expectedVersion no longer matches the stored object.
type Patcher interface {
	ConditionalPatch(ctx context.Context, res types.Resource, patch types.AnnotationPatch, expectedVersion string) (types.Resource, error)
}

type Result string

const (
	Applied  Result = "applied"
	Conflict Result = "conflict"
)

type Updater struct {
	store  Patcher
	logger *zap.Logger
}

func New(store Patcher, logger *zap.Logger) *Updater {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Updater{
		store:  store,
		logger: logger.Named("updater"),
	}
}

// ApplyMarker claims the current cooldown window by writing the LastCoffee
// marker conditioned on the snapshot's version token. A stale token yields
// Conflict with a nil error; it is never retried here. Any other store
// failure is returned wrapped in types.ErrStoreFault.
func (u *Updater) ApplyMarker(ctx context.Context, res types.Resource, now time.Time) (Result, error) {
	patch := types.AnnotationPatch{
		Annotations: map[string]string{
			annotations.LastCoffee: annotations.Marker(now.Unix()),
		},
	}

	version := res.Version
	if version == "" {
		version = types.UnsetVersion
	}

	updated, err := u.store.ConditionalPatch(ctx, res, patch, version)
	if err != nil {
		if errors.Is(err, types.ErrConflict) {
			u.logger.Debug("Marker write rejected, version is stale",
				zap.String("resource", res.Key()),
				zap.String("version", version),
				zap.Error(err))
			return Conflict, nil
		}
		return "", fmt.Errorf("%w: patch %s: %w", types.ErrStoreFault, res.Key(), err)
	}

	u.logger.Debug("Marker written",
		zap.String("resource", res.Key()),
		zap.String("previous_version", version),
		zap.String("version", updated.Version))
	return Applied, nil
}
