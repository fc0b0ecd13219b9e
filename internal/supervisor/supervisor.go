// Package supervisor keeps a watch session alive across disconnects.
//
// The reconciler stops when its stream ends or fails; the supervisor opens a
// new stream and runs it again. Clean ends (the API server closes watches
// routinely) reconnect right away, failures back off exponentially.
package supervisor

import (
	"context"
	"time"

	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/wait"
)

// Session opens one stream and processes it until it ends.
type Session func(ctx context.Context) error

func DefaultBackoff() wait.Backoff {
	return wait.Backoff{
		Duration: time.Second,
		Factor:   2,
		Jitter:   0.1,
		Steps:    10,
		Cap:      time.Minute,
	}
}

// Supervise runs session until ctx is cancelled. It returns ctx.Err().
func Supervise(ctx context.Context, backoff wait.Backoff, session Session, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("supervisor")

	current := backoff
	sessions := 0
	for {
		sessions++
		err := session(ctx)
		if ctx.Err() != nil {
			logger.Info("Stopping, context done", zap.Int("sessions", sessions))
			return ctx.Err()
		}

		if err == nil {
			logger.Info("Event stream ended, reconnecting", zap.Int("sessions", sessions))
			current = backoff
			continue
		}

		delay := current.Step()
		logger.Warn("Event stream failed, reconnecting after backoff",
			zap.Error(err),
			zap.Duration("backoff", delay),
			zap.Int("sessions", sessions))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
