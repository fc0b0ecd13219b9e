package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aonescu/kubespresso/internal/policy"
	"github.com/aonescu/kubespresso/internal/state"
	"github.com/aonescu/kubespresso/internal/types"
	"github.com/aonescu/kubespresso/internal/updater"
)

// ErrStreamFault wraps failures reported by the event source itself.
var ErrStreamFault = errors.New("event stream fault")

// Source yields events one at a time. It returns types.ErrEndOfStream when
// the stream is exhausted.
type Source interface {
	Next(ctx context.Context) (types.Event, error)
}

// Action is the side effect guarded by the marker. Its own failures are
// its business; the reconciler never observes them.
type Action interface {
	Perform(ctx context.Context)
}

type ActionFunc func(ctx context.Context)

func (f ActionFunc) Perform(ctx context.Context) { f(ctx) }

// MarkerWriter is satisfied by *updater.Updater.
type MarkerWriter interface {
	ApplyMarker(ctx context.Context, res types.Resource, now time.Time) (updater.Result, error)
}

type Config struct {
	Source  Source
	Policy  *policy.Policy
	Updater MarkerWriter
	Action  Action
	// Journal is optional.
	Journal state.Journal
	// Clock defaults to time.Now.
	Clock  func() time.Time
	Logger *zap.Logger
}

// Reconciler handles one event at a time. It keeps no state between events;
// everything it needs to remember lives in the resource annotations.
type Reconciler struct {
	source  Source
	policy  *policy.Policy
	updater MarkerWriter
	action  Action
	journal state.Journal
	clock   func() time.Time
	logger  *zap.Logger
}

func New(cfg Config) (*Reconciler, error) {
	if cfg.Policy == nil {
		return nil, errors.New("policy is required")
	}
	if cfg.Updater == nil {
		return nil, errors.New("updater is required")
	}
	if cfg.Action == nil {
		return nil, errors.New("action is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Reconciler{
		source:  cfg.Source,
		policy:  cfg.Policy,
		updater: cfg.Updater,
		action:  cfg.Action,
		journal: cfg.Journal,
		clock:   cfg.Clock,
		logger:  cfg.Logger.Named("reconciler"),
	}, nil
}

// Run consumes the source until it is exhausted (nil), the context is
// cancelled (ctx.Err()) or the source fails (ErrStreamFault). Errors from
// individual events are logged and do not stop the loop.
func (r *Reconciler) Run(ctx context.Context) error {
	if r.source == nil {
		return errors.New("no event source configured")
	}

	r.logger.Info("Start processing event stream")
	handled, failed := 0, 0
	for {
		event, err := r.source.Next(ctx)
		if err != nil {
			if errors.Is(err, types.ErrEndOfStream) {
				r.logger.Info("Event stream ended", zap.Int("handled", handled), zap.Int("failed", failed))
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("%w: %w", ErrStreamFault, err)
		}

		handled++
		if _, err := r.Handle(ctx, event); err != nil {
			failed++
		}
	}
}

// Handle evaluates a single event. The marker write always precedes the
// action, so the action never fires without a recorded claim.
func (r *Reconciler) Handle(ctx context.Context, event types.Event) (types.Decision, error) {
	now := r.clock()
	res := event.Resource
	log := r.logger.With(
		zap.String("event", string(event.Type)),
		zap.String("kind", res.Kind),
		zap.String("namespace", res.Namespace),
		zap.String("name", res.Name),
		zap.String("version", res.Version),
	)
	log.Debug(fmt.Sprintf("handling event %s for %s", event.Type, res.Name))

	decision := types.Decision{
		ID:        uuid.NewString(),
		Kind:      res.Kind,
		Namespace: res.Namespace,
		Name:      res.Name,
		UID:       res.UID,
		EventType: event.Type,
		Version:   res.Version,
		DecidedAt: now,
	}

	verdict := r.policy.Evaluate(event, now)
	decision.Reason = string(verdict.Reason)
	if !verdict.Eligible {
		log.Info("Not ordering coffee", zap.String("reason", decision.Reason))
		decision.Outcome = types.Ineligible
		r.record(ctx, decision)
		return decision, nil
	}

	result, err := r.updater.ApplyMarker(ctx, res, now)
	if err != nil {
		log.Error("Failed to record coffee marker", zap.Error(err))
		decision.Outcome = types.Failed
		decision.Error = err.Error()
		r.record(ctx, decision)
		return decision, err
	}

	if result == updater.Conflict {
		log.Info("Lost the race, resource changed since this snapshot; waiting for the next event")
		decision.Outcome = types.Conflicted
		decision.Reason = "version conflict"
		r.record(ctx, decision)
		return decision, nil
	}

	r.action.Perform(ctx)
	log.Info("Coffee ordered",
		zap.Int64("expected_duration_seconds", verdict.ExpectedDuration),
		zap.Time("marker", now))
	decision.Outcome = types.Acted
	r.record(ctx, decision)
	return decision, nil
}

func (r *Reconciler) record(ctx context.Context, decision types.Decision) {
	if r.journal == nil {
		return
	}
	if err := r.journal.Record(ctx, decision); err != nil {
		r.logger.Warn("Failed to journal decision",
			zap.String("resource", fmt.Sprintf("%s/%s/%s", decision.Kind, decision.Namespace, decision.Name)),
			zap.Error(err))
	}
}
