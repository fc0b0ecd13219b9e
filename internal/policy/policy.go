package policy

import (
	"errors"
	"time"

	"github.com/aonescu/kubespresso/internal/annotations"
	"github.com/aonescu/kubespresso/internal/types"
)

// Reason explains a verdict
type Reason string

const (
	WrongEventType       Reason = "wrong event type"
	WrongResourceKind    Reason = "wrong resource kind"
	BelowMinimumDuration Reason = "below minimum duration"
	CooldownActive       Reason = "cooldown not yet elapsed"
	CriteriaSatisfied    Reason = "criteria satisfied"
)

const (
	DefaultTargetKind      = "Job"
	DefaultMinimumDuration = 60 * time.Second
	DefaultCooldown        = 24 * time.Hour
)

type Config struct {
	TargetKind          string        `json:"target_kind"`
	MinExpectedDuration time.Duration `json:"min_expected_duration"`
	Cooldown            time.Duration `json:"cooldown"`
}

func DefaultConfig() Config {
	return Config{
		TargetKind:          DefaultTargetKind,
		MinExpectedDuration: DefaultMinimumDuration,
		Cooldown:            DefaultCooldown,
	}
}

func (c Config) Validate() error {
	if c.TargetKind == "" {
		return errors.New("target kind must not be empty")
	}
	if c.MinExpectedDuration < 0 {
		return errors.New("minimum expected duration must not be negative")
	}
	if c.Cooldown <= 0 {
		return errors.New("cooldown must be positive")
	}
	return nil
}

// Verdict is the result of evaluating one event
type Verdict struct {
	Eligible         bool   `json:"eligible"`
	Reason           Reason `json:"reason"`
	ExpectedDuration int64  `json:"expected_duration_seconds"`
	SinceLastAction  int64  `json:"since_last_action_seconds"`
}

type Policy struct {
	cfg Config
}

func New(cfg Config) (*Policy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Policy{cfg: cfg}, nil
}

func (p *Policy) Config() Config {
	return p.cfg
}

// Evaluate applies the eligibility rules in order and stops at the first
// one that fails. It has no side effects; now is supplied by the caller.
func (p *Policy) Evaluate(event types.Event, now time.Time) Verdict {
	if !event.Type.Actionable() {
		return Verdict{Reason: WrongEventType}
	}

	res := event.Resource
	if res.Kind != p.cfg.TargetKind {
		return Verdict{Reason: WrongResourceKind}
	}

	v := Verdict{
		ExpectedDuration: annotations.Int64(res.Annotations, annotations.ExpectedDuration),
	}
	if v.ExpectedDuration < int64(p.cfg.MinExpectedDuration/time.Second) {
		v.Reason = BelowMinimumDuration
		return v
	}

	v.SinceLastAction = SecondsSinceMarker(res, now)
	if v.SinceLastAction < int64(p.cfg.Cooldown/time.Second) {
		v.Reason = CooldownActive
		return v
	}

	v.Eligible = true
	v.Reason = CriteriaSatisfied
	return v
}
