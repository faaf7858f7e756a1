package kconsistent

import (
	"errors"

	"github.com/birdayz/streamc/kmodel"
	"github.com/birdayz/streamc/kregion"
)

// Trigger values of the @consistent annotation.
const (
	TriggerOperatorDriven = "operatorDriven"
	TriggerPeriodic       = "periodic"
)

var (
	errUnknownTrigger = errors.New("trigger must be operatorDriven or periodic")
	errNoPeriod       = errors.New("periodic trigger needs a positive period")
)

// startConfig reads the @consistent annotation of a start operator:
//
//	@consistent(index=<n>, trigger=operatorDriven|periodic, period=<s>,
//	            drainTimeout=<s>, resetTimeout=<s>, maxConsecutiveResetAttempts=<n>)
//
// index defaults to the operator's logical index. Without the annotation the
// region is operator-driven with default timeouts.
func startConfig(op kmodel.Operator) (int, kregion.RegionConfig, error) {
	b := op.Base()
	cfg := kregion.RegionConfig{
		DrainTimeout:                kregion.DefaultDrainTimeout,
		ResetTimeout:                kregion.DefaultResetTimeout,
		MaxConsecutiveResetAttempts: kregion.DefaultMaxConsecutiveResetAttempts,
		OperatorDriven:              true,
	}
	a, ok := b.Annotation(kmodel.TagConsistent)
	if !ok {
		return int(b.LogicalIndex), cfg, nil
	}

	index, err := a.Int("index", int(b.LogicalIndex))
	if err != nil {
		return 0, cfg, err
	}
	if cfg.DrainTimeout, err = a.Seconds("drainTimeout", cfg.DrainTimeout); err != nil {
		return 0, cfg, err
	}
	if cfg.ResetTimeout, err = a.Seconds("resetTimeout", cfg.ResetTimeout); err != nil {
		return 0, cfg, err
	}
	if cfg.Period, err = a.Seconds("period", 0); err != nil {
		return 0, cfg, err
	}
	if cfg.MaxConsecutiveResetAttempts, err = a.Int("maxConsecutiveResetAttempts", cfg.MaxConsecutiveResetAttempts); err != nil {
		return 0, cfg, err
	}

	switch trigger := a.Text("trigger", TriggerOperatorDriven); trigger {
	case TriggerOperatorDriven:
	case TriggerPeriodic:
		if cfg.Period <= 0 {
			v, _ := a.Get("period")
			return 0, cfg, &kmodel.MalformedAnnotationError{Operator: b.Index, Tag: kmodel.TagConsistent, Key: "period", Value: v, Cause: errNoPeriod}
		}
		cfg.OperatorDriven = false
	default:
		return 0, cfg, &kmodel.MalformedAnnotationError{Operator: b.Index, Tag: kmodel.TagConsistent, Key: "trigger", Value: trigger, Cause: errUnknownTrigger}
	}
	return index, cfg, nil
}
