// Package attribution assigns credit for observed outcomes to the prior
// stimuli that plausibly caused them: candidate search within a per-channel
// window, multi-touch contribution weighting, temporal decay and primary
// cause designation.
package attribution

import (
	"time"

	"github.com/pharmalink/decision-core/internal/model"
)

// Model names a multi-touch credit assignment strategy. The set is closed;
// unknown tags fall back to DefaultModel rather than erroring.
type Model string

const (
	ModelFirstTouch    Model = "first_touch"
	ModelLastTouch     Model = "last_touch"
	ModelLinear        Model = "linear"
	ModelPositionBased Model = "position_based"
	ModelTimeDecay     Model = "time_decay"

	DefaultModel = ModelLastTouch
)

// ParseModel maps a stored tag to a Model, falling back to the default for
// unknown or legacy tags.
func ParseModel(s string) Model {
	switch Model(s) {
	case ModelFirstTouch, ModelLastTouch, ModelLinear, ModelPositionBased, ModelTimeDecay:
		return Model(s)
	default:
		return DefaultModel
	}
}

// DecayFunc names how a stimulus's credit shrinks with elapsed time.
type DecayFunc string

const (
	DecayNone        DecayFunc = "none"
	DecayLinear      DecayFunc = "linear"
	DecayExponential DecayFunc = "exponential"

	DefaultDecay = DecayNone
)

// ParseDecayFunc maps a stored tag to a DecayFunc, falling back to the
// default for unknown tags.
func ParseDecayFunc(s string) DecayFunc {
	switch DecayFunc(s) {
	case DecayNone, DecayLinear, DecayExponential:
		return DecayFunc(s)
	default:
		return DefaultDecay
	}
}

const (
	// DefaultWindowDays applies when neither a persisted override nor a
	// channel default exists.
	DefaultWindowDays = 14
	// DefaultHalfLifeDays is the fallback decay half-life.
	DefaultHalfLifeDays = 7.0
	// defaultPositionWeight is the first/last share for position_based
	// attribution when the config carries no explicit weights.
	defaultPositionWeight = 0.4
)

// EffectiveConfig is the fully resolved attribution policy for one run.
type EffectiveConfig struct {
	Model        Model
	Decay        DecayFunc
	WindowDays   int
	HalfLifeDays float64
	FirstWeight  float64
	LastWeight   float64
}

// Fallback is the process-wide attribution policy applied when neither a
// persisted row nor a channel default exists. Zero values fall back to the
// package constants.
type Fallback struct {
	WindowDays   int
	HalfLifeDays float64
	Model        string
	Decay        string
}

// effective expands a Fallback into a fully populated EffectiveConfig.
func (f Fallback) effective() EffectiveConfig {
	eff := EffectiveConfig{
		Model:        DefaultModel,
		Decay:        DefaultDecay,
		WindowDays:   DefaultWindowDays,
		HalfLifeDays: DefaultHalfLifeDays,
		FirstWeight:  defaultPositionWeight,
		LastWeight:   defaultPositionWeight,
	}
	if f.Model != "" {
		eff.Model = ParseModel(f.Model)
	}
	if f.Decay != "" {
		eff.Decay = ParseDecayFunc(f.Decay)
	}
	if f.WindowDays > 0 {
		eff.WindowDays = f.WindowDays
	}
	if f.HalfLifeDays > 0 {
		eff.HalfLifeDays = f.HalfLifeDays
	}
	return eff
}

// resolve builds an EffectiveConfig from a persisted row, substituting the
// fallback for every missing or unknown value.
func resolve(cfg *model.AttributionConfig, fallback EffectiveConfig) EffectiveConfig {
	eff := fallback
	if cfg == nil {
		return eff
	}
	if cfg.Model != "" {
		eff.Model = ParseModel(cfg.Model)
	}
	if cfg.DecayFn != "" {
		eff.Decay = ParseDecayFunc(cfg.DecayFn)
	}
	if cfg.WindowDays > 0 {
		eff.WindowDays = cfg.WindowDays
	}
	if cfg.HalfLifeDays > 0 {
		eff.HalfLifeDays = cfg.HalfLifeDays
	}
	if cfg.FirstWeight != nil && *cfg.FirstWeight > 0 {
		eff.FirstWeight = *cfg.FirstWeight
	}
	if cfg.LastWeight != nil && *cfg.LastWeight > 0 {
		eff.LastWeight = *cfg.LastWeight
	}
	return eff
}

// DefaultChannelConfigs returns the built-in per-channel attribution
// policies used when no persisted override exists. The map is built once at
// process start and passed by reference into the engine; it is never
// mutated.
func DefaultChannelConfigs() map[model.Channel]model.AttributionConfig {
	now := time.Time{}
	return map[model.Channel]model.AttributionConfig{
		model.ChannelEmail: {
			Channel: model.ChannelEmail, WindowDays: 7,
			Model: string(ModelLastTouch), DecayFn: string(DecayExponential),
			HalfLifeDays: 3, UpdatedAt: now,
		},
		model.ChannelRepVisit: {
			Channel: model.ChannelRepVisit, WindowDays: 30,
			Model: string(ModelPositionBased), DecayFn: string(DecayLinear),
			HalfLifeDays: 14, UpdatedAt: now,
		},
		model.ChannelWebinar: {
			Channel: model.ChannelWebinar, WindowDays: 21,
			Model: string(ModelTimeDecay), DecayFn: string(DecayExponential),
			HalfLifeDays: 7, UpdatedAt: now,
		},
		model.ChannelSample: {
			Channel: model.ChannelSample, WindowDays: 45,
			Model: string(ModelLinear), DecayFn: string(DecayLinear),
			HalfLifeDays: 21, UpdatedAt: now,
		},
		model.ChannelPhone: {
			Channel: model.ChannelPhone, WindowDays: 14,
			Model: string(ModelLastTouch), DecayFn: string(DecayExponential),
			HalfLifeDays: 5, UpdatedAt: now,
		},
	}
}
