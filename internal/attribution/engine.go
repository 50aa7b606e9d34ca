package attribution

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pharmalink/decision-core/internal/model"
)

// ErrAlreadyAttributed signals that an outcome already has credit rows.
// Re-running attribution would double-count contribution weight, so it is
// rejected rather than silently replicated.
var ErrAlreadyAttributed = eris.New("attribution: outcome already attributed")

// Validator receives validation signals for staleness bookkeeping whenever
// an outcome is attributed. Implemented by the staleness tracker.
type Validator interface {
	RecordValidation(ctx context.Context, entityID, predictionType string) error
}

// Engine attributes observed outcomes to candidate stimuli.
type Engine struct {
	store           Store
	validator       Validator
	channelDefaults map[model.Channel]model.AttributionConfig
	fallback        EffectiveConfig
	now             func() time.Time
}

// NewEngine creates an attribution engine. channelDefaults is the read-only
// per-channel fallback table (DefaultChannelConfigs for production use);
// validator may be nil when staleness bookkeeping is not wanted; fallback
// is the last-resort policy, with zero values filled from the package
// constants.
func NewEngine(store Store, validator Validator, channelDefaults map[model.Channel]model.AttributionConfig, fallback Fallback) *Engine {
	return &Engine{
		store:           store,
		validator:       validator,
		channelDefaults: channelDefaults,
		fallback:        fallback.effective(),
		now:             time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (e *Engine) WithNow(t time.Time) *Engine {
	e.now = func() time.Time { return t }
	return e
}

// NewOutcome is the caller-supplied input to RecordOutcome.
type NewOutcome struct {
	EntityID      string
	Kind          string
	Channel       model.Channel // resolved from Kind when empty
	OccurredAt    time.Time     // defaults to now
	ObservedValue float64
	QualityScore  float64
	StimulusID    *string // explicit prior cause, if the operator knows it
}

// RecordOutcome inserts the outcome, finds candidate causes, attributes
// credit and updates staleness for the prediction types this outcome kind
// validates.
func (e *Engine) RecordOutcome(ctx context.Context, in NewOutcome) (string, *model.AttributionResult, error) {
	if in.EntityID == "" {
		return "", nil, eris.New("attribution: entity id required")
	}
	if in.Kind == "" {
		return "", nil, eris.New("attribution: outcome kind required")
	}

	log := zap.L().With(zap.String("entity_id", in.EntityID), zap.String("kind", in.Kind))

	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = e.now()
	}
	channel := in.Channel
	if channel == "" {
		channel = ChannelForKind(in.Kind)
	}

	attrType := model.AttributionAssisted
	if in.StimulusID != nil {
		attrType = model.AttributionDirect
	}

	outcome := model.Outcome{
		ID:               uuid.NewString(),
		EntityID:         in.EntityID,
		Kind:             in.Kind,
		Channel:          channel,
		OccurredAt:       occurredAt,
		ObservedValue:    in.ObservedValue,
		QualityScore:     model.Clamp(in.QualityScore, 0, 1),
		SourceStimulusID: in.StimulusID,
		AttributionType:  attrType,
	}
	if err := e.store.InsertOutcome(ctx, outcome); err != nil {
		return "", nil, err
	}

	candidates, err := e.FindAttributableActions(ctx, in.EntityID, in.Kind, occurredAt)
	if err != nil {
		return outcome.ID, nil, err
	}

	// An operator-declared cause is never dropped: if the window search
	// missed it, force it in as the most recent candidate, even when it
	// falls outside the configured window.
	if in.StimulusID != nil && !containsStimulus(candidates, *in.StimulusID) {
		forced, err := e.store.GetStimulus(ctx, *in.StimulusID)
		if err != nil {
			return outcome.ID, nil, err
		}
		candidates = append([]model.Stimulus{forced}, candidates...)
	}

	result, err := e.AttributeOutcome(ctx, outcome.ID, candidates, channel)
	if err != nil {
		return outcome.ID, nil, err
	}
	result.OutcomeID = outcome.ID

	// Confirm the primary cause's observed effect, exactly once.
	if result.PrimaryStimulusID != nil {
		if err := e.store.FillStimulusActuals(ctx, *result.PrimaryStimulusID, in.ObservedValue, in.ObservedValue*in.QualityScore); err != nil {
			return outcome.ID, result, err
		}
	}

	if e.validator != nil {
		for _, pt := range PredictionTypesForKind(in.Kind) {
			if err := e.validator.RecordValidation(ctx, in.EntityID, pt); err != nil {
				log.Warn("staleness validation update failed",
					zap.String("prediction_type", pt), zap.Error(err))
			}
		}
	}

	log.Info("outcome recorded",
		zap.String("outcome_id", outcome.ID),
		zap.String("channel", string(channel)),
		zap.Int("touches", result.TotalContributingActions),
	)

	return outcome.ID, result, nil
}

// FindAttributableActions returns candidate causal stimuli for an outcome,
// most recent first. The channel is resolved from the outcome kind and the
// window from the channel's config (persisted channel or global row, else
// channel default, else the engine's fallback window).
func (e *Engine) FindAttributableActions(ctx context.Context, entityID, outcomeKind string, occurredAt time.Time) ([]model.Stimulus, error) {
	channel := ChannelForKind(outcomeKind)

	eff, err := e.effectiveConfig(ctx, channel)
	if err != nil {
		return nil, err
	}

	from := occurredAt.AddDate(0, 0, -eff.WindowDays)
	return e.store.StimuliInRange(ctx, entityID, channel, from, occurredAt)
}

// AttributeOutcome splits credit for an outcome across candidates (ordered
// most recent first), persists one attribution row per contributing
// candidate and designates the primary cause. With no candidates it returns
// a zero-confidence result and writes nothing.
func (e *Engine) AttributeOutcome(ctx context.Context, outcomeID string, candidates []model.Stimulus, channel model.Channel) (*model.AttributionResult, error) {
	if len(candidates) == 0 {
		return &model.AttributionResult{
			OutcomeID: outcomeID,
			Channel:   channel,
			Model:     string(e.fallback.Model),
		}, nil
	}

	attributed, err := e.store.HasAttributions(ctx, outcomeID)
	if err != nil {
		return nil, err
	}
	if attributed {
		return nil, ErrAlreadyAttributed
	}

	outcome, err := e.store.GetOutcome(ctx, outcomeID)
	if err != nil {
		return nil, err
	}

	eff, err := e.effectiveConfig(ctx, channel)
	if err != nil {
		return nil, err
	}

	n := len(candidates)
	base := CalculateContributions(eff.Model, n, eff.FirstWeight, eff.LastWeight)

	days := make([]float64, n)
	decayFactors := make([]float64, n)
	decayed := make([]float64, n)
	for i, c := range candidates {
		d := outcome.OccurredAt.Sub(c.OccurredAt).Hours() / 24
		if d < 0 {
			d = 0
		}
		days[i] = d
		decayFactors[i] = ApplyDecay(d, eff.Decay, eff.HalfLifeDays)
		decayed[i] = base[i] * decayFactors[i]
	}

	normalized := Normalize(decayed)

	var rows []model.OutcomeAttribution
	primaryIdx := -1
	for i, c := range candidates {
		if normalized[i] <= 0 {
			continue
		}
		if primaryIdx < 0 || normalized[i] > normalized[primaryIdx] {
			primaryIdx = i
		}
		rows = append(rows, model.OutcomeAttribution{
			OutcomeID:          outcomeID,
			StimulusID:         c.ID,
			ContributionWeight: normalized[i],
			DecayFactor:        decayFactors[i],
			DaysBetween:        days[i],
			TouchPosition:      positionFor(i, n),
			TotalTouches:       n,
			Confidence:         model.Clamp(touchConfidence(normalized[i], c.PredictedEngagementDelta, days[i]), 0, 1),
		})
	}

	result := &model.AttributionResult{
		OutcomeID:                outcomeID,
		Channel:                  channel,
		Model:                    string(eff.Model),
		TotalContributingActions: len(rows),
		Attributions:             rows,
	}

	if len(rows) == 0 {
		// Every touch fully decayed; nothing to persist.
		return result, nil
	}

	if _, err := e.store.InsertAttributions(ctx, rows); err != nil {
		return nil, err
	}

	primary := candidates[primaryIdx]
	primaryWeight := normalized[primaryIdx]
	if err := e.store.SetPrimaryAttribution(ctx, outcomeID, primary.ID, primaryWeight, n); err != nil {
		return nil, err
	}

	result.PrimaryStimulusID = &primary.ID
	result.PrimaryWeight = primaryWeight
	result.Confidence = model.Clamp(touchConfidence(primaryWeight, primary.PredictedEngagementDelta, days[primaryIdx]), 0, 1)

	return result, nil
}

// effectiveConfig resolves channel policy: persisted channel row, else the
// persisted global row (empty channel), else the in-memory channel default,
// else the engine's fallback.
func (e *Engine) effectiveConfig(ctx context.Context, channel model.Channel) (EffectiveConfig, error) {
	cfg, err := e.store.GetChannelConfig(ctx, channel)
	if err != nil {
		return EffectiveConfig{}, err
	}
	if cfg == nil && channel != "" {
		cfg, err = e.store.GetChannelConfig(ctx, "")
		if err != nil {
			return EffectiveConfig{}, err
		}
	}
	if cfg == nil {
		if def, ok := e.channelDefaults[channel]; ok {
			cfg = &def
		}
	}
	return resolve(cfg, e.fallback), nil
}

// positionFor tags candidate i of n: most recent = last, oldest = first.
func positionFor(i, n int) model.TouchPosition {
	switch {
	case i == 0:
		return model.PositionLast
	case i == n-1:
		return model.PositionFirst
	default:
		return model.PositionMiddle
	}
}

func containsStimulus(candidates []model.Stimulus, id string) bool {
	for _, c := range candidates {
		if c.ID == id {
			return true
		}
	}
	return false
}
