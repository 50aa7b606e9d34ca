package uncertainty

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pharmalink/decision-core/internal/model"
	"github.com/pharmalink/decision-core/internal/profile"
	"github.com/pharmalink/decision-core/internal/staleness"
)

// sampleWindowDays bounds how far back Calculate looks for stimuli.
const sampleWindowDays = 180

// Options tunes the calculator. Zero values fall back to defaults.
type Options struct {
	// Fallbacks when neither a per-channel nor a global persisted
	// exploration config exists.
	UncertaintyThreshold float64
	MinSampleSize        int
	UCBConstant          float64
	Epsilon              float64

	// Batch fan-out bound and store write throttle.
	MaxConcurrentEntities int
	StoreWritesPerSec     float64
}

func (o *Options) applyDefaults() {
	if o.UncertaintyThreshold <= 0 {
		o.UncertaintyThreshold = 0.7
	}
	if o.MinSampleSize <= 0 {
		o.MinSampleSize = 5
	}
	if o.UCBConstant <= 0 {
		o.UCBConstant = 2.0
	}
	if o.Epsilon <= 0 {
		o.Epsilon = 0.1
	}
	if o.MaxConcurrentEntities < 1 {
		o.MaxConcurrentEntities = 1
	}
}

// Calculator computes and persists uncertainty decompositions.
type Calculator struct {
	store     Store
	profiles  profile.Store
	staleness staleness.Store
	opts      Options
	writes    *rate.Limiter
	now       func() time.Time
}

// NewCalculator creates a calculator. The staleness store supplies prediction
// age and receives drift flags; pass nil to skip both.
func NewCalculator(store Store, profiles profile.Store, stalenessStore staleness.Store, opts Options) *Calculator {
	opts.applyDefaults()

	writes := rate.NewLimiter(rate.Inf, 1)
	if opts.StoreWritesPerSec > 0 {
		writes = rate.NewLimiter(rate.Limit(opts.StoreWritesPerSec), 1)
	}

	return &Calculator{
		store:     store,
		profiles:  profiles,
		staleness: stalenessStore,
		opts:      opts,
		writes:    writes,
		now:       time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (c *Calculator) WithNow(ts time.Time) *Calculator {
	c.now = func() time.Time { return ts }
	return c
}

// DefaultChannelConfigs returns the built-in per-channel exploration
// parameters, applied when no persisted override exists. High-cost channels
// carry a higher threshold so exploration concentrates on cheap touches.
func DefaultChannelConfigs(fallback model.ExplorationConfig) map[model.Channel]model.ExplorationConfig {
	base := fallback
	cfgs := make(map[model.Channel]model.ExplorationConfig, len(model.KnownChannels))
	for _, ch := range model.KnownChannels {
		cfg := base
		cfg.Channel = ch
		switch ch {
		case model.ChannelRepVisit:
			cfg.UncertaintyThreshold = 0.8
			cfg.MinSampleSize = 3
		case model.ChannelSample:
			cfg.UncertaintyThreshold = 0.8
		case model.ChannelEmail:
			cfg.Epsilon = 0.15
		}
		cfgs[ch] = cfg
	}
	return cfgs
}

// Calculate runs the full uncertainty decomposition for one entity, channel
// (empty = channel-agnostic) and prediction type, persists the resulting
// metrics row and returns it.
func (c *Calculator) Calculate(ctx context.Context, entityID string, channel model.Channel, predictionType string) (*model.UncertaintyMetrics, error) {
	now := c.now()

	p, err := c.profiles.Get(ctx, entityID)
	if err != nil {
		return nil, err
	}

	since := now.AddDate(0, 0, -sampleWindowDays)
	stimuli, err := c.store.EntityStimuli(ctx, entityID, channel, since)
	if err != nil {
		return nil, err
	}

	// Sample statistics. Errors only exist where an outcome back-filled the
	// actual delta.
	var predictedDeltas, errors []float64
	channels := map[model.Channel]struct{}{}
	for _, st := range stimuli {
		predictedDeltas = append(predictedDeltas, st.PredictedEngagementDelta)
		if st.ActualEngagementDelta != nil {
			errors = append(errors, *st.ActualEngagementDelta-st.PredictedEngagementDelta)
		}
		channels[st.Channel] = struct{}{}
	}
	sampleSize := len(stimuli)

	epistemic := Epistemic(sampleSize, predictedDeltas)
	aleatoric := Aleatoric(errors)
	total := Total(epistemic, aleatoric)

	daysSinceLastTouch := 0.0
	if sampleSize > 0 {
		daysSinceLastTouch = now.Sub(stimuli[0].OccurredAt).Hours() / 24
	}
	quality := AssessDataQuality(p, sampleSize, daysSinceLastTouch, len(channels))

	drift, err := c.detectDrift(ctx, p, now)
	if err != nil {
		return nil, err
	}
	// Written unconditionally so the flag clears once drift subsides.
	if c.staleness != nil {
		if err := c.staleness.SetFeatureDrift(ctx, entityID, predictionType, drift.SignificantDrift); err != nil {
			return nil, err
		}
	}

	preferredMatch := channel != "" && channel == p.PreferredChannel
	point := PointPrediction(p.EngagementScore, preferredMatch, p.Tier)
	lower, upper, width := ConfidenceInterval(point, total)

	predictionAgeDays := 0.0
	if c.staleness != nil {
		row, err := c.staleness.Get(ctx, entityID, predictionType)
		if err != nil {
			return nil, err
		}
		if row != nil {
			predictionAgeDays = now.Sub(row.LastPredictedAt).Hours() / 24
		}
	}

	expCfg, err := c.explorationConfig(ctx, channel)
	if err != nil {
		return nil, err
	}
	channelTotal, err := c.store.ChannelSampleTotal(ctx, channel)
	if err != nil {
		return nil, err
	}
	explorationValue := UCBBonus(expCfg.UCBConstant, sampleSize, channelTotal)
	recommendExploration := total > expCfg.UncertaintyThreshold || sampleSize < expCfg.MinSampleSize

	metrics := &model.UncertaintyMetrics{
		EntityID:             entityID,
		Channel:              channel,
		PredictionType:       predictionType,
		PredictedValue:       point,
		CILower:              lower,
		CIUpper:              upper,
		CIWidth:              width,
		Epistemic:            epistemic,
		Aleatoric:            aleatoric,
		TotalUncertainty:     total,
		SampleSize:           sampleSize,
		DataRecencyDays:      daysSinceLastTouch,
		FeatureCompleteness:  quality.ProfileCompleteness,
		PredictionAgeDays:    predictionAgeDays,
		DriftScore:           drift.OverallScore,
		ExplorationValue:     explorationValue,
		RecommendExploration: recommendExploration,
		CalculatedAt:         now,
	}

	if err := c.writes.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "uncertainty: write limiter")
	}
	if err := c.store.UpsertMetrics(ctx, *metrics); err != nil {
		return nil, err
	}

	zap.L().Debug("uncertainty calculated",
		zap.String("entity_id", entityID),
		zap.String("channel", string(channel)),
		zap.String("prediction_type", predictionType),
		zap.Float64("total", total),
		zap.Float64("epistemic", epistemic),
		zap.Float64("aleatoric", aleatoric),
		zap.Bool("recommend_exploration", recommendExploration))

	return metrics, nil
}

// AssessQuality scores an entity's data quality without persisting anything.
func (c *Calculator) AssessQuality(ctx context.Context, entityID string) (*model.DataQuality, error) {
	now := c.now()

	p, err := c.profiles.Get(ctx, entityID)
	if err != nil {
		return nil, err
	}

	stimuli, err := c.store.EntityStimuli(ctx, entityID, "", now.AddDate(0, 0, -sampleWindowDays))
	if err != nil {
		return nil, err
	}

	channels := map[model.Channel]struct{}{}
	for _, st := range stimuli {
		channels[st.Channel] = struct{}{}
	}
	daysSinceLastTouch := 0.0
	if len(stimuli) > 0 {
		daysSinceLastTouch = now.Sub(stimuli[0].OccurredAt).Hours() / 24
	}

	q := AssessDataQuality(p, len(stimuli), daysSinceLastTouch, len(channels))
	return &q, nil
}

// CheckDrift runs drift detection for one entity without persisting metrics.
func (c *Calculator) CheckDrift(ctx context.Context, entityID string) (*model.DriftReport, error) {
	p, err := c.profiles.Get(ctx, entityID)
	if err != nil {
		return nil, err
	}
	report, err := c.detectDrift(ctx, p, c.now())
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// LogExploration appends an exploration decision to the history log.
func (c *Calculator) LogExploration(ctx context.Context, r model.ExplorationRecord) error {
	return c.store.InsertExplorationRecord(ctx, r)
}

// BatchSummary reports a CalculateBatch run.
type BatchSummary struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// CalculateBatch recomputes uncertainty for a set of entities, or for every
// entity with recent stimuli when entityIDs is empty. Entities fail
// independently: a failure is logged with its id, counted, and never aborts
// the batch.
func (c *Calculator) CalculateBatch(ctx context.Context, entityIDs []string, channel model.Channel, predictionType string) (*BatchSummary, error) {
	if len(entityIDs) == 0 {
		var err error
		entityIDs, err = c.store.ActiveEntityIDs(ctx, c.now().AddDate(0, 0, -sampleWindowDays))
		if err != nil {
			return nil, err
		}
	}

	log := zap.L().With(zap.String("component", "uncertainty.batch"))

	var processed, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.MaxConcurrentEntities)

	for _, id := range entityIDs {
		g.Go(func() error {
			if _, err := c.Calculate(gctx, id, channel, predictionType); err != nil {
				log.Warn("uncertainty calculation failed",
					zap.String("entity_id", id),
					zap.Error(err))
				failed.Add(1)
				return nil // isolate entity failures
			}
			processed.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info("uncertainty batch complete",
		zap.Int64("processed", processed.Load()),
		zap.Int64("failed", failed.Load()))

	return &BatchSummary{
		Processed: int(processed.Load()),
		Failed:    int(failed.Load()),
	}, nil
}

// Summary aggregates across all stored uncertainty metrics rows.
func (c *Calculator) Summary(ctx context.Context) (*model.UncertaintySummary, error) {
	rows, err := c.store.ListMetrics(ctx)
	if err != nil {
		return nil, err
	}

	s := &model.UncertaintySummary{
		ByChannel:        make(map[model.Channel]int),
		ByPredictionType: make(map[string]int),
		GeneratedAt:      c.now(),
	}

	var totalSum, epiSum, aleSum float64
	for _, m := range rows {
		s.TotalRows++
		totalSum += m.TotalUncertainty
		epiSum += m.Epistemic
		aleSum += m.Aleatoric
		if m.TotalUncertainty > c.opts.UncertaintyThreshold {
			s.AboveThreshold++
		}
		if m.RecommendExploration {
			s.ExplorationFlagged++
		}
		if m.Channel != "" {
			s.ByChannel[m.Channel]++
		}
		s.ByPredictionType[m.PredictionType]++
	}
	if s.TotalRows > 0 {
		n := float64(s.TotalRows)
		s.MeanTotalUncertainty = totalSum / n
		s.MeanEpistemic = epiSum / n
		s.MeanAleatoric = aleSum / n
	}

	return s, nil
}

// ExplorationStats aggregates the exploration history since the given time.
func (c *Calculator) ExplorationStats(ctx context.Context, since time.Time) (*model.ExplorationStatistics, error) {
	records, err := c.store.ListExplorationHistory(ctx, since)
	if err != nil {
		return nil, err
	}

	stats := &model.ExplorationStatistics{
		ByChannel:   make(map[model.Channel]int),
		GeneratedAt: c.now(),
	}

	var gainSum, errSum float64
	var gainN, errN int
	for _, r := range records {
		stats.TotalActions++
		if r.Exploratory {
			stats.ExploratoryActions++
		}
		if r.Channel != "" {
			stats.ByChannel[r.Channel]++
		}
		if r.InformationGain != nil {
			gainSum += *r.InformationGain
			gainN++
		}
		if r.PredictionError != nil {
			errSum += *r.PredictionError
			errN++
		}
	}
	if stats.TotalActions > 0 {
		stats.ExplorationRate = float64(stats.ExploratoryActions) / float64(stats.TotalActions)
	}
	if gainN > 0 {
		stats.MeanInformationGain = gainSum / float64(gainN)
	}
	if errN > 0 {
		stats.MeanPredictionError = errSum / float64(errN)
	}

	return stats, nil
}

// detectDrift assembles the activity windows and segment baseline for
// DetectDrift.
func (c *Calculator) detectDrift(ctx context.Context, p model.EntityProfile, now time.Time) (model.DriftReport, error) {
	recentFrom := now.AddDate(0, 0, -driftRecentWindowDays)
	olderFrom := now.AddDate(0, 0, -driftOlderWindowDays)

	recent, err := c.store.ActivityCounts(ctx, p.EntityID, recentFrom, now)
	if err != nil {
		return model.DriftReport{}, err
	}
	older, err := c.store.ActivityCounts(ctx, p.EntityID, olderFrom, recentFrom)
	if err != nil {
		return model.DriftReport{}, err
	}

	baseline, err := c.store.SegmentBaseline(ctx, p.Segment)
	if err != nil {
		return model.DriftReport{}, err
	}

	return DetectDrift(recent, older, p.EngagementScore, baseline, now), nil
}

// explorationConfig resolves exploration parameters for a channel: persisted
// channel row, then persisted global row (empty channel), then the built-in
// channel defaults, then the calculator's fallback options.
func (c *Calculator) explorationConfig(ctx context.Context, channel model.Channel) (model.ExplorationConfig, error) {
	if channel != "" {
		cfg, err := c.store.GetExplorationConfig(ctx, channel)
		if err != nil {
			return model.ExplorationConfig{}, err
		}
		if cfg != nil {
			return *cfg, nil
		}
	}

	global, err := c.store.GetExplorationConfig(ctx, "")
	if err != nil {
		return model.ExplorationConfig{}, err
	}
	if global != nil {
		cfg := *global
		cfg.Channel = channel
		return cfg, nil
	}

	fallback := model.ExplorationConfig{
		Channel:              channel,
		UncertaintyThreshold: c.opts.UncertaintyThreshold,
		MinSampleSize:        c.opts.MinSampleSize,
		UCBConstant:          c.opts.UCBConstant,
		Epsilon:              c.opts.Epsilon,
	}
	if channel != "" {
		if cfg, ok := DefaultChannelConfigs(fallback)[channel]; ok {
			return cfg, nil
		}
	}
	return fallback, nil
}
