package staleness

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pharmalink/decision-core/internal/model"
)

const (
	// refreshThreshold is the staleness score above which a refresh is
	// recommended.
	refreshThreshold = 0.7

	ageHorizonDays        = 30.0
	validationHorizonDays = 14.0
	neverValidatedPenalty = 0.5
	driftPenalty          = 0.3

	ageWeight        = 0.4
	validationWeight = 0.4
	driftWeight      = 0.2
)

// Tracker maintains staleness scores for stored predictions.
type Tracker struct {
	store          Store
	maxConcurrency int
	now            func() time.Time
}

// NewTracker creates a staleness tracker. maxConcurrency bounds RefreshAll
// fan-out; values below 1 run sequentially.
func NewTracker(store Store, maxConcurrency int) *Tracker {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Tracker{store: store, maxConcurrency: maxConcurrency, now: time.Now}
}

// WithNow sets a fixed clock for testing.
func (t *Tracker) WithNow(ts time.Time) *Tracker {
	t.now = func() time.Time { return ts }
	return t
}

// Score computes the staleness score from its components:
// 0.4*age + 0.4*validation + 0.2*drift, clamped to [0,1]. The age component
// saturates at 30 days, the validation component at 14; a never-validated
// prediction carries a fixed 0.5 validation term.
func Score(predictionAgeDays, validationAgeDays float64, everValidated, drifted bool) float64 {
	age := predictionAgeDays / ageHorizonDays
	if age > 1 {
		age = 1
	}

	validation := neverValidatedPenalty
	if everValidated {
		validation = validationAgeDays / validationHorizonDays
		if validation > 1 {
			validation = 1
		}
	}

	drift := 0.0
	if drifted {
		drift = driftPenalty
	}

	return model.Clamp(ageWeight*age+validationWeight*validation+driftWeight*drift, 0, 1)
}

// CalculateStaleness recomputes and persists the staleness score for
// (entity, prediction type). found is false when the entity has never been
// predicted; that is absence, not staleness, and scores 0.
func (t *Tracker) CalculateStaleness(ctx context.Context, entityID, predictionType string) (score float64, found bool, err error) {
	row, err := t.store.Get(ctx, entityID, predictionType)
	if err != nil {
		return 0, false, err
	}
	if row == nil {
		return 0, false, nil
	}

	now := t.now()
	ageDays := now.Sub(row.LastPredictedAt).Hours() / 24
	var validationAgeDays float64
	everValidated := row.LastValidatedAt != nil
	if everValidated {
		validationAgeDays = now.Sub(*row.LastValidatedAt).Hours() / 24
	}

	score = Score(ageDays, validationAgeDays, everValidated, row.FeatureDrift)

	recommend := score > refreshThreshold
	reason := ""
	if recommend {
		reason = refreshReason(ageDays, validationAgeDays, everValidated, row.FeatureDrift)
	}

	if err := t.store.UpdateScore(ctx, entityID, predictionType, score, recommend, reason); err != nil {
		return 0, true, err
	}
	return score, true, nil
}

// MarkRefreshNeeded flags (entity, prediction type) for refresh, creating
// the row if absent. Idempotent.
func (t *Tracker) MarkRefreshNeeded(ctx context.Context, entityID, predictionType, reason string) error {
	return t.store.MarkRefreshNeeded(ctx, entityID, predictionType, reason)
}

// RegisterPrediction records a freshly produced prediction, resetting
// staleness to 0 and clearing any refresh recommendation.
func (t *Tracker) RegisterPrediction(ctx context.Context, entityID, predictionType string, value, confidence float64) error {
	return t.store.RegisterPrediction(ctx, entityID, predictionType, value, model.Clamp(confidence, 0, 1))
}

// RecordValidation extends validation recency when an attributed outcome
// plausibly validates a prediction type. Rows are never created here.
func (t *Tracker) RecordValidation(ctx context.Context, entityID, predictionType string) error {
	return t.store.RecordValidation(ctx, entityID, predictionType)
}

// RefreshSummary reports a RefreshAll batch run.
type RefreshSummary struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// RefreshAll recomputes staleness for every tracked row. Items fail
// independently: a failure is logged with its key, counted, and never
// aborts the batch.
func (t *Tracker) RefreshAll(ctx context.Context) (*RefreshSummary, error) {
	rows, err := t.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("component", "staleness.refresh"))

	var processed, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.maxConcurrency)

	for _, row := range rows {
		g.Go(func() error {
			if _, _, err := t.CalculateStaleness(gctx, row.EntityID, row.PredictionType); err != nil {
				log.Warn("staleness refresh failed",
					zap.String("entity_id", row.EntityID),
					zap.String("prediction_type", row.PredictionType),
					zap.Error(err))
				failed.Add(1)
				return nil // isolate item failures
			}
			processed.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info("staleness refresh complete",
		zap.Int64("processed", processed.Load()),
		zap.Int64("failed", failed.Load()))

	return &RefreshSummary{
		Processed: int(processed.Load()),
		Failed:    int(failed.Load()),
	}, nil
}

// Report aggregates across all tracked staleness rows.
func (t *Tracker) Report(ctx context.Context) (*model.StalenessReport, error) {
	rows, err := t.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	now := t.now()
	report := &model.StalenessReport{
		ByPredictionType: make(map[string]model.StalenessTypeBreakdown),
		GeneratedAt:      now,
	}

	var totalScore float64
	for _, row := range rows {
		report.TotalEntities++
		totalScore += row.StalenessScore
		if row.RecommendRefresh {
			report.RefreshRecommended++
		}
		if row.FeatureDrift {
			report.DriftFlagged++
		}
		if row.LastValidatedAt != nil && now.Sub(*row.LastValidatedAt) <= 7*24*time.Hour {
			report.ValidatedLast7Days++
		}

		b := report.ByPredictionType[row.PredictionType]
		b.MeanStaleness = (b.MeanStaleness*float64(b.Count) + row.StalenessScore) / float64(b.Count+1)
		b.Count++
		if row.RecommendRefresh {
			b.RefreshCount++
		}
		report.ByPredictionType[row.PredictionType] = b
	}

	if report.TotalEntities > 0 {
		report.MeanStaleness = totalScore / float64(report.TotalEntities)
	}

	return report, nil
}

// refreshReason builds the human-readable explanation attached to a refresh
// recommendation.
func refreshReason(ageDays, validationAgeDays float64, everValidated, drifted bool) string {
	reason := fmt.Sprintf("prediction is %.0f days old", ageDays)
	if everValidated {
		reason += fmt.Sprintf(", last validated %.0f days ago", validationAgeDays)
	} else {
		reason += ", never validated"
	}
	if drifted {
		reason += ", feature drift detected"
	}
	return reason
}
