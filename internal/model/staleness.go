package model

import "time"

// PredictionStaleness tracks how old and how validated the last prediction
// for an (entity, prediction type) pair is. Updated on two independent
// triggers: a new prediction registration (resets staleness to 0) and a new
// outcome being attributed (extends validation recency and outcome count).
type PredictionStaleness struct {
	EntityID                string     `json:"entity_id"`
	PredictionType          string     `json:"prediction_type"` // e.g. "engagement", "conversion"
	LastPredictedAt         time.Time  `json:"last_predicted_at"`
	LastPredictedValue      *float64   `json:"last_predicted_value,omitempty"`
	PredictionConfidence    *float64   `json:"prediction_confidence,omitempty"`
	LastValidatedAt         *time.Time `json:"last_validated_at,omitempty"`
	OutcomesSincePrediction int        `json:"outcomes_since_prediction"`
	FeatureDrift            bool       `json:"feature_drift"`
	StalenessScore          float64    `json:"staleness_score"` // 0-1
	RecommendRefresh        bool       `json:"recommend_refresh"`
	RefreshReason           string     `json:"refresh_reason,omitempty"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// StalenessTypeBreakdown summarizes staleness for one prediction type.
type StalenessTypeBreakdown struct {
	Count         int     `json:"count"`
	MeanStaleness float64 `json:"mean_staleness"`
	RefreshCount  int     `json:"refresh_count"`
}

// StalenessReport aggregates across all tracked staleness rows.
type StalenessReport struct {
	TotalEntities      int                               `json:"total_entities"`
	RefreshRecommended int                               `json:"refresh_recommended"`
	MeanStaleness      float64                           `json:"mean_staleness"`
	ByPredictionType   map[string]StalenessTypeBreakdown `json:"by_prediction_type"`
	DriftFlagged       int                               `json:"drift_flagged"`
	ValidatedLast7Days int                               `json:"validated_last_7_days"`
	GeneratedAt        time.Time                         `json:"generated_at"`
}
