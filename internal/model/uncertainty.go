package model

import "time"

// UncertaintyMetrics is the latest uncertainty decomposition for an
// (entity, channel-or-empty, prediction type) key. Upserted, not appended;
// the latest recomputation supersedes the prior row.
type UncertaintyMetrics struct {
	EntityID       string  `json:"entity_id"`
	Channel        Channel `json:"channel,omitempty"` // empty = channel-agnostic
	PredictionType string  `json:"prediction_type"`

	PredictedValue float64 `json:"predicted_value"` // 0-100
	CILower        float64 `json:"ci_lower"`
	CIUpper        float64 `json:"ci_upper"`
	CIWidth        float64 `json:"ci_width"`

	Epistemic        float64 `json:"epistemic"`         // reducible, data-volume-driven
	Aleatoric        float64 `json:"aleatoric"`         // irreducible outcome noise
	TotalUncertainty float64 `json:"total_uncertainty"` // Euclidean combination

	SampleSize          int     `json:"sample_size"`
	DataRecencyDays     float64 `json:"data_recency_days"`
	FeatureCompleteness float64 `json:"feature_completeness"` // 0-1
	PredictionAgeDays   float64 `json:"prediction_age_days"`
	DriftScore          float64 `json:"drift_score"` // 0-1

	ExplorationValue     float64 `json:"exploration_value"` // normalized UCB bonus, 0-1
	RecommendExploration bool    `json:"recommend_exploration"`

	CalculatedAt time.Time `json:"calculated_at"`
}

// DataQuality scores the completeness and freshness of an entity's data.
type DataQuality struct {
	ProfileCompleteness float64 `json:"profile_completeness"` // 0-1
	RecencyScore        float64 `json:"recency_score"`        // 0-1
	HistoryScore        float64 `json:"history_score"`        // 0-1
	ChannelCoverage     float64 `json:"channel_coverage"`     // 0-1
	OverallScore        float64 `json:"overall_score"`        // 0-1
	DaysSinceLastTouch  float64 `json:"days_since_last_touch"`
	StimulusCount       int     `json:"stimulus_count"`
}

// DriftReport describes detected behavioral drift for an entity.
type DriftReport struct {
	DriftedFeatures  []string  `json:"drifted_features"`
	OverallScore     float64   `json:"overall_score"` // mean drift magnitude, 0-1
	SignificantDrift bool      `json:"significant_drift"`
	CheckedAt        time.Time `json:"checked_at"`
}

// ExplorationConfig holds per-channel exploration parameters. The empty
// channel holds the global default.
type ExplorationConfig struct {
	Channel              Channel   `json:"channel"`
	UncertaintyThreshold float64   `json:"uncertainty_threshold"`
	MinSampleSize        int       `json:"min_sample_size"`
	UCBConstant          float64   `json:"ucb_constant"`
	Epsilon              float64   `json:"epsilon"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// ExplorationRecord logs whether an action was an exploratory pick and,
// once resolved, how informative it was.
type ExplorationRecord struct {
	ID               int64     `json:"id"`
	EntityID         string    `json:"entity_id"`
	Channel          Channel   `json:"channel,omitempty"`
	Exploratory      bool      `json:"exploratory"`
	ExplorationValue float64   `json:"exploration_value"`
	InformationGain  *float64  `json:"information_gain,omitempty"`
	PredictionError  *float64  `json:"prediction_error,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// UncertaintySummary aggregates stored uncertainty metrics.
type UncertaintySummary struct {
	TotalRows            int             `json:"total_rows"`
	MeanTotalUncertainty float64         `json:"mean_total_uncertainty"`
	MeanEpistemic        float64         `json:"mean_epistemic"`
	MeanAleatoric        float64         `json:"mean_aleatoric"`
	AboveThreshold       int             `json:"above_threshold"`
	ExplorationFlagged   int             `json:"exploration_flagged"`
	ByChannel            map[Channel]int `json:"by_channel"`
	ByPredictionType     map[string]int  `json:"by_prediction_type"`
	GeneratedAt          time.Time       `json:"generated_at"`
}

// ExplorationStatistics aggregates the exploration history log.
type ExplorationStatistics struct {
	TotalActions        int             `json:"total_actions"`
	ExploratoryActions  int             `json:"exploratory_actions"`
	ExplorationRate     float64         `json:"exploration_rate"` // 0-1
	MeanInformationGain float64         `json:"mean_information_gain"`
	MeanPredictionError float64         `json:"mean_prediction_error"`
	ByChannel           map[Channel]int `json:"by_channel"`
	GeneratedAt         time.Time       `json:"generated_at"`
}

// Clamp constrains v to [lo, hi]. Downstream consumers must never observe
// NaN, negative probabilities or out-of-range percentages.
func Clamp(v, lo, hi float64) float64 {
	if v != v { // NaN
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
