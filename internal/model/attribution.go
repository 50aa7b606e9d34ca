package model

import "time"

// TouchPosition tags a candidate's position in the attribution window.
type TouchPosition int

const (
	PositionFirst  TouchPosition = 1
	PositionMiddle TouchPosition = 0
	PositionLast   TouchPosition = -1
)

// AttributionConfig is the per-channel attribution policy. The empty
// channel holds the global default. Upserted by operators, read-mostly.
type AttributionConfig struct {
	Channel      Channel   `json:"channel"`
	WindowDays   int       `json:"window_days"`
	DecayFn      string    `json:"decay_fn"`
	Model        string    `json:"model"`
	FirstWeight  *float64  `json:"first_touch_weight,omitempty"`
	LastWeight   *float64  `json:"last_touch_weight,omitempty"`
	MiddleWeight *float64  `json:"middle_touch_weight,omitempty"`
	HalfLifeDays float64   `json:"half_life_days"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OutcomeAttribution is one (outcome, contributing stimulus) credit row.
// For a given outcome the contribution weights across its rows sum to 1,
// unless zero touchpoints existed, in which case no rows exist.
type OutcomeAttribution struct {
	ID                 int64         `json:"id"`
	OutcomeID          string        `json:"outcome_id"`
	StimulusID         string        `json:"stimulus_id"`
	ContributionWeight float64       `json:"contribution_weight"` // 0-1
	DecayFactor        float64       `json:"decay_factor"`
	DaysBetween        float64       `json:"days_between"`
	TouchPosition      TouchPosition `json:"touch_position"`
	TotalTouches       int           `json:"total_touches"`
	Confidence         float64       `json:"confidence"` // 0-1
	CreatedAt          time.Time     `json:"created_at"`
}

// AttributionResult is the outward-facing summary of one attribution run.
type AttributionResult struct {
	OutcomeID                string               `json:"outcome_id"`
	Channel                  Channel              `json:"channel"`
	Model                    string               `json:"model"`
	TotalContributingActions int                  `json:"total_contributing_actions"`
	PrimaryStimulusID        *string              `json:"primary_stimulus_id"`
	PrimaryWeight            float64              `json:"primary_weight"`
	Confidence               float64              `json:"confidence"`
	Attributions             []OutcomeAttribution `json:"attributions"`
}

// OutcomeVelocity summarizes outcome throughput and attribution coverage
// over a period, for dashboards and decision layers.
type OutcomeVelocity struct {
	PeriodStart     time.Time       `json:"period_start"`
	PeriodEnd       time.Time       `json:"period_end"`
	TotalOutcomes   int             `json:"total_outcomes"`
	AttributedCount int             `json:"attributed_count"`
	AttributionRate float64         `json:"attribution_rate"` // 0-1
	OutcomesPerDay  float64         `json:"outcomes_per_day"`
	ByChannel       map[Channel]int `json:"by_channel"`
	ByKind          map[string]int  `json:"by_kind"`
}
