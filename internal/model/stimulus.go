package model

import "time"

// Stimulus is a marketing touch delivered to an entity. Rows are immutable
// once created except for the actual-delta fields, which are filled exactly
// once when an outcome confirms the touch.
type Stimulus struct {
	ID         string    `json:"id"`
	EntityID   string    `json:"entity_id"`
	Channel    Channel   `json:"channel"`
	Kind       string    `json:"kind"` // e.g. "email_send", "rep_visit", "sample_drop"
	OccurredAt time.Time `json:"occurred_at"`

	// Predicted effect at send time.
	PredictedEngagementDelta float64 `json:"predicted_engagement_delta"`
	PredictedConversionDelta float64 `json:"predicted_conversion_delta"`

	// Observed effect, back-filled once when an outcome confirms.
	ActualEngagementDelta *float64 `json:"actual_engagement_delta,omitempty"`
	ActualConversionDelta *float64 `json:"actual_conversion_delta,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// AttributionType distinguishes operator-declared causality from
// window-inferred causality.
type AttributionType string

const (
	// AttributionDirect means the outcome arrived with an explicit stimulus
	// reference.
	AttributionDirect AttributionType = "direct"
	// AttributionAssisted means the cause was inferred from the window search.
	AttributionAssisted AttributionType = "assisted"
)

// Outcome is an observed response potentially caused by one or more stimuli.
// Created once per real-world event; mutated only by the attribution step
// that back-fills the primary-cause fields.
type Outcome struct {
	ID         string    `json:"id"`
	EntityID   string    `json:"entity_id"`
	Kind       string    `json:"kind"` // e.g. "email_open", "rx_written"
	Channel    Channel   `json:"channel"`
	OccurredAt time.Time `json:"occurred_at"`

	ObservedValue float64 `json:"observed_value"`
	QualityScore  float64 `json:"quality_score"` // 0-1

	// Optional explicit cause supplied by the caller.
	SourceStimulusID *string         `json:"source_stimulus_id,omitempty"`
	AttributionType  AttributionType `json:"attribution_type"`

	// Back-filled by attribution.
	PrimaryStimulusID *string  `json:"primary_stimulus_id,omitempty"`
	AttributionWeight *float64 `json:"attribution_weight,omitempty"`
	TouchesInWindow   int      `json:"touches_in_window"`

	CreatedAt time.Time `json:"created_at"`
}
