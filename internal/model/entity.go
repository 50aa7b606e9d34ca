// Package model holds the shared domain types of the learning core:
// stimuli, outcomes, attribution output, staleness rows and uncertainty
// metrics. All score-like values live in bounded domains (0-100 for
// percentages, 0-1 for probabilities and weights) and are clamped, never
// rejected, when arithmetic pushes them outside.
package model

import "time"

// Tier buckets entities by expected value.
type Tier string

const (
	TierTop    Tier = "top"
	TierMiddle Tier = "middle"
	TierBottom Tier = "bottom"
)

// Channel identifies a marketing delivery channel.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelRepVisit Channel = "rep_visit"
	ChannelWebinar  Channel = "webinar"
	ChannelSample   Channel = "sample"
	ChannelPhone    Channel = "phone"
)

// KnownChannels lists every channel the core reasons about. Channel
// coverage in data-quality scoring is measured against this set.
var KnownChannels = []Channel{
	ChannelEmail, ChannelRepVisit, ChannelWebinar, ChannelSample, ChannelPhone,
}

// EntityProfile is a read-only view of a target entity (e.g. a prescriber).
// Owned by an external profile service; this core only reads it.
type EntityProfile struct {
	EntityID         string    `json:"entity_id"`
	Name             string    `json:"name"`
	Tier             Tier      `json:"tier"`
	Segment          string    `json:"segment"`
	PreferredChannel Channel   `json:"preferred_channel"`
	EngagementScore  float64   `json:"engagement_score"` // 0-100 baseline
	Specialty        string    `json:"specialty,omitempty"`
	Region           string    `json:"region,omitempty"`
	Email            string    `json:"email,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// RequiredProfileFields and OptionalProfileFields drive profile
// completeness scoring: required fields carry 70% of the weight,
// optional fields 30%.
var (
	RequiredProfileFields = []string{"name", "tier", "segment", "preferred_channel"}
	OptionalProfileFields = []string{"specialty", "region", "email"}
)

// FieldPresence reports which profile fields are populated.
func (p EntityProfile) FieldPresence() map[string]bool {
	return map[string]bool{
		"name":              p.Name != "",
		"tier":              p.Tier != "",
		"segment":           p.Segment != "",
		"preferred_channel": p.PreferredChannel != "",
		"specialty":         p.Specialty != "",
		"region":            p.Region != "",
		"email":             p.Email != "",
	}
}
