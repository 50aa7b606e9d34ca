package uncertainty

import (
	"time"

	"github.com/pharmalink/decision-core/internal/model"
)

const (
	driftRecentWindowDays = 30
	driftOlderWindowDays  = 90

	responseRateDriftThreshold = 0.3
	// engagementDriftThreshold is on the 0-100 engagement scale.
	engagementDriftThreshold = 20.0

	significantDriftThreshold = 0.3
)

// ActivityWindow holds stimulus/outcome counts for one time window.
type ActivityWindow struct {
	Stimuli  int
	Outcomes int
}

// responseRate is outcomes per stimulus for a window, clamped to [0,1].
// A window with no stimuli has no measurable response rate and reads 0.
func (w ActivityWindow) responseRate() float64 {
	if w.Stimuli == 0 {
		return 0
	}
	return model.Clamp(float64(w.Outcomes)/float64(w.Stimuli), 0, 1)
}

// DetectDrift compares a recent activity window against an older one and
// the entity's engagement score against its segment baseline. The overall
// score is the mean drift magnitude across flagged features.
func DetectDrift(recent, older ActivityWindow, engagementScore, segmentBaseline float64, now time.Time) model.DriftReport {
	report := model.DriftReport{CheckedAt: now}

	var magnitudes []float64

	rateDelta := recent.responseRate() - older.responseRate()
	if rateDelta < 0 {
		rateDelta = -rateDelta
	}
	if rateDelta > responseRateDriftThreshold {
		report.DriftedFeatures = append(report.DriftedFeatures, "response_rate")
		magnitudes = append(magnitudes, rateDelta)
	}

	engDelta := engagementScore - segmentBaseline
	if engDelta < 0 {
		engDelta = -engDelta
	}
	if engDelta > engagementDriftThreshold {
		report.DriftedFeatures = append(report.DriftedFeatures, "engagement_score")
		magnitudes = append(magnitudes, model.Clamp(engDelta/100, 0, 1))
	}

	if len(magnitudes) > 0 {
		var sum float64
		for _, m := range magnitudes {
			sum += m
		}
		report.OverallScore = model.Clamp(sum/float64(len(magnitudes)), 0, 1)
	}
	report.SignificantDrift = report.OverallScore > significantDriftThreshold

	return report
}
