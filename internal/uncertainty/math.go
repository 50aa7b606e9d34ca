// Package uncertainty quantifies how much a prediction about an entity
// should be trusted: it decomposes predictive uncertainty into an epistemic
// (data-volume-driven, reducible) and an aleatoric (outcome-noise-driven,
// irreducible) term, derives confidence intervals, detects behavioral
// drift and scores UCB-style exploration value.
package uncertainty

import (
	"math"

	"github.com/pharmalink/decision-core/internal/model"
)

const (
	sampleWeight   = 0.6
	varianceWeight = 0.4
	// varianceScale normalizes the predicted-delta standard deviation into
	// [0,1]; deltas live on a 0-100 scale so a stddev of 10 saturates.
	varianceScale = 10.0
	// errorScale normalizes the prediction-error standard deviation.
	errorScale = 20.0
	// aleatoricDefault is the conservative constant returned when fewer
	// than two predicted/actual pairs exist.
	aleatoricDefault = 0.5

	zScore95 = 1.96

	preferredChannelBoost = 1.2
	topTierBoost          = 1.15
	bottomTierDiscount    = 0.85

	// ucbColdStart is the bonus multiple for an entirely untried
	// entity/channel pair (n=0): a strong "try this" signal.
	ucbColdStart = 2.0
	// ucbScale normalizes the raw UCB bonus into [0,1].
	ucbScale = 3.0
)

// Epistemic computes the reducible uncertainty term from the sample size
// and the population variance of historical predicted engagement deltas.
func Epistemic(sampleSize int, predictedDeltas []float64) float64 {
	sampleTerm := 1 / math.Sqrt(float64(sampleSize)+1)

	normVariance := math.Sqrt(populationVariance(predictedDeltas)) / varianceScale
	if normVariance > 1 {
		normVariance = 1
	}

	return model.Clamp(sampleWeight*sampleTerm+varianceWeight*normVariance, 0, 1)
}

// Aleatoric computes the irreducible uncertainty term from the spread of
// (actual - predicted) errors. With fewer than two pairs it returns the
// conservative default rather than failing.
func Aleatoric(errors []float64) float64 {
	if len(errors) < 2 {
		return aleatoricDefault
	}
	return model.Clamp(math.Sqrt(populationVariance(errors))/errorScale, 0, 1)
}

// Total combines the two terms Euclidean-style.
func Total(epistemic, aleatoric float64) float64 {
	return math.Sqrt(epistemic*epistemic + aleatoric*aleatoric)
}

// PointPrediction adjusts an entity's baseline engagement score for channel
// preference and tier, clamped to [0,100].
func PointPrediction(baseline float64, preferredChannelMatch bool, tier model.Tier) float64 {
	p := baseline
	if preferredChannelMatch {
		p *= preferredChannelBoost
	}
	switch tier {
	case model.TierTop:
		p *= topTierBoost
	case model.TierBottom:
		p *= bottomTierDiscount
	}
	return model.Clamp(p, 0, 100)
}

// ConfidenceInterval derives the 95% interval around a point prediction.
// Bounds are clamped to [0,100]; the returned width is the unclamped
// total width.
func ConfidenceInterval(point, totalUncertainty float64) (lower, upper, width float64) {
	width = totalUncertainty * zScore95 * 2
	half := width / 2
	lower = model.Clamp(point-half, 0, 100)
	upper = model.Clamp(point+half, 0, 100)
	return lower, upper, width
}

// UCBBonus computes the exploration value for an entity/channel pair:
// c * sqrt(ln(N)/n) with n samples for the pair out of N channel-wide,
// normalized into [0,1]. An untried pair (n=0) gets the cold-start bonus.
func UCBBonus(c float64, n, total int) float64 {
	var bonus float64
	if n <= 0 {
		bonus = c * ucbColdStart
	} else {
		if total < 1 {
			total = 1
		}
		ln := math.Log(float64(total))
		if ln < 0 {
			ln = 0
		}
		bonus = c * math.Sqrt(ln/float64(n))
	}
	return model.Clamp(bonus/ucbScale, 0, 1)
}

// populationVariance returns the population (not sample) variance.
func populationVariance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return ss / float64(len(values))
}
