package attribution

import "math"

// CalculateContributions computes base contribution weights for n candidate
// stimuli ordered most-recent first (index 0 = most recent, index n-1 =
// oldest). The returned weights sum to 1 for every model; decay is applied
// separately by the caller.
func CalculateContributions(m Model, n int, firstWeight, lastWeight float64) []float64 {
	if n <= 0 {
		return nil
	}

	weights := make([]float64, n)

	switch m {
	case ModelFirstTouch:
		weights[n-1] = 1

	case ModelLastTouch:
		weights[0] = 1

	case ModelLinear, ModelTimeDecay:
		// time_decay starts from an equal split; the decay factor applied
		// afterward is what encodes the recency preference.
		share := 1.0 / float64(n)
		for i := range weights {
			weights[i] = share
		}

	case ModelPositionBased:
		if firstWeight <= 0 {
			firstWeight = defaultPositionWeight
		}
		if lastWeight <= 0 {
			lastWeight = defaultPositionWeight
		}
		switch n {
		case 1:
			weights[0] = 1
		case 2:
			// Only the two extremes exist; renormalize their weights to sum 1.
			total := firstWeight + lastWeight
			weights[0] = lastWeight / total
			weights[1] = firstWeight / total
		default:
			weights[0] = lastWeight
			weights[n-1] = firstWeight
			middle := 1 - firstWeight - lastWeight
			if middle < 0 {
				middle = 0
			}
			share := middle / float64(n-2)
			for i := 1; i < n-1; i++ {
				weights[i] = share
			}
		}

	default:
		weights[0] = 1 // last_touch fallback
	}

	return weights
}

// ApplyDecay returns the decay factor for a touch daysSince days before the
// outcome. ApplyDecay(0, fn, h) = 1 for every function; exponential decay
// reaches exactly 0.5 at daysSince = halfLife.
func ApplyDecay(daysSince float64, fn DecayFunc, halfLifeDays float64) float64 {
	if daysSince < 0 {
		daysSince = 0
	}
	if halfLifeDays <= 0 {
		halfLifeDays = DefaultHalfLifeDays
	}

	switch fn {
	case DecayLinear:
		f := 1 - daysSince/halfLifeDays
		if f < 0 {
			return 0
		}
		return f
	case DecayExponential:
		return math.Exp(-math.Ln2 / halfLifeDays * daysSince)
	default:
		return 1
	}
}

// Normalize rescales weights to sum to 1. If the total is 0 (every touch
// fully decayed), all weights stay 0.
func Normalize(weights []float64) []float64 {
	var total float64
	for _, w := range weights {
		total += w
	}

	out := make([]float64, len(weights))
	if total == 0 {
		return out
	}
	for i, w := range weights {
		out[i] = w / total
	}
	return out
}

const (
	// positiveSignalBoost rewards touches whose predicted engagement
	// delta was positive.
	positiveSignalBoost = 1.2
	// stalePenalty discounts touches older than stalePenaltyDays.
	stalePenalty     = 0.8
	stalePenaltyDays = 21.0
)

// touchConfidence scores how confident we are in one candidate's
// contribution, starting from its normalized weight.
func touchConfidence(normalizedWeight, predictedEngagementDelta, daysSince float64) float64 {
	c := normalizedWeight
	if predictedEngagementDelta > 0 {
		c *= positiveSignalBoost
		if c > 1 {
			c = 1
		}
	}
	if daysSince > stalePenaltyDays {
		c *= stalePenalty
	}
	return c
}
