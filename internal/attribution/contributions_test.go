package attribution

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateContributions_LastTouch(t *testing.T) {
	w := CalculateContributions(ModelLastTouch, 3, 0, 0)
	require.Len(t, w, 3)
	assert.Equal(t, 1.0, w[0]) // most recent gets everything
	assert.Equal(t, 0.0, w[1])
	assert.Equal(t, 0.0, w[2])
}

func TestCalculateContributions_FirstTouch(t *testing.T) {
	w := CalculateContributions(ModelFirstTouch, 3, 0, 0)
	require.Len(t, w, 3)
	assert.Equal(t, 0.0, w[0])
	assert.Equal(t, 1.0, w[2]) // oldest gets everything
}

func TestCalculateContributions_Linear(t *testing.T) {
	w := CalculateContributions(ModelLinear, 4, 0, 0)
	require.Len(t, w, 4)
	for _, v := range w {
		assert.InDelta(t, 0.25, v, 1e-12)
	}
}

func TestCalculateContributions_PositionBased(t *testing.T) {
	w := CalculateContributions(ModelPositionBased, 5, 0.4, 0.4)
	require.Len(t, w, 5)
	assert.InDelta(t, 0.4, w[0], 1e-12) // last touch
	assert.InDelta(t, 0.4, w[4], 1e-12) // first touch
	for i := 1; i < 4; i++ {
		assert.InDelta(t, 0.2/3, w[i], 1e-12)
	}
	assertSumsToOne(t, w)
}

func TestCalculateContributions_PositionBasedTwoTouches(t *testing.T) {
	// Only the extremes exist; their weights renormalize to 50/50.
	w := CalculateContributions(ModelPositionBased, 2, 0.4, 0.4)
	require.Len(t, w, 2)
	assert.InDelta(t, 0.5, w[0], 1e-12)
	assert.InDelta(t, 0.5, w[1], 1e-12)
}

func TestCalculateContributions_PositionBasedSingleTouch(t *testing.T) {
	w := CalculateContributions(ModelPositionBased, 1, 0.4, 0.4)
	require.Len(t, w, 1)
	assert.Equal(t, 1.0, w[0])
}

func TestCalculateContributions_SumToOne(t *testing.T) {
	models := []Model{ModelFirstTouch, ModelLastTouch, ModelLinear, ModelPositionBased, ModelTimeDecay}
	for _, m := range models {
		for n := 1; n <= 6; n++ {
			w := CalculateContributions(m, n, 0.4, 0.4)
			assertSumsToOne(t, w)
		}
	}
}

func TestCalculateContributions_ZeroCandidates(t *testing.T) {
	assert.Nil(t, CalculateContributions(ModelLinear, 0, 0, 0))
}

func TestApplyDecay_ZeroDays(t *testing.T) {
	for _, fn := range []DecayFunc{DecayNone, DecayLinear, DecayExponential} {
		assert.Equal(t, 1.0, ApplyDecay(0, fn, 7), "fn=%s", fn)
	}
}

func TestApplyDecay_ExponentialHalfLife(t *testing.T) {
	assert.InDelta(t, 0.5, ApplyDecay(7, DecayExponential, 7), 1e-12)
	assert.InDelta(t, 0.25, ApplyDecay(14, DecayExponential, 7), 1e-12)
}

func TestApplyDecay_ExponentialStrictlyDecreasing(t *testing.T) {
	prev := math.Inf(1)
	for d := 0.0; d <= 30; d++ {
		f := ApplyDecay(d, DecayExponential, 7)
		assert.Less(t, f, prev)
		assert.Greater(t, f, 0.0)
		prev = f
	}
}

func TestApplyDecay_LinearHitsZero(t *testing.T) {
	assert.InDelta(t, 0.5, ApplyDecay(3.5, DecayLinear, 7), 1e-12)
	assert.Equal(t, 0.0, ApplyDecay(7, DecayLinear, 7))
	assert.Equal(t, 0.0, ApplyDecay(20, DecayLinear, 7))
}

func TestNormalize(t *testing.T) {
	out := Normalize([]float64{2, 1, 1})
	assert.InDelta(t, 0.5, out[0], 1e-12)
	assert.InDelta(t, 0.25, out[1], 1e-12)
	assert.InDelta(t, 0.25, out[2], 1e-12)
}

func TestNormalize_AllZero(t *testing.T) {
	// Fully decayed weights must stay zero, not become NaN.
	out := Normalize([]float64{0, 0})
	assert.Equal(t, []float64{0, 0}, out)
}

func TestTouchConfidence(t *testing.T) {
	// Positive predicted delta boosts, capped at 1.
	assert.InDelta(t, 0.6, touchConfidence(0.5, 1, 0), 1e-12)
	assert.Equal(t, 1.0, touchConfidence(0.9, 1, 0))
	// Old touches get discounted.
	assert.InDelta(t, 0.4, touchConfidence(0.5, 0, 25), 1e-12)
	// Neutral touch keeps its weight.
	assert.Equal(t, 0.5, touchConfidence(0.5, 0, 10))
}

func TestParseModel_UnknownFallsBack(t *testing.T) {
	assert.Equal(t, DefaultModel, ParseModel("w_shaped"))
	assert.Equal(t, ModelLinear, ParseModel("linear"))
}

func TestParseDecayFunc_UnknownFallsBack(t *testing.T) {
	assert.Equal(t, DefaultDecay, ParseDecayFunc("gaussian"))
	assert.Equal(t, DecayExponential, ParseDecayFunc("exponential"))
}

func assertSumsToOne(t *testing.T, weights []float64) {
	t.Helper()
	var sum float64
	for _, w := range weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}
