package staleness

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pharmalink/decision-core/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestScore_FreshPrediction(t *testing.T) {
	// Just predicted and just validated: nothing stale about it.
	assert.Equal(t, 0.0, Score(0, 0, true, false))
}

func TestScore_NeverValidated(t *testing.T) {
	// A brand-new never-validated prediction carries only the fixed
	// validation penalty: 0.4 * 0.5.
	assert.InDelta(t, 0.2, Score(0, 0, false, false), 1e-9)
}

func TestScore_OldValidatedDrifted(t *testing.T) {
	// 30-day-old prediction (age saturated), validated 14 days ago
	// (validation saturated), with drift: 0.4 + 0.4 + 0.2*0.3... drift
	// contributes 0.2 * 0.3 = 0.06.
	got := Score(30, 14, true, true)
	assert.InDelta(t, 0.4+0.4+0.06, got, 1e-9)
}

func TestScore_SaturatesAtOne(t *testing.T) {
	got := Score(500, 500, true, true)
	assert.LessOrEqual(t, got, 1.0)
}

func TestScore_MonotonicInAge(t *testing.T) {
	prev := -1.0
	for age := 0.0; age <= 30; age += 5 {
		s := Score(age, 0, true, false)
		assert.GreaterOrEqual(t, s, prev)
		prev = s
	}
}

// memStore is an in-memory Store for tracker tests.
type memStore struct {
	mu   sync.Mutex
	rows map[string]*model.PredictionStaleness
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]*model.PredictionStaleness{}}
}

func key(entityID, predictionType string) string { return entityID + "/" + predictionType }

func (m *memStore) Get(_ context.Context, entityID, predictionType string) (*model.PredictionStaleness, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[key(entityID, predictionType)]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (m *memStore) RegisterPrediction(_ context.Context, entityID, predictionType string, value, confidence float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[key(entityID, predictionType)] = &model.PredictionStaleness{
		EntityID: entityID, PredictionType: predictionType,
		LastPredictedAt: time.Now(), LastPredictedValue: &value,
		PredictionConfidence: &confidence,
	}
	return nil
}

func (m *memStore) MarkRefreshNeeded(_ context.Context, entityID, predictionType, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(entityID, predictionType)
	row, ok := m.rows[k]
	if !ok {
		row = &model.PredictionStaleness{EntityID: entityID, PredictionType: predictionType,
			LastPredictedAt: time.Now()}
		m.rows[k] = row
	}
	row.RecommendRefresh = true
	row.RefreshReason = reason
	return nil
}

func (m *memStore) UpdateScore(_ context.Context, entityID, predictionType string, score float64, recommend bool, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[key(entityID, predictionType)]
	if !ok {
		return nil
	}
	row.StalenessScore = score
	row.RecommendRefresh = recommend
	row.RefreshReason = reason
	return nil
}

func (m *memStore) RecordValidation(_ context.Context, entityID, predictionType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[key(entityID, predictionType)]
	if !ok {
		return nil // never creates rows
	}
	now := time.Now()
	row.LastValidatedAt = &now
	row.OutcomesSincePrediction++
	return nil
}

func (m *memStore) SetFeatureDrift(_ context.Context, entityID, predictionType string, drifted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[key(entityID, predictionType)]; ok {
		row.FeatureDrift = drifted
	}
	return nil
}

func (m *memStore) ListAll(_ context.Context) ([]model.PredictionStaleness, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.PredictionStaleness
	for _, row := range m.rows {
		out = append(out, *row)
	}
	return out, nil
}

func TestCalculateStaleness_NotTracked(t *testing.T) {
	tracker := NewTracker(newMemStore(), 1)

	score, found, err := tracker.CalculateStaleness(context.Background(), "hcp-1", "engagement")
	require.NoError(t, err)
	assert.False(t, found) // absence is not staleness
	assert.Zero(t, score)
}

func TestCalculateStaleness_OldPredictionRecommendsRefresh(t *testing.T) {
	store := newMemStore()
	now := time.Now()
	old := now.AddDate(0, 0, -45)
	store.rows[key("hcp-1", "engagement")] = &model.PredictionStaleness{
		EntityID: "hcp-1", PredictionType: "engagement",
		LastPredictedAt: old,
	}

	tracker := NewTracker(store, 1).WithNow(now)
	score, found, err := tracker.CalculateStaleness(context.Background(), "hcp-1", "engagement")
	require.NoError(t, err)
	require.True(t, found)

	// Age saturated (0.4) + never-validated penalty (0.2) = 0.6, below the
	// 0.7 refresh threshold without drift.
	assert.InDelta(t, 0.6, score, 1e-9)
	row, _ := store.Get(context.Background(), "hcp-1", "engagement")
	assert.False(t, row.RecommendRefresh)

	// With drift it crosses the threshold.
	require.NoError(t, store.SetFeatureDrift(context.Background(), "hcp-1", "engagement", true))
	score, _, err = tracker.CalculateStaleness(context.Background(), "hcp-1", "engagement")
	require.NoError(t, err)
	assert.InDelta(t, 0.66, score, 1e-9)
	// Still below 0.7: no recommendation.
	row, _ = store.Get(context.Background(), "hcp-1", "engagement")
	assert.False(t, row.RecommendRefresh)
}

func TestCalculateStaleness_RefreshReasonSet(t *testing.T) {
	store := newMemStore()
	now := time.Now()
	old := now.AddDate(0, 0, -60)
	validated := now.AddDate(0, 0, -30)
	store.rows[key("hcp-2", "conversion")] = &model.PredictionStaleness{
		EntityID: "hcp-2", PredictionType: "conversion",
		LastPredictedAt: old, LastValidatedAt: &validated, FeatureDrift: true,
	}

	tracker := NewTracker(store, 1).WithNow(now)
	score, found, err := tracker.CalculateStaleness(context.Background(), "hcp-2", "conversion")
	require.NoError(t, err)
	require.True(t, found)

	// 0.4 + 0.4 + 0.06 = 0.86, above threshold.
	assert.InDelta(t, 0.86, score, 1e-9)
	row, _ := store.Get(context.Background(), "hcp-2", "conversion")
	assert.True(t, row.RecommendRefresh)
	assert.Contains(t, row.RefreshReason, "60 days old")
	assert.Contains(t, row.RefreshReason, "drift")
}

func TestRegisterPrediction_ClampsConfidence(t *testing.T) {
	store := newMemStore()
	tracker := NewTracker(store, 1)

	require.NoError(t, tracker.RegisterPrediction(context.Background(), "hcp-1", "engagement", 50, 1.7))
	row, _ := store.Get(context.Background(), "hcp-1", "engagement")
	require.NotNil(t, row)
	assert.Equal(t, 1.0, *row.PredictionConfidence)
}

func TestRefreshAll(t *testing.T) {
	store := newMemStore()
	now := time.Now()
	for _, id := range []string{"a", "b", "c"} {
		store.rows[key(id, "engagement")] = &model.PredictionStaleness{
			EntityID: id, PredictionType: "engagement",
			LastPredictedAt: now.AddDate(0, 0, -10),
		}
	}

	tracker := NewTracker(store, 4).WithNow(now)
	summary, err := tracker.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Processed)
	assert.Zero(t, summary.Failed)

	for _, id := range []string{"a", "b", "c"} {
		row, _ := store.Get(context.Background(), id, "engagement")
		assert.Greater(t, row.StalenessScore, 0.0)
	}
}

func TestReport(t *testing.T) {
	store := newMemStore()
	now := time.Now()
	recent := now.AddDate(0, 0, -2)
	store.rows[key("a", "engagement")] = &model.PredictionStaleness{
		EntityID: "a", PredictionType: "engagement",
		LastPredictedAt: now, StalenessScore: 0.2, LastValidatedAt: &recent,
	}
	store.rows[key("b", "engagement")] = &model.PredictionStaleness{
		EntityID: "b", PredictionType: "engagement",
		LastPredictedAt: now, StalenessScore: 0.8, RecommendRefresh: true, FeatureDrift: true,
	}
	store.rows[key("c", "conversion")] = &model.PredictionStaleness{
		EntityID: "c", PredictionType: "conversion",
		LastPredictedAt: now, StalenessScore: 0.5,
	}

	tracker := NewTracker(store, 1).WithNow(now)
	report, err := tracker.Report(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalEntities)
	assert.Equal(t, 1, report.RefreshRecommended)
	assert.Equal(t, 1, report.DriftFlagged)
	assert.Equal(t, 1, report.ValidatedLast7Days)
	assert.InDelta(t, 0.5, report.MeanStaleness, 1e-9)

	eng := report.ByPredictionType["engagement"]
	assert.Equal(t, 2, eng.Count)
	assert.InDelta(t, 0.5, eng.MeanStaleness, 1e-9)
	assert.Equal(t, 1, eng.RefreshCount)
}
