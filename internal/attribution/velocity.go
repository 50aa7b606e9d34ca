package attribution

import (
	"context"
	"time"

	"github.com/pharmalink/decision-core/internal/model"
)

// OutcomeVelocity aggregates outcome throughput and attribution coverage
// over [from, to], broken down by channel and outcome kind.
func OutcomeVelocity(ctx context.Context, store Store, from, to time.Time) (*model.OutcomeVelocity, error) {
	counts, err := store.OutcomeCounts(ctx, from, to)
	if err != nil {
		return nil, err
	}

	v := &model.OutcomeVelocity{
		PeriodStart: from,
		PeriodEnd:   to,
		ByChannel:   make(map[model.Channel]int),
		ByKind:      make(map[string]int),
	}

	for _, c := range counts {
		v.TotalOutcomes += c.Total
		v.AttributedCount += c.Attributed
		v.ByChannel[c.Channel] += c.Total
		v.ByKind[c.Kind] += c.Total
	}

	if v.TotalOutcomes > 0 {
		v.AttributionRate = model.Clamp(float64(v.AttributedCount)/float64(v.TotalOutcomes), 0, 1)
	}

	days := to.Sub(from).Hours() / 24
	if days > 0 {
		v.OutcomesPerDay = float64(v.TotalOutcomes) / days
	}

	return v, nil
}
