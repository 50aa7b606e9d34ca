package uncertainty

import (
	"github.com/pharmalink/decision-core/internal/model"
)

const (
	requiredFieldWeight = 0.7
	optionalFieldWeight = 0.3

	recencyHorizonDays = 90.0
	historySaturation  = 10.0

	completenessWeight = 0.3
	recencyWeight      = 0.3
	historyWeight      = 0.2
	coverageWeight     = 0.2
)

// AssessDataQuality scores the completeness and freshness of an entity's
// data: profile field presence (required fields carry 70% of the weight),
// touch recency, stimulus history depth and channel coverage.
func AssessDataQuality(p model.EntityProfile, stimulusCount int, daysSinceLastTouch float64, channelsCovered int) model.DataQuality {
	presence := p.FieldPresence()

	requiredPresent := 0
	for _, f := range model.RequiredProfileFields {
		if presence[f] {
			requiredPresent++
		}
	}
	optionalPresent := 0
	for _, f := range model.OptionalProfileFields {
		if presence[f] {
			optionalPresent++
		}
	}

	completeness := requiredFieldWeight*float64(requiredPresent)/float64(len(model.RequiredProfileFields)) +
		optionalFieldWeight*float64(optionalPresent)/float64(len(model.OptionalProfileFields))

	recency := 1 - daysSinceLastTouch/recencyHorizonDays
	if recency < 0 {
		recency = 0
	}
	if stimulusCount == 0 {
		recency = 0
	}

	history := float64(stimulusCount) / historySaturation
	if history > 1 {
		history = 1
	}

	coverage := float64(channelsCovered) / float64(len(model.KnownChannels))
	if coverage > 1 {
		coverage = 1
	}

	overall := completenessWeight*completeness + recencyWeight*recency +
		historyWeight*history + coverageWeight*coverage

	return model.DataQuality{
		ProfileCompleteness: model.Clamp(completeness, 0, 1),
		RecencyScore:        model.Clamp(recency, 0, 1),
		HistoryScore:        model.Clamp(history, 0, 1),
		ChannelCoverage:     model.Clamp(coverage, 0, 1),
		OverallScore:        model.Clamp(overall, 0, 1),
		DaysSinceLastTouch:  daysSinceLastTouch,
		StimulusCount:       stimulusCount,
	}
}
