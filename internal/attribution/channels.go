package attribution

import (
	"go.uber.org/zap"

	"github.com/pharmalink/decision-core/internal/model"
)

// kindChannels maps an outcome kind to the channel whose attribution window
// applies. Unmapped kinds default to email; that fallback is a modeling
// simplification and is logged so mis-mapped taxonomies stay observable.
var kindChannels = map[string]model.Channel{
	"email_open":        model.ChannelEmail,
	"email_click":       model.ChannelEmail,
	"email_reply":       model.ChannelEmail,
	"rx_written":        model.ChannelRepVisit,
	"rx_renewed":        model.ChannelRepVisit,
	"meeting_booked":    model.ChannelRepVisit,
	"webinar_attended":  model.ChannelWebinar,
	"webinar_question":  model.ChannelWebinar,
	"sample_requested":  model.ChannelSample,
	"sample_reordered":  model.ChannelSample,
	"call_answered":     model.ChannelPhone,
	"callback_requested": model.ChannelPhone,
}

// ChannelForKind resolves the attribution channel for an outcome kind.
func ChannelForKind(kind string) model.Channel {
	if ch, ok := kindChannels[kind]; ok {
		return ch
	}
	zap.L().Debug("attribution: unmapped outcome kind, defaulting channel",
		zap.String("kind", kind),
		zap.String("channel", string(model.ChannelEmail)),
	)
	return model.ChannelEmail
}

// validatedPredictionTypes maps an outcome kind to the prediction types it
// plausibly validates, for staleness bookkeeping.
var validatedPredictionTypes = map[string][]string{
	"email_open":       {"engagement"},
	"email_click":      {"engagement"},
	"email_reply":      {"engagement"},
	"rx_written":       {"conversion"},
	"rx_renewed":       {"conversion"},
	"meeting_booked":   {"engagement", "conversion"},
	"webinar_attended": {"engagement"},
	"sample_requested": {"conversion"},
	"sample_reordered": {"conversion"},
	"call_answered":    {"engagement"},
}

// PredictionTypesForKind returns the prediction types an outcome kind
// validates. Unknown kinds validate nothing.
func PredictionTypesForKind(kind string) []string {
	return validatedPredictionTypes[kind]
}
