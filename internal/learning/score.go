package learning

import "github.com/sells-group/utility-cli/internal/model"

// ladderRung is one row of the action/confidence ladder.
type ladderRung struct {
	minSamples    int
	exactSamples  int // >0: sampleCount must equal this value
	minAgreement  float64
	exactAgree    bool // agreement must equal minAgreement exactly
	skipAgreement bool
	confidence    float64
	action        model.Action
}

// ladder is evaluated in strict order, first match wins. The ordering is a
// deliberate tie-break policy; do not reorder.
var ladder = []ladderRung{
	{minSamples: 10, minAgreement: 1.0, exactAgree: true, confidence: 0.99, action: model.ActionHardOverride},
	{minSamples: 5, minAgreement: 0.95, confidence: 0.90, action: model.ActionHardOverride},
	{minSamples: 3, minAgreement: 0.90, confidence: 0.80, action: model.ActionAIBoost},
	{minSamples: 2, minAgreement: 0.90, confidence: 0.70, action: model.ActionAIContext},
	{exactSamples: 1, skipAgreement: true, confidence: 0.50, action: model.ActionStoreOnly},
}

// Score converts a location aggregate into a discrete decision. Pure function
// of (sampleCount, agreementRate): same aggregate always yields the same
// decision, and anything below every rung maps to flag_review rather than
// being dropped.
func Score(agg model.LocationAggregate) model.ConfidenceDecision {
	dominant, rate := agg.Dominant()
	n := agg.SampleCount()

	decision := model.ConfidenceDecision{
		ZipCode:          agg.ZipCode,
		Street:           agg.Street,
		Category:         agg.Category,
		DominantProvider: dominant,
		SampleCount:      n,
		AgreementRate:    rate,
		Action:           model.ActionFlagReview,
		Confidence:       0.40,
	}

	for _, rung := range ladder {
		if rung.exactSamples > 0 {
			if n != rung.exactSamples {
				continue
			}
		} else if n < rung.minSamples {
			continue
		}
		if !rung.skipAgreement {
			if rung.exactAgree {
				if rate != rung.minAgreement {
					continue
				}
			} else if rate < rung.minAgreement {
				continue
			}
		}
		decision.Action = rung.action
		decision.Confidence = rung.confidence
		break
	}

	return decision
}
