package model

// Action is the discrete decision derived from a location aggregate.
type Action string

const (
	ActionHardOverride Action = "hard_override"
	ActionAIBoost      Action = "ai_boost"
	ActionAIContext    Action = "ai_context"
	ActionStoreOnly    Action = "store_only"
	ActionFlagReview   Action = "flag_review"
)

// AllActions returns every action in ladder order, strongest first.
func AllActions() []Action {
	return []Action{
		ActionHardOverride,
		ActionAIBoost,
		ActionAIContext,
		ActionStoreOnly,
		ActionFlagReview,
	}
}

// ConfidenceDecision is the pure output of the confidence ladder for one
// location aggregate. Same inputs always produce the same decision.
type ConfidenceDecision struct {
	ZipCode          string   `json:"zip_code"`
	Street           string   `json:"street"`
	Category         Category `json:"category"`
	DominantProvider string   `json:"dominant_provider"`
	SampleCount      int      `json:"sample_count"`
	AgreementRate    float64  `json:"agreement_rate"`
	Action           Action   `json:"action"`
	Confidence       float64  `json:"confidence"`
}

// MarketKind distinguishes deregulated-market roles.
type MarketKind string

const (
	KindRetailSeller MarketKind = "retail_seller"
	KindNetworkOwner MarketKind = "network_owner"
	KindUnknown      MarketKind = "unknown"
)

// MarketClassification is derived per query from the static market tables;
// it is never persisted.
type MarketClassification struct {
	ProviderName       string     `json:"provider_name"`
	State              string     `json:"state"`
	Kind               MarketKind `json:"kind"`
	CanonicalName      string     `json:"canonical_name"`
	IsDeregulatedState bool       `json:"is_deregulated_state"`
}
