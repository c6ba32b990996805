package domain

// Intent keys produced by the analyzer. They match the keys of the transition table.
const (
	IntentPropertySearch   = "property_search"
	IntentValuationRequest = "valuation_request"
	IntentRiskAssessment   = "risk_assessment"
	IntentScheduling       = "scheduling"
	IntentMarketInsights   = "market_insights"
	IntentGreeting         = "greeting"
	IntentGeneralInquiry   = "general_inquiry"
)

// AmbiguityVagueReferences tags an utterance leaning on pronouns without a clear referent.
const AmbiguityVagueReferences = "vague_references"

// Entity types emitted by the extractors.
const (
	EntityBudget       = "budget"
	EntityLocation     = "location"
	EntityPropertyType = "property_type"
)

// ConfidenceSource tells where the intent confidence of an analysis came from.
type ConfidenceSource string

const (
	// ConfidenceRemote means the completion service answered in time.
	ConfidenceRemote ConfidenceSource = "remote"
	// ConfidenceLocalFallback means a remote call was attempted and failed.
	ConfidenceLocalFallback ConfidenceSource = "local_fallback"
	// ConfidenceLocal means no completion service is configured.
	ConfidenceLocal ConfidenceSource = "local"
)

// Entity is a structured value extracted from free text.
type Entity struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// MessageAnalysis holds the signals extracted from a single utterance.
type MessageAnalysis struct {
	ClarityScore         float64  `json:"clarity_score"`
	IntentConfidence     float64  `json:"intent_confidence"`
	SentimentScore       float64  `json:"sentiment_score"`
	CompletenessScore    float64  `json:"completeness_score"`
	PotentialAmbiguities []string `json:"potential_ambiguities"`
	DetectedIntent       string   `json:"detected_intent"`
	Entities             []Entity `json:"entities"`

	// MissingFields lists the required fields the completeness check did not find.
	MissingFields []string `json:"missing_fields,omitempty"`

	ConfidenceSource ConfidenceSource `json:"confidence_source"`
}

// HasAmbiguity reports whether tag was flagged.
func (a MessageAnalysis) HasAmbiguity(tag string) bool {
	for _, t := range a.PotentialAmbiguities {
		if t == tag {
			return true
		}
	}
	return false
}

// EntitiesOf returns the entities of the given type, in extraction order.
func (a MessageAnalysis) EntitiesOf(kind string) []Entity {
	var out []Entity
	for _, e := range a.Entities {
		if e.Type == kind {
			out = append(out, e)
		}
	}
	return out
}
