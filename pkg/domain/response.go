package domain

// FallbackType classifies a low-confidence branch offered to the user.
type FallbackType string

const (
	FallbackClarification  FallbackType = "clarification"
	FallbackInformationGap FallbackType = "information_gap"
	FallbackAlternative    FallbackType = "alternative"
)

// QuickAction is a one-tap reply a channel may render as a button.
type QuickAction struct {
	Action string `json:"action"`
	Label  string `json:"label"`
}

// RichMedia points the channel at a non-text attachment.
type RichMedia struct {
	Type    string `json:"type"` // image, video, document, map
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

// FallbackOption is a clarification or alternative offered when confidence is low.
type FallbackOption struct {
	Type    FallbackType `json:"type"`
	Message string       `json:"message"`
	Options []string     `json:"options,omitempty"`
}

// ResponseMetadata describes how a response was produced.
type ResponseMetadata struct {
	Confidence     float64 `json:"confidence"`
	ProcessingTime float64 `json:"processing_time"` // seconds
	ModelID        string  `json:"model_id"`
}

// QualityResponse is the structured reply of a turn, free of any rendering concern.
type QualityResponse struct {
	Message         string           `json:"message"`
	QuickActions    []QuickAction    `json:"quick_actions,omitempty"`
	RichMedia       *RichMedia       `json:"rich_media,omitempty"`
	FallbackOptions []FallbackOption `json:"fallback_options,omitempty"`
	Metadata        ResponseMetadata `json:"metadata"`
	Language        string           `json:"language,omitempty"`
}

// HasFallback reports whether a fallback of the given type is attached.
func (r QualityResponse) HasFallback(kind FallbackType) bool {
	for _, f := range r.FallbackOptions {
		if f.Type == kind {
			return true
		}
	}
	return false
}

// TurnResult is everything a channel adapter receives back from one turn.
type TurnResult struct {
	Response          QualityResponse     `json:"response"`
	QualityMetrics    ConversationMetrics `json:"quality_metrics"`
	SuggestedActions  []string            `json:"suggested_actions"`
	ConversationState ConversationState   `json:"conversation_state"`
	MessageAnalysis   MessageAnalysis     `json:"message_analysis"`
}
