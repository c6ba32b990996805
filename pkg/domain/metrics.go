package domain

// ConversationMetrics are the quality scores derived for a single turn.
type ConversationMetrics struct {
	ResponseTime          float64 `json:"response_time"` // seconds
	MessageLength         int     `json:"message_length"`
	UserSentiment         float64 `json:"user_sentiment"`
	EngagementLevel       float64 `json:"engagement_level"`
	CompletionRate        float64 `json:"completion_rate"`
	ClarificationRequests int     `json:"clarification_requests"`
	ConfidenceScore       float64 `json:"confidence_score"`
	PersonalizationScore  float64 `json:"personalization_score"`
}

// QualityScore is the per-turn quality: the mean of confidence, personalization and engagement.
func (m ConversationMetrics) QualityScore() float64 {
	return (m.ConfidenceScore + m.PersonalizationScore + m.EngagementLevel) / 3
}
