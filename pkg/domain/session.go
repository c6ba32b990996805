package domain

// Session is the unit the session store persists for one user: the context and
// its parallel, append-only list of per-turn metrics.
type Session struct {
	Context *UserContext          `json:"context"`
	Metrics []ConversationMetrics `json:"metrics"`
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	return &Session{
		Context: s.Context.Clone(),
		Metrics: append([]ConversationMetrics{}, s.Metrics...),
	}
}

// Record commits a finished turn: the context advances to next and the metrics
// are appended, keeping both lists the same length.
func (s *Session) Record(next ConversationState, turn Turn, metrics ConversationMetrics) {
	s.Context.Advance(next, turn)
	s.Metrics = append(s.Metrics, metrics)
}
