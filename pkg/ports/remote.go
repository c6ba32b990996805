package ports

import "context"

// CompletionRequest is a chat prompt sent to the completion service.
type CompletionRequest struct {
	Prompt  string         `json:"prompt"`
	Context map[string]any `json:"context,omitempty"`
}

// CompletionResponse is the answer of the completion service.
// Confidence is nil when the service did not estimate one.
type CompletionResponse struct {
	Content    string   `json:"content"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// CompletionService answers chat prompts and estimates intent confidence.
// Implementations give no latency guarantee: callers impose their own timeout.
type CompletionService interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// TranslationRequest asks for text to be rendered in another language.
type TranslationRequest struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language"`
}

// TranslationResponse carries the translated text.
type TranslationResponse struct {
	TranslatedText string `json:"translated_text"`
}

// Translator localizes text. On failure callers keep the original text.
type Translator interface {
	Translate(ctx context.Context, req TranslationRequest) (TranslationResponse, error)
}

// ModelNamer is implemented by remote services that can report the model they use.
type ModelNamer interface {
	Model() string
}

// Classifier is the local fallback intent classifier.
// It must be deterministic and must not block.
type Classifier interface {
	// Classify returns the intent key of text and a confidence in [0,1].
	Classify(text string) (intent string, confidence float64)
}
