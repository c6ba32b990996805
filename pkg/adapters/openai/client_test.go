package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/chatflow/pkg/ports"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   *openai.ChatCompletion
	err    error
	params []openai.ChatCompletionNewParams
}

func (m *mockChatService) New(_ context.Context, params openai.ChatCompletionNewParams, _ ...option.RequestOption) (*openai.ChatCompletion, error) {
	m.params = append(m.params, params)
	return m.resp, m.err
}

func reply(content string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	c, err := New(Config{APIKey: "test-key", BaseURL: "http://localhost:1234/v1"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, c.Model())
}

func TestComplete(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantText   string
		confidence *float64
	}{
		{"JSON", `{"content": "buyer intent", "confidence": 0.82}`, "buyer intent", ptr(0.82)},
		{"Bare number", "0.75", "0.75", ptr(0.75)},
		{"Number in prose", "Confidence: .6", "Confidence: .6", ptr(0.6)},
		{"No number", "I cannot tell.", "I cannot tell.", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &mockChatService{resp: reply(tt.content)}
			c := newClient(chat, "test-model")

			resp, err := c.Complete(context.Background(), ports.CompletionRequest{
				Prompt:  "rate this",
				Context: map[string]any{"state": "greeting"},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, resp.Content)
			if tt.confidence == nil {
				assert.Nil(t, resp.Confidence)
			} else {
				require.NotNil(t, resp.Confidence)
				assert.InDelta(t, *tt.confidence, *resp.Confidence, 0.0001)
			}

			require.Len(t, chat.params, 1)
			assert.Equal(t, "test-model", chat.params[0].Model)
			assert.Len(t, chat.params[0].Messages, 2)
		})
	}
}

func TestComplete_Errors(t *testing.T) {
	c := newClient(&mockChatService{err: errors.New("service failure")}, "")
	_, err := c.Complete(context.Background(), ports.CompletionRequest{Prompt: "x"})
	assert.ErrorContains(t, err, "service failure")

	c = newClient(&mockChatService{resp: &openai.ChatCompletion{}}, "")
	_, err = c.Complete(context.Background(), ports.CompletionRequest{Prompt: "x"})
	assert.ErrorIs(t, err, ErrNoChoicesReturned)
}

func TestTranslate(t *testing.T) {
	chat := &mockChatService{resp: reply("  Bonjour !  ")}
	c := newClient(chat, "")

	resp, err := c.Translate(context.Background(), ports.TranslationRequest{Text: "Hello!", TargetLanguage: "fr"})
	require.NoError(t, err)
	assert.Equal(t, "Bonjour !", resp.TranslatedText)
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "French (fr)", languageName("fr"))
	assert.Equal(t, "not a tag!", languageName("not a tag!"))
}

func ptr(v float64) *float64 { return &v }
