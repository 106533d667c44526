package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAICompat talks to any OpenAI-compatible chat-completion API (OpenRouter by default).
type OpenAICompat struct {
	client *openai.Client
	model  string
}

type OpenAICompatOptions struct {
	APIKey   string
	BaseURL  string
	Model    string
	AppURL   string // sent as HTTP-Referer
	AppTitle string // sent as X-Title
	Timeout  time.Duration
}

func NewOpenAICompat(opts OpenAICompatOptions) *OpenAICompat {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	cfg.HTTPClient = &http.Client{
		Timeout: timeout,
		Transport: &headerTransport{
			base: http.DefaultTransport,
			headers: map[string]string{
				"HTTP-Referer": opts.AppURL,
				"X-Title":      opts.AppTitle,
			},
		},
	}
	return &OpenAICompat{client: openai.NewClientWithConfig(cfg), model: opts.Model}
}

func (o *OpenAICompat) Close() error { return nil }

func (o *OpenAICompat) Complete(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	for k, v := range t.headers {
		if v != "" {
			r.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(r)
}
