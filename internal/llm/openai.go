package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAICompleter talks to the OpenAI chat completions API or an Azure
// OpenAI deployment.
type OpenAICompleter struct {
	client   *openai.Client
	model    string
	provider string
}

// NewOpenAICompleter targets api.openai.com, or baseURL when set.
func NewOpenAICompleter(apiKey, model, baseURL string) *OpenAICompleter {
	cfg := openai.DefaultConfig(apiKey)
	if u := strings.TrimSpace(baseURL); u != "" {
		cfg.BaseURL = strings.TrimRight(u, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: 90 * time.Second}
	return &OpenAICompleter{
		client:   openai.NewClientWithConfig(cfg),
		model:    model,
		provider: "openai",
	}
}

// NewAzureCompleter targets an Azure OpenAI resource. Every request is
// routed to deployment regardless of the model name.
func NewAzureCompleter(apiKey, endpoint, deployment, apiVersion string) *OpenAICompleter {
	cfg := openai.DefaultAzureConfig(apiKey, strings.TrimRight(endpoint, "/"))
	if apiVersion != "" {
		cfg.APIVersion = apiVersion
	}
	cfg.AzureModelMapperFunc = func(string) string { return deployment }
	cfg.HTTPClient = &http.Client{Timeout: 90 * time.Second}
	return &OpenAICompleter{
		client:   openai.NewClientWithConfig(cfg),
		model:    deployment,
		provider: "azure",
	}
}

func (c *OpenAICompleter) Complete(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(c.model) == "" {
		return "", fmt.Errorf("%s model is required", c.provider)
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", c.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := cleanOutput(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

func (c *OpenAICompleter) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{Provider: c.provider, Status: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := ""
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &UpstreamError{Provider: c.provider, Status: reqErr.HTTPStatusCode, Message: msg, Err: err}
	}
	return fmt.Errorf("%s completion: %w", c.provider, err)
}
