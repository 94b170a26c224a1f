package llm

import (
	"context"
	"fmt"
	"strings"
)

type CompleterOptions struct {
	Provider   string
	APIKey     string
	Model      string
	BaseURL    string
	APIVersion string
}

// NewCompleter builds the completer for opts.Provider: azure, openai or gemini.
// For azure, BaseURL is the resource endpoint and Model the deployment name.
func NewCompleter(ctx context.Context, opts CompleterOptions) (Completer, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = "azure"
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("%s api key is required", provider)
	}

	switch provider {
	case "azure":
		if strings.TrimSpace(opts.BaseURL) == "" {
			return nil, fmt.Errorf("azure endpoint is required")
		}
		return NewAzureCompleter(opts.APIKey, opts.BaseURL, opts.Model, opts.APIVersion), nil
	case "openai":
		return NewOpenAICompleter(opts.APIKey, opts.Model, opts.BaseURL), nil
	case "gemini":
		return NewGeminiCompleter(ctx, opts.APIKey, opts.Model)
	default:
		return nil, fmt.Errorf("unsupported completion provider: %s", opts.Provider)
	}
}
