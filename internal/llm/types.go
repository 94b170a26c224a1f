package llm

import "context"

// Request is a single chat completion.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float32
}

// Completer sends one prompt to a language model and returns the raw text.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
