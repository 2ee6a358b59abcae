// Package analyzer talks to the text-generation model.
package analyzer

import "context"

// Model turns one prompt into one raw reply. Implementations return
// *utils.AppError values of kind UpstreamServiceError on failure.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, prompt string) (string, error)

func (f ModelFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
