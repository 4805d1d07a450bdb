package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// Fallback wraps a Client with the model retry discipline shared by every
// workflow:
//
//  1. an empty completion earns one same-model retry
//  2. a NOT_FOUND on a "-latest" alias retries with the suffix stripped
//  3. an empty completion that survives the retry upgrades a lower-tier
//     model to the configured fallback model
//  4. anything else propagates to the caller
//
// Once a model is resolved it sticks for the rest of the run, so every
// later stage of the same workflow uses the same model. Fallback is
// request-scoped and not safe for concurrent use; create one per run.
type Fallback struct {
	client        Client
	model         string
	fallbackModel string
	logger        *slog.Logger
}

func NewFallback(client Client, model, fallbackModel string, logger *slog.Logger) *Fallback {
	if model == "" {
		model = client.Model()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{
		client:        client,
		model:         model,
		fallbackModel: fallbackModel,
		logger:        logger,
	}
}

// Model returns the model identifier currently in effect, after any
// fallback resolution.
func (f *Fallback) Model() string {
	return f.model
}

func (f *Fallback) Generate(ctx context.Context, req Request) (string, error) {
	var out string
	err := f.attempt(ctx, func(model string) error {
		req.Model = model
		var callErr error
		out, callErr = f.client.Generate(ctx, req)
		return callErr
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func (f *Fallback) ChatSchema(ctx context.Context, req SchemaRequest, result any) (*Response, error) {
	var resp *Response
	err := f.attempt(ctx, func(model string) error {
		req.Model = model
		var callErr error
		resp, callErr = f.client.ChatSchema(ctx, req, result)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (f *Fallback) attempt(ctx context.Context, call func(model string) error) error {
	retried := false
	upgraded := false
	stripped := false

	for {
		err := call(f.model)
		if err == nil {
			return nil
		}

		switch {
		case errors.Is(err, ErrEmptyCompletion) && !retried:
			retried = true
			f.logger.WarnContext(ctx, "empty completion, retrying once",
				"model", f.model)

		case errors.Is(err, ErrEmptyCompletion) && !upgraded &&
			f.fallbackModel != "" && f.model != f.fallbackModel:
			upgraded = true
			f.logger.WarnContext(ctx, "empty completion persisted, upgrading model",
				"model", f.model,
				"fallback_model", f.fallbackModel)
			f.model = f.fallbackModel

		case IsModelNotFound(err) && strings.Contains(f.model, "-latest") && !stripped:
			stripped = true
			trimmed := strings.ReplaceAll(f.model, "-latest", "")
			f.logger.WarnContext(ctx, "model alias not found, retrying with trimmed model",
				"model", f.model,
				"fallback_model", trimmed)
			f.model = trimmed

		case !errors.Is(err, ErrEmptyCompletion) && !retried && IsRetryable(ctx, err):
			retried = true

		default:
			return err
		}
	}
}
