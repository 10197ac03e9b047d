package generator

import (
	"context"
	"errors"
	"iter"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/orchestra-mcp/relay/config"
)

// LLM streams replies from an OpenAI compatible chat model and re-emits
// them one character at a time.
type LLM struct {
	model  llms.Model
	logger zerolog.Logger
}

// NewLLM connects to the provider described by cfg.
func NewLLM(cfg config.AIConfig, logger zerolog.Logger) (*LLM, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ai api key is required")
	}
	opts := []openai.Option{openai.WithToken(cfg.APIKey)}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return NewLLMFromModel(model, logger), nil
}

// NewLLMFromModel wraps an existing langchaingo model.
func NewLLMFromModel(model llms.Model, logger zerolog.Logger) *LLM {
	return &LLM{
		model:  model,
		logger: logger.With().Str("component", "generator").Logger(),
	}
}

type piece struct {
	text string
	err  error
}

func (l *LLM) Generate(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		pieces := make(chan piece)
		go func() {
			defer close(pieces)
			_, err := llms.GenerateFromSinglePrompt(ctx, l.model, prompt,
				llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
					select {
					case pieces <- piece{text: string(chunk)}:
						return nil
					case <-ctx.Done():
						return ctx.Err()
					}
				}),
			)
			if err != nil && ctx.Err() == nil {
				l.logger.Error().Err(err).Msg("llm generation failed")
				select {
				case pieces <- piece{err: err}:
				case <-ctx.Done():
				}
			}
		}()

		for p := range pieces {
			if p.err != nil {
				yield("", p.err)
				return
			}
			for _, r := range p.text {
				if !yield(string(r), nil) {
					return
				}
			}
		}
		if err := ctx.Err(); err != nil {
			yield("", err)
		}
	}
}
