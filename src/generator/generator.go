// Package generator produces assistant replies as a pull sequence of
// characters.
package generator

import (
	"context"
	"fmt"
	"iter"

	"github.com/rs/zerolog"

	"github.com/orchestra-mcp/relay/config"
)

// Generator yields a finite, non-restartable sequence of characters for a
// prompt. A non-nil error ends the sequence.
type Generator interface {
	Generate(ctx context.Context, prompt string) iter.Seq2[string, error]
}

// New builds the generator named by cfg.Provider.
func New(cfg config.AIConfig, logger zerolog.Logger) (Generator, error) {
	switch cfg.Provider {
	case "", "mock":
		if cfg.CharDelay > 0 {
			return NewMock(cfg.CharDelay, 0), nil
		}
		return DefaultMock(), nil
	case "openai":
		return NewLLM(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}
