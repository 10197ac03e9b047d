package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/orchestra-mcp/relay/config"
	"github.com/orchestra-mcp/relay/providers"
	"github.com/orchestra-mcp/relay/src/auth"
	"github.com/orchestra-mcp/relay/src/generator"
	"github.com/orchestra-mcp/relay/src/hub"
	"github.com/orchestra-mcp/relay/src/relay"
	"github.com/orchestra-mcp/relay/src/service"
	"github.com/orchestra-mcp/relay/src/store"
	"github.com/orchestra-mcp/relay/src/store/db"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}

			svc, closeStore, err := openService(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			logger.Info().
				Str("store", cfg.Store.Driver).
				Str("ai", cfg.AI.Provider).
				Int("max_connections", cfg.MaxConnections).
				Msg("starting relay")
			return providers.NewServer(cfg, svc, logger).Start(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides RELAY_ADDR)")
	return cmd
}

// openService wires the store, tokens and generator into a service. The
// returned func closes the store.
func openService(ctx context.Context, cfg *config.RelayConfig, logger zerolog.Logger) (*service.Service, func(), error) {
	driver, err := db.NewDriver(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	st := store.New(driver)
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("migrate store: %w", err)
	}

	tokens, err := auth.NewTokens(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	gen, err := generator.New(cfg.AI, logger)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	svc := service.New(hub.New(logger), st, tokens, gen, logger,
		relay.WithMaxPending(cfg.MaxQueuedTurns))
	return svc, func() {
		if err := st.Close(); err != nil {
			logger.Warn().Err(err).Msg("close store")
		}
	}, nil
}
