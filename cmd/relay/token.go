package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return errors.New("--user is required")
			}
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			svc, closeStore, err := openService(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()
			defer svc.Close()

			sess, err := svc.IssueToken(cmd.Context(), email)
			if err != nil {
				return fmt.Errorf("issue token for %s: %w", email, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), sess.Value)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "user", "", "email of the user to sign in as")
	return cmd
}
