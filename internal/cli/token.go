package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ecoStepAPI/internal/config"
	"ecoStepAPI/middleware"
	"ecoStepAPI/services"
)

// NewTokenCmd issues a bearer token for local auth mode.
func NewTokenCmd() *cobra.Command {
	var (
		email string
		name  string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue a local-mode bearer token",
		Example: `  # Token for a development user, valid for a day
  ecoctl token dev-user --email dev@example.com --ttl 24h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.Mode != config.AuthLocal {
				return errors.New("tokens can only be issued in local auth mode")
			}

			token, err := middleware.IssueLocalToken([]byte(cfg.Auth.JWTSecret), cfg.Auth.JWTIssuer,
				services.Identity{Subject: args[0], Email: email, Name: name}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().StringVar(&name, "name", "", "Display name claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")

	return cmd
}
