package cli

import (
	"github.com/spf13/cobra"

	"ecoStepAPI/services"
)

// NewExpirePremiumCmd runs the premium sweep once, outside the server's
// schedule.
func NewExpirePremiumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire-premium",
		Short: "Clear premium for users whose subscription has ended",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := services.NewSubscriptionService(st, cfg.Billing.PremiumDays).ExpireLapsed(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("Expired premium for %d user(s)\n", n)
			return nil
		},
	}
}
