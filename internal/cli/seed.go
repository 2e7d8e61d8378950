package cli

import (
	"time"

	"github.com/spf13/cobra"

	"ecoStepAPI/internal/seeds"
)

// NewSeedCmd creates the seed command. Challenges and products already
// stored under the same title or name are left alone.
func NewSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the default challenge and marketplace catalogs",
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

			n, err := seeds.Apply(cmd.Context(), st, time.Now())
			if err != nil {
				return err
			}
			cmd.Printf("Seeded %d of %d challenge(s)\n", n, len(seeds.Catalog()))

			n, err = seeds.ApplyProducts(cmd.Context(), st, time.Now())
			if err != nil {
				return err
			}
			cmd.Printf("Seeded %d of %d product(s)\n", n, len(seeds.Products()))
			return nil
		},
	}
}
