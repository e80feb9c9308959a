package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ecn-prep-service/internal/bank"
	"ecn-prep-service/internal/config"
	"ecn-prep-service/internal/infra/postgres"
)

// NewBankCmd groups question bank maintenance commands.
func NewBankCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bank",
		Short: "Inspect or import the question bank",
	}
	cmd.AddCommand(newBankCheckCmd(configPath), newBankImportCmd(configPath))
	return cmd
}

func newBankCheckCmd(configPath *string) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the data directory and print its counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := loadBankDir(*configPath, dir)
			if err != nil {
				return err
			}
			if err := data.Validate(); err != nil {
				return err
			}
			st := bank.NewIndex(data).Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "%d specialties, %d questions, %d clinical cases\n",
				st.Specialties, st.Questions, st.ClinicalCases)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "data directory (defaults to bank.dir)")
	return cmd
}

func newBankImportCmd(configPath *string) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Copy the data directory into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			data, err := loadBankDir(*configPath, dir)
			if err != nil {
				return err
			}
			if err := data.Validate(); err != nil {
				return err
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg); err != nil {
				return err
			}
			d, err := buildDeps(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := postgres.NewBankLoader(d.pool).ImportBank(cmd.Context(), data); err != nil {
				return err
			}
			if inv, ok := d.banks.(interface{ Invalidate(ctx context.Context) error }); ok {
				if err := inv.Invalidate(cmd.Context()); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d specialties\n", len(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "data directory (defaults to bank.dir)")
	return cmd
}

func loadBankDir(configPath, dir string) (bank.Data, error) {
	if dir == "" {
		cfg, err := config.LoadOrDefault(configPath)
		if err != nil {
			return nil, err
		}
		dir = cfg.Bank.Dir
	}
	return bank.LoadDir(dir)
}
