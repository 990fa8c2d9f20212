package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// Opening the store applies any pending migrations.
		store, err := initStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "Database schema is up to date (%s)\n", store.Dialect())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
