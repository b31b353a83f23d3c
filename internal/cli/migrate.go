// migrate.go implements the "mabel migrate" command.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		// openApp already migrated; run again so the command is explicit.
		if err := a.store.Migrate(); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
		fmt.Printf("Database migrated: %s\n", a.cfg.Database.Path)
		return nil
	},
}
