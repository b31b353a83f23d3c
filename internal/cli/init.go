// init.go implements the "mabel init" command.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mabel-stories/mabel/internal/config"
	"github.com/mabel-stories/mabel/internal/store"
	"github.com/mabel-stories/mabel/internal/tui"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize mabel in the current directory",
	Long: `Create .mabel/config.yaml and the SQLite database. With --email, also
register a user and print its API token.`,
	RunE: runInit,
}

var (
	initEmail string
	initName  string
	initForce bool
)

func init() {
	initCmd.Flags().StringVar(&initEmail, "email", "", "Register a user with this email")
	initCmd.Flags().StringVar(&initName, "name", "", "Display name for the registered user")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config without asking")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := resolveDir()
	if err != nil {
		return err
	}

	cfgPath := filepath.Join(dir, ".mabel", "config.yaml")
	write := true
	if _, statErr := os.Stat(cfgPath); statErr == nil && !initForce {
		write = false
		if tui.IsTTY() {
			fmt.Println("Warning: .mabel/config.yaml already exists.")
			fmt.Print("Overwrite with defaults? [y/N]: ")
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			answer = strings.TrimSpace(strings.ToLower(answer))
			write = answer == "y" || answer == "yes"
		}
	}
	if write {
		if err := config.WriteConfig(dir, config.DefaultConfig()); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		fmt.Println("Configuration written to .mabel/config.yaml")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	fmt.Printf("Database ready at %s\n", a.cfg.Database.Path)

	if initEmail != "" {
		user, err := a.store.CreateUser(cmd.Context(), initEmail, initName)
		if errors.Is(err, store.ErrDuplicate) {
			user, err = a.store.UserByEmail(cmd.Context(), initEmail)
			if err == nil {
				fmt.Println("User already registered.")
			}
		}
		if err != nil {
			return fmt.Errorf("registering user: %w", err)
		}
		fmt.Println()
		fmt.Printf("  User:      %s\n", user.Email)
		fmt.Printf("  API token: %s\n", user.APIToken)
	}

	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  1. export %s=<your key>\n", a.cfg.AI.APIKeyEnv)
	fmt.Println("  2. Run: mabel serve")
	return nil
}
