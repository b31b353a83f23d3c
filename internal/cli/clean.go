// clean.go implements the "mabel clean" command for pruning old jobs and
// orphaned audio files.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mabel-stories/mabel/internal/cleanup"
	"github.com/mabel-stories/mabel/internal/storage"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old jobs and orphaned uploads",
	Long: `Remove finished jobs older than cleanup.max_age_days (default 30) and
audio files that no upload record refers to.
Use --dry-run to preview what would be removed.`,
	RunE: runClean,
}

var (
	maxAgeFlag int
	dryRunFlag bool
)

func init() {
	cleanCmd.Flags().IntVar(&maxAgeFlag, "max-age", 0, "Remove jobs finished more than N days ago (0 = use config)")
	cleanCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Preview what would be removed without deleting")
}

func runClean(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	maxAge := a.cfg.Cleanup.MaxAgeDays
	if maxAgeFlag > 0 {
		maxAge = maxAgeFlag
	}
	jobIDs, err := cleanup.PruneJobs(ctx, a.store, maxAge, dryRunFlag)
	if err != nil {
		return fmt.Errorf("pruning jobs: %w", err)
	}

	fs, err := storage.NewFS(a.cfg.Storage.Root, a.cfg.Server.MaxUploadBytes)
	if err != nil {
		return err
	}
	keys, err := cleanup.PruneOrphanUploads(ctx, a.store, fs, dryRunFlag)
	if err != nil {
		return fmt.Errorf("pruning uploads: %w", err)
	}

	if len(jobIDs) == 0 && len(keys) == 0 {
		fmt.Println("Nothing to clean up.")
		return nil
	}

	verb := "Removed"
	if dryRunFlag {
		verb = "Would remove"
	}
	for _, key := range keys {
		fmt.Printf("  %s %s\n", verb, key)
	}
	fmt.Printf("%s %d job(s) and %d upload(s).\n", verb, len(jobIDs), len(keys))
	return nil
}
