// export.go implements the "mabel export" command.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mabel-stories/mabel/internal/export"
	"github.com/mabel-stories/mabel/internal/log"
)

var exportCmd = &cobra.Command{
	Use:   "export <project-id>",
	Short: "Render approved chapters as a book",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var (
	exportFormat string
	exportOut    string
)

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "txt", "Output format: txt, md or docx")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default: derived from the project title)")
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	book, err := export.LoadBook(ctx, a.store, args[0])
	if err != nil {
		return err
	}
	artifact, err := export.RenderBook(format, book)
	if err != nil {
		return err
	}

	out := exportOut
	if out == "" {
		out = artifact.Filename
	}
	if err := os.WriteFile(out, artifact.Data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	if err := a.store.MarkBookExported(ctx, args[0]); err != nil {
		return err
	}
	a.logger.Emit(log.LogEvent{
		Event:     log.EventBookExported,
		ProjectID: args[0],
		Total:     len(book.Chapters),
		Data:      map[string]interface{}{"format": string(format), "path": out},
	})

	fmt.Printf("Wrote %d chapter(s) to %s\n", len(book.Chapters), out)
	return nil
}
