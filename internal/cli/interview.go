// interview.go implements the "mabel interview" command.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mabel-stories/mabel/internal/progress"
	"github.com/mabel-stories/mabel/internal/store"
	"github.com/mabel-stories/mabel/internal/tui"
)

var interviewCmd = &cobra.Command{
	Use:   "interview <project-id>",
	Short: "Answer a module's questions in the terminal",
	Long: `Walk through the questions of one module and record answers.
Runs a full-screen interface on a terminal and reads one answer per line
from stdin otherwise.`,
	Args: cobra.ExactArgs(1),
	RunE: runInterview,
}

var interviewModule int

func init() {
	interviewCmd.Flags().IntVar(&interviewModule, "module", 0, "Module number (default: the project's current module)")
}

func runInterview(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	project, err := a.store.GetProject(ctx, args[0])
	if err != nil {
		return err
	}
	module, err := pickModule(ctx, a.store, project, interviewModule)
	if err != nil {
		return err
	}
	if module.Status == progress.ModuleApproved {
		return fmt.Errorf("module %d: %w", module.ModuleNumber, progress.ErrModuleLocked)
	}

	name := ""
	if iv, err := a.store.GetInterviewee(ctx, project.ID); err != nil {
		return err
	} else if iv != nil {
		name = iv.Name
	}

	if !tui.IsTTY() {
		return tui.RunPlain(ctx, a.store, *module, os.Stdin, os.Stdout)
	}
	return tui.Run(tui.NewInterviewModel(ctx, a.store, *module, name))
}

// pickModule returns module n, or the project's current module when n is 0.
// A pointer past the last module falls back to the highest-numbered one.
func pickModule(ctx context.Context, st *store.Store, project *store.Project, n int) (*store.Module, error) {
	if n > 0 {
		return st.ModuleByNumber(ctx, project.ID, n)
	}
	m, err := st.ModuleByNumber(ctx, project.ID, project.CurrentModuleNumber)
	if err == nil {
		return m, nil
	}
	modules, listErr := st.ListModules(ctx, project.ID)
	if listErr != nil || len(modules) == 0 {
		return nil, err
	}
	return &modules[len(modules)-1], nil
}
