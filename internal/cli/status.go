// status.go implements the "mabel status" command showing project progress.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mabel-stories/mabel/internal/progress"
	"github.com/mabel-stories/mabel/internal/store"
	"github.com/mabel-stories/mabel/internal/tui"
)

var statusCmd = &cobra.Command{
	Use:   "status [project-id]",
	Short: "Show project and module progress",
	Long: `Without arguments, list the projects of the user given by --email.
With a project ID, show every module and how many questions are answered.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var statusEmail string

func init() {
	statusCmd.Flags().StringVar(&statusEmail, "email", "", "List projects for this user")
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 1 {
		return printProject(cmd.Context(), os.Stdout, a.store, args[0])
	}
	if statusEmail == "" {
		return fmt.Errorf("pass a project ID or --email to list projects")
	}
	user, err := a.store.UserByEmail(cmd.Context(), statusEmail)
	if err != nil {
		return err
	}
	projects, err := a.store.ListProjects(cmd.Context(), user.ID)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Println("No projects yet.")
		return nil
	}
	for _, p := range projects {
		fmt.Printf("  %s  %-20s  %d/%d modules  %s\n",
			p.ID, p.Status, p.TotalModulesCompleted, progress.MaxModulesPerProject, p.Title)
	}
	return nil
}

// printProject writes a project's module table to w.
func printProject(ctx context.Context, w io.Writer, st *store.Store, projectID string) error {
	project, err := st.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	interviewee, err := st.GetInterviewee(ctx, projectID)
	if err != nil {
		return err
	}
	modules, err := st.ListModules(ctx, projectID)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s\n", project.Title)
	if interviewee != nil {
		fmt.Fprintf(w, "Interviewee: %s", interviewee.Name)
		if interviewee.Relationship != "" {
			fmt.Fprintf(w, " (%s)", interviewee.Relationship)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Status: %s  Book: %s\n\n", project.Status, project.BookStatus)

	for _, m := range modules {
		r, err := st.Readiness(ctx, m.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %s %d. %-28s %-20s %d/%d answered\n",
			tui.StatusIcon(m.Status), m.ModuleNumber, m.Title, m.Status, r.Answered, r.Total)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Progress: %d/%d modules approved\n", project.TotalModulesCompleted, progress.MaxModulesPerProject)
	if project.TotalModulesCompleted >= progress.BookSuggestionThreshold {
		fmt.Fprintln(w, "Enough chapters are approved to compile the book.")
	}
	return nil
}
