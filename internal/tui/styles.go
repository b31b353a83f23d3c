package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/mabel-stories/mabel/internal/progress"
)

const (
	primaryColor   = "#B45309" // Amber brown
	secondaryColor = "#10B981" // Green
	warningColor   = "#F59E0B" // Amber
	errorColor     = "#EF4444" // Red
	dimColor       = "#6B7280" // Gray
)

var (
	// BoxStyle frames the current question.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(primaryColor)).
			Padding(1, 2)

	TitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor)).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(dimColor))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(secondaryColor))

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(errorColor))

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(warningColor))
)

// Module status icons (pre-rendered strings).
var (
	ModuleApproved   = SuccessStyle.Render("✓")
	ModuleChapter    = WarningStyle.Render("◆")
	ModuleInProgress = WarningStyle.Render("▸")
	ModuleDraft      = DimStyle.Render("○")
)

// StatusIcon returns the icon for a module status.
func StatusIcon(s progress.ModuleStatus) string {
	switch s {
	case progress.ModuleApproved:
		return ModuleApproved
	case progress.ModuleChapterGenerated:
		return ModuleChapter
	case progress.ModuleInProgress, progress.ModuleQuestionsGenerated:
		return ModuleInProgress
	default:
		return ModuleDraft
	}
}
