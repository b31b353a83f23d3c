package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	progressbar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mabel-stories/mabel/internal/progress"
	"github.com/mabel-stories/mabel/internal/store"
)

// maxInterviewWidth is the maximum width for the interview box.
const maxInterviewWidth = 90

// Backend is what the interview needs from storage. *store.Store satisfies it.
type Backend interface {
	Questions(ctx context.Context, moduleID string) ([]store.ModuleQuestion, error)
	Readiness(ctx context.Context, moduleID string) (progress.Readiness, error)
	RecordAnswer(ctx context.Context, questionID, text string) (*store.AnswerResult, error)
}

// InterviewModel walks the user through one module's questions.
type InterviewModel struct {
	ctx         context.Context
	backend     Backend
	module      store.Module
	interviewee string

	questions []store.ModuleQuestion
	current   int
	readiness progress.Readiness
	loaded    bool

	input  textarea.Model
	bar    progressbar.Model
	keys   KeyMap
	status string
	err    error
	saving bool
	done   bool

	width  int
	height int
}

// answerCharLimit caps one answer in both interview modes.
const answerCharLimit = 10000

// NewInterviewModel creates an interview for module.
func NewInterviewModel(ctx context.Context, backend Backend, module store.Module, interviewee string) InterviewModel {
	ta := textarea.New()
	ta.Placeholder = "Type the answer here..."
	ta.CharLimit = answerCharLimit
	ta.ShowLineNumbers = false
	ta.SetWidth(maxInterviewWidth - 6)
	ta.SetHeight(6)
	ta.Focus()

	return InterviewModel{
		ctx:         ctx,
		backend:     backend,
		module:      module,
		interviewee: interviewee,
		input:       ta,
		bar:         progressbar.New(progressbar.WithDefaultGradient(), progressbar.WithWidth(40)),
		keys:        DefaultKeyMap,
		width:       80,
		height:      24,
	}
}

// Init loads the module's questions.
func (m InterviewModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.loadQuestions())
}

func (m InterviewModel) loadQuestions() tea.Cmd {
	return func() tea.Msg {
		questions, err := m.backend.Questions(m.ctx, m.module.ID)
		if err != nil {
			return ErrMsg{Err: err}
		}
		readiness, err := m.backend.Readiness(m.ctx, m.module.ID)
		if err != nil {
			return ErrMsg{Err: err}
		}
		return QuestionsLoadedMsg{Questions: questions, Readiness: readiness}
	}
}

func (m InterviewModel) saveAnswer(questionID, text string) tea.Cmd {
	return func() tea.Msg {
		result, err := m.backend.RecordAnswer(m.ctx, questionID, text)
		if err != nil {
			return ErrMsg{Err: err}
		}
		return AnswerSavedMsg{Result: result}
	}
}

// Update handles messages for the interview.
func (m InterviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.SetWidth(min(msg.Width, maxInterviewWidth) - 6)
		return m, nil

	case QuestionsLoadedMsg:
		m.loaded = true
		m.questions = msg.Questions
		m.readiness = msg.Readiness
		if len(m.questions) == 0 {
			m.status = "No questions yet. Generate questions for this module first."
			return m, nil
		}
		m.current = firstUnanswered(m.questions)
		m.showCurrent()
		return m, nil

	case AnswerSavedMsg:
		m.saving = false
		m.err = nil
		q := msg.Result.Question
		for i := range m.questions {
			if m.questions[i].ID == q.ID {
				m.questions[i] = *q
			}
		}
		m.readiness = msg.Result.Readiness
		m.module = *msg.Result.Module
		m.status = "Saved."
		if msg.Result.Readiness.Ready {
			m.status = "Saved. Enough answers to write this chapter."
		}
		if m.current >= len(m.questions)-1 {
			m.done = true
			m.status = fmt.Sprintf("All %d questions visited. %d answered.", len(m.questions), m.readiness.Answered)
			return m, nil
		}
		m.current++
		m.showCurrent()
		return m, nil

	case ErrMsg:
		m.saving = false
		m.err = msg.Err
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Save):
			if m.saving || len(m.questions) == 0 {
				return m, nil
			}
			m.saving = true
			m.status = "Saving..."
			return m, m.saveAnswer(m.questions[m.current].ID, m.input.Value())
		case key.Matches(msg, m.keys.Next):
			if m.current < len(m.questions)-1 {
				m.current++
				m.showCurrent()
			}
			return m, nil
		case key.Matches(msg, m.keys.Prev):
			if m.current > 0 {
				m.current--
				m.showCurrent()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// showCurrent loads the current question's saved response into the editor.
func (m *InterviewModel) showCurrent() {
	m.input.Reset()
	if r := m.questions[m.current].Response; r != nil {
		m.input.SetValue(*r)
	}
}

func firstUnanswered(questions []store.ModuleQuestion) int {
	for i, q := range questions {
		if q.Response == nil || strings.TrimSpace(*q.Response) == "" {
			return i
		}
	}
	return 0
}

// View renders the interview.
func (m InterviewModel) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Module %d: %s", m.module.ModuleNumber, m.module.Title)))
	b.WriteString("  ")
	b.WriteString(StatusIcon(m.module.Status))
	b.WriteString(DimStyle.Render(" " + string(m.module.Status)))
	b.WriteString("\n")
	if m.interviewee != "" {
		b.WriteString(DimStyle.Render("Interviewing " + m.interviewee))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if !m.loaded {
		b.WriteString(DimStyle.Render("Loading questions..."))
		b.WriteString("\n")
	} else if len(m.questions) > 0 {
		q := m.questions[m.current]
		boxWidth := min(m.width, maxInterviewWidth) - 4
		header := DimStyle.Render(fmt.Sprintf("Question %d of %d", m.current+1, len(m.questions)))
		body := lipgloss.NewStyle().Width(boxWidth - 6).Render(q.Question)
		b.WriteString(BoxStyle.Width(boxWidth).Render(header + "\n\n" + body))
		b.WriteString("\n\n")
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(m.bar.ViewAs(m.readiness.Ratio))
		b.WriteString(DimStyle.Render(fmt.Sprintf("  %d/%d answered", m.readiness.Answered, m.readiness.Total)))
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString("\n")
		if m.done {
			b.WriteString(SuccessStyle.Render(m.status))
		} else {
			b.WriteString(m.status)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(DimStyle.Render(m.keys.ShortHelp()))
	return b.String()
}
