package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mabel-stories/mabel/internal/store"
)

// maxLineBytes bounds one input line. Longer pasted answers are cut to
// answerCharLimit runes after reading.
const maxLineBytes = 1 << 20

// RunPlain runs the interview without a terminal UI: each unanswered question
// is printed to out and one line is read from in as its answer. An empty line
// skips the question. Answers longer than the interview's character limit
// are truncated.
func RunPlain(ctx context.Context, backend Backend, module store.Module, in io.Reader, out io.Writer) error {
	questions, err := backend.Questions(ctx, module.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Module %d: %s\n", module.ModuleNumber, module.Title)
	if len(questions) == 0 {
		fmt.Fprintln(out, "No questions yet. Generate questions for this module first.")
		return nil
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for i, q := range questions {
		if q.Response != nil && strings.TrimSpace(*q.Response) != "" {
			continue
		}
		fmt.Fprintf(out, "\n[%d/%d] %s\n> ", i+1, len(questions), q.Question)
		if !scanner.Scan() {
			break
		}
		answer := strings.TrimSpace(scanner.Text())
		if answer == "" {
			continue
		}
		if r := []rune(answer); len(r) > answerCharLimit {
			answer = string(r[:answerCharLimit])
		}
		result, err := backend.RecordAnswer(ctx, q.ID, answer)
		if err != nil {
			return err
		}
		if result.Promoted {
			fmt.Fprintln(out, "Module is now in progress.")
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading answers: %w", err)
	}

	readiness, err := backend.Readiness(ctx, module.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d/%d answered.", readiness.Answered, readiness.Total)
	if readiness.Ready {
		fmt.Fprint(out, " Ready to write the chapter.")
	}
	fmt.Fprintln(out)
	return nil
}
