package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/mabel-stories/mabel/prompts"
)

var (
	questionsTmpl = template.Must(template.New("questions").Parse(prompts.QuestionsTemplate))
	chapterTmpl   = template.Must(template.New("chapter").Parse(prompts.ChapterTemplate))
)

// BuildQuestionsPrompt renders the user prompt for question generation.
func BuildQuestionsPrompt(req QuestionRequest) (string, error) {
	var buf bytes.Buffer
	if err := questionsTmpl.Execute(&buf, req); err != nil {
		return "", fmt.Errorf("render questions prompt: %w", err)
	}
	return buf.String(), nil
}

// BuildChapterPrompt renders the user prompt for chapter generation.
func BuildChapterPrompt(req ChapterRequest) (string, error) {
	var buf bytes.Buffer
	if err := chapterTmpl.Execute(&buf, req); err != nil {
		return "", fmt.Errorf("render chapter prompt: %w", err)
	}
	return buf.String(), nil
}

// ParseQuestions extracts the question list from a model reply. It accepts
// {"questions": [...]}, a bare JSON array, or a numbered plain-text list.
func ParseQuestions(output string) ([]string, error) {
	cleaned := cleanJSONOutput(output)

	var wrapped struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wrapped); err == nil && len(wrapped.Questions) > 0 {
		return trimAll(wrapped.Questions), nil
	}
	var list []string
	if err := json.Unmarshal([]byte(cleaned), &list); err == nil && len(list) > 0 {
		return trimAll(list), nil
	}

	var lines []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "0123456789.)-* ")
		if strings.HasSuffix(line, "?") {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("no questions found in model output")
	}
	return lines, nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// cleanJSONOutput strips markdown fences and surrounding prose from a model
// reply so the JSON inside can be decoded.
func cleanJSONOutput(s string) string {
	s = strings.TrimSpace(s)

	if idx := strings.Index(s, "```"); idx != -1 {
		s = s[idx+3:]
		// Skip an optional language tag on the fence line.
		if nl := strings.Index(s, "\n"); nl != -1 && nl < 20 {
			s = s[nl+1:]
		}
		if end := strings.Index(s, "```"); end != -1 {
			s = s[:end]
		}
		return strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return s
	}
	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(s, closer)
	if end <= start {
		return s
	}
	return s[start : end+1]
}
