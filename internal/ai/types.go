// Package ai talks to an OpenAI-compatible API to write interview
// questions, memoir chapters and audio transcripts.
package ai

import (
	"context"
	"io"
)

// Interviewee is the background handed to every prompt.
type Interviewee struct {
	Name         string
	Relationship string
	BirthYear    int
	Birthplace   string
	Notes        string
}

// QA is one answered question.
type QA struct {
	Question string
	Response string
}

// QuestionRequest asks for new questions for one module.
type QuestionRequest struct {
	Interviewee  Interviewee
	ModuleNumber int
	Theme        string
	Count        int
	Previous     []QA
}

// ChapterRequest asks for a chapter written from a module's answers.
type ChapterRequest struct {
	Interviewee     Interviewee
	ModuleNumber    int
	Theme           string
	Answers         []QA
	PreviousChapter string
}

// Chapter is generated prose.
type Chapter struct {
	Content   string
	WordCount int
}

// TranscribeRequest carries one recorded answer.
type TranscribeRequest struct {
	Filename string
	MimeType string
	Audio    io.Reader
}

// Generator is the generation service. Failures are returned as *Error.
type Generator interface {
	GenerateQuestions(ctx context.Context, req QuestionRequest) ([]string, error)
	GenerateChapter(ctx context.Context, req ChapterRequest) (Chapter, error)
	Transcribe(ctx context.Context, req TranscribeRequest) (string, error)
}
