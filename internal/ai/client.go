package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mabel-stories/mabel/internal/config"
	"github.com/mabel-stories/mabel/internal/progress"
	"github.com/mabel-stories/mabel/prompts"
)

// Client implements Generator on an OpenAI-compatible API.
type Client struct {
	api                *openai.Client
	apiKey             string
	model              string
	transcriptionModel string
	maxTokens          int
}

// NewClient builds a Client from the ai section of the config.
func NewClient(cfg config.AIConfig, apiKey string) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	oc := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}
	return &Client{
		api:                openai.NewClientWithConfig(oc),
		apiKey:             apiKey,
		model:              cfg.Model,
		transcriptionModel: cfg.TranscriptionModel,
		maxTokens:          cfg.MaxTokens,
	}
}

// GenerateQuestions asks the model for req.Count questions.
func (c *Client) GenerateQuestions(ctx context.Context, req QuestionRequest) ([]string, error) {
	if req.Count <= 0 {
		req.Count = 8
	}
	prompt, err := BuildQuestionsPrompt(req)
	if err != nil {
		return nil, err
	}
	out, err := c.chat(ctx, prompts.QuestionsSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	questions, err := ParseQuestions(out)
	if err != nil {
		return nil, &Error{Category: CategoryGeneric, Message: err.Error(), Err: err}
	}
	if len(questions) > req.Count {
		questions = questions[:req.Count]
	}
	return questions, nil
}

// GenerateChapter asks the model for chapter prose.
func (c *Client) GenerateChapter(ctx context.Context, req ChapterRequest) (Chapter, error) {
	prompt, err := BuildChapterPrompt(req)
	if err != nil {
		return Chapter{}, err
	}
	out, err := c.chat(ctx, prompts.ChapterSystemPrompt, prompt)
	if err != nil {
		return Chapter{}, err
	}
	content := strings.TrimSpace(out)
	if content == "" {
		return Chapter{}, &Error{Category: CategoryGeneric, Message: "model returned an empty chapter"}
	}
	return Chapter{Content: content, WordCount: progress.WordCount(content)}, nil
}

func (c *Client) chat(ctx context.Context, system, user string) (string, error) {
	if c.apiKey == "" {
		return "", errNoAPIKey
	}
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", fromOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Category: CategoryGeneric, Message: "no choices returned"}
	}
	return resp.Choices[0].Message.Content, nil
}

// Transcribe uploads audio to the transcription endpoint.
func (c *Client) Transcribe(ctx context.Context, req TranscribeRequest) (string, error) {
	if c.apiKey == "" {
		return "", errNoAPIKey
	}
	filename := req.Filename
	if filename == "" {
		filename = "answer.webm"
	}
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.transcriptionModel,
		FilePath: filename,
		Reader:   req.Audio,
	})
	if err != nil {
		return "", fromOpenAI(err)
	}
	return strings.TrimSpace(resp.Text), nil
}

var errNoAPIKey = &Error{Category: CategoryUnauthorized, Message: "no API key configured"}

// fromOpenAI converts client errors into categorized *Error values.
func fromOpenAI(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if code, ok := apiErr.Code.(string); ok && code != "" {
			msg = code + ": " + msg
		}
		return &Error{
			Category:   Classify(apiErr.HTTPStatusCode, msg+" "+apiErr.Type),
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Err:        err,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &Error{
			Category:   Classify(reqErr.HTTPStatusCode, ""),
			StatusCode: reqErr.HTTPStatusCode,
			Message:    reqErr.Error(),
			Err:        err,
		}
	}
	return wrapTransport(err)
}
