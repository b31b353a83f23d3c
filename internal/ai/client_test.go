package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mabel-stories/mabel/internal/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := config.DefaultConfig().AI
	cfg.BaseURL = srv.URL
	return NewClient(cfg, "test-key")
}

func chatReply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
	})
	return string(b)
}

func TestGenerateQuestions(t *testing.T) {
	var gotAuth string
	var gotBody openai.ChatCompletionRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		io.WriteString(w, chatReply("```json\n{\"questions\": [\"Where did you grow up?\", \"Who was your best friend?\", \"What did you eat?\"]}\n```"))
	})

	questions, err := c.GenerateQuestions(context.Background(), QuestionRequest{
		Interviewee:  Interviewee{Name: "Rose", Relationship: "grandmother"},
		ModuleNumber: 1,
		Theme:        "Early Childhood",
		Count:        2,
	})
	if err != nil {
		t.Fatalf("GenerateQuestions failed: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header: got %q", gotAuth)
	}
	if len(gotBody.Messages) != 2 || !strings.Contains(gotBody.Messages[1].Content, "Rose") {
		t.Errorf("prompt should mention the interviewee: %+v", gotBody.Messages)
	}
	if len(questions) != 2 {
		t.Fatalf("got %d questions, want 2 (capped)", len(questions))
	}
	if questions[0] != "Where did you grow up?" {
		t.Errorf("first question: got %q", questions[0])
	}
}

func TestGenerateChapter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, chatReply("  I was born by the sea.  "))
	})
	ch, err := c.GenerateChapter(context.Background(), ChapterRequest{
		Interviewee: Interviewee{Name: "Rose"},
		Answers:     []QA{{Question: "Where?", Response: "By the sea."}},
	})
	if err != nil {
		t.Fatalf("GenerateChapter failed: %v", err)
	}
	if ch.Content != "I was born by the sea." || ch.WordCount != 6 {
		t.Errorf("got %+v", ch)
	}
}

func TestErrorCategories(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Category
		retry  bool
	}{
		{"payment required", 402, `{"error":{"message":"pay up"}}`, CategoryQuota, false},
		{"insufficient quota on 429", 429, `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota"}}`, CategoryQuota, false},
		{"rate limited", 429, `{"error":{"message":"Rate limit reached"}}`, CategoryRateLimited, true},
		{"unauthorized", 401, `{"error":{"message":"Incorrect API key"}}`, CategoryUnauthorized, false},
		{"gateway timeout", 504, `upstream timed out`, CategoryTimeout, true},
		{"server error", 500, `{"error":{"message":"boom"}}`, CategoryGeneric, true},
		{"bad request", 400, `{"error":{"message":"bad"}}`, CategoryGeneric, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			_, err := c.GenerateChapter(context.Background(), ChapterRequest{})
			var aiErr *Error
			if !errors.As(err, &aiErr) {
				t.Fatalf("got %T %v, want *Error", err, err)
			}
			if aiErr.Category != tt.want {
				t.Errorf("category: got %s, want %s", aiErr.Category, tt.want)
			}
			if aiErr.StatusCode != tt.status {
				t.Errorf("status: got %d, want %d", aiErr.StatusCode, tt.status)
			}
			if IsRetryable(err) != tt.retry {
				t.Errorf("retryable: got %v, want %v", IsRetryable(err), tt.retry)
			}
		})
	}
}

func TestClientTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.GenerateChapter(ctx, ChapterRequest{})
	if got := CategoryOf(err); got != CategoryTimeout {
		t.Errorf("category: got %s (%v), want timeout", got, err)
	}
}

func TestMissingAPIKey(t *testing.T) {
	c := NewClient(config.DefaultConfig().AI, "")
	_, err := c.GenerateQuestions(context.Background(), QuestionRequest{})
	if CategoryOf(err) != CategoryUnauthorized {
		t.Errorf("got %v, want unauthorized", err)
	}
}

func TestTranscribe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model: got %q", got)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if string(data) != "RIFF" || hdr.Filename != "a.wav" {
			t.Errorf("file: got %q named %q", data, hdr.Filename)
		}
		io.WriteString(w, `{"text":" We lived on Harbour Street. "}`)
	})

	text, err := c.Transcribe(context.Background(), TranscribeRequest{
		Filename: "a.wav",
		MimeType: "audio/wav",
		Audio:    strings.NewReader("RIFF"),
	})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "We lived on Harbour Street." {
		t.Errorf("got %q", text)
	}
}

func TestErrorWrapsProviderError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`)
	})
	_, err := c.GenerateQuestions(context.Background(), QuestionRequest{})
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got %T %v, want a wrapped *openai.APIError", err, err)
	}
	if apiErr.HTTPStatusCode != http.StatusTooManyRequests {
		t.Errorf("status: got %d", apiErr.HTTPStatusCode)
	}
	if CategoryOf(err) != CategoryRateLimited {
		t.Errorf("category: got %s, want rate_limited", CategoryOf(err))
	}
}
