package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mabel-stories/mabel/internal/ai"
	"github.com/mabel-stories/mabel/internal/jobs"
	"github.com/mabel-stories/mabel/internal/log"
	"github.com/mabel-stories/mabel/internal/progress"
	"github.com/mabel-stories/mabel/internal/storage"
	"github.com/mabel-stories/mabel/internal/store"
)

type stubGenerator struct {
	err error
}

func (g *stubGenerator) GenerateQuestions(ctx context.Context, req ai.QuestionRequest) ([]string, error) {
	if g.err != nil {
		return nil, g.err
	}
	return []string{"Where were you born?", "Who raised you?"}, nil
}

func (g *stubGenerator) GenerateChapter(ctx context.Context, req ai.ChapterRequest) (ai.Chapter, error) {
	if g.err != nil {
		return ai.Chapter{}, g.err
	}
	text := "I was born by the sea in " + req.Interviewee.Birthplace + "."
	return ai.Chapter{Content: text, WordCount: progress.WordCount(text)}, nil
}

func (g *stubGenerator) Transcribe(ctx context.Context, req ai.TranscribeRequest) (string, error) {
	if _, err := io.ReadAll(req.Audio); err != nil {
		return "", err
	}
	return "By the harbour in Cork.", nil
}

type testServer struct {
	t       *testing.T
	store   *store.Store
	jobs    *jobs.Dispatcher
	gen     *stubGenerator
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "mabel.db"), store.Options{BusyTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	fs, err := storage.NewFS(filepath.Join(dir, "uploads"), 1024)
	if err != nil {
		t.Fatalf("NewFS failed: %v", err)
	}
	logger, err := log.NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	gen := &stubGenerator{}
	d := jobs.NewDispatcher(st, logger, jobs.Options{Workers: 1, MaxAttempts: 1})
	h := &jobs.Handlers{Store: st, Generator: gen, Storage: fs, Logger: logger, QuestionsPerModule: 2}
	h.Register(d)

	srv := NewServer(Deps{Store: st, Jobs: d, Storage: fs, Logger: logger, MaxUploadBytes: 1024})
	return &testServer{t: t, store: st, jobs: d, gen: gen, handler: srv.Handler()}
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			ts.t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) runJobs() {
	ts.t.Helper()
	for {
		ran, err := ts.jobs.RunOnce(context.Background())
		if err != nil {
			ts.t.Fatalf("RunOnce failed: %v", err)
		}
		if !ran {
			return
		}
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status: got %d, want %d; body %s", rec.Code, want, rec.Body.String())
	}
}

func (ts *testServer) signup(email string) string {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/users", "", map[string]string{"email": email, "name": "Ada"})
	expectStatus(ts.t, rec, http.StatusCreated)
	return decode[createUserResponse](ts.t, rec).APIToken
}

func (ts *testServer) newProject(token string) (projectID, moduleID string) {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/projects", token, map[string]string{"title": "Rose's Story"})
	expectStatus(ts.t, rec, http.StatusCreated)
	projectID = decode[store.Project](ts.t, rec).ID

	rec = ts.do(http.MethodPut, "/api/projects/"+projectID+"/interviewee", token,
		map[string]any{"name": "Rose", "relationship": "grandmother", "birthplace": "Cork"})
	expectStatus(ts.t, rec, http.StatusOK)

	rec = ts.do(http.MethodGet, "/api/projects/"+projectID, token, nil)
	expectStatus(ts.t, rec, http.StatusOK)
	view := decode[struct {
		Status  progress.ProjectStatus `json:"status"`
		Modules []store.Module         `json:"modules"`
	}](ts.t, rec)
	if view.Status != progress.ProjectRecordingInfo || len(view.Modules) != 1 {
		ts.t.Fatalf("project view: got %+v", view)
	}
	return projectID, view.Modules[0].ID
}

// readyModule drives a module to CHAPTER_GENERATED through the API.
func (ts *testServer) readyModule(token, moduleID string) {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/modules/"+moduleID+"/questions/generate", token, nil)
	expectStatus(ts.t, rec, http.StatusAccepted)
	ts.runJobs()

	rec = ts.do(http.MethodGet, "/api/modules/"+moduleID, token, nil)
	expectStatus(ts.t, rec, http.StatusOK)
	mv := decode[struct {
		Questions []store.ModuleQuestion `json:"questions"`
	}](ts.t, rec)
	if len(mv.Questions) != 2 {
		ts.t.Fatalf("got %d questions, want 2", len(mv.Questions))
	}

	rec = ts.do(http.MethodPut, "/api/questions/"+mv.Questions[0].ID+"/response", token,
		map[string]string{"response": "In Cork, by the harbour."})
	expectStatus(ts.t, rec, http.StatusOK)

	rec = ts.do(http.MethodPost, "/api/modules/"+moduleID+"/chapter/generate", token, nil)
	expectStatus(ts.t, rec, http.StatusAccepted)
	ts.runJobs()
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/healthz", "", nil)
	expectStatus(t, rec, http.StatusOK)
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)
	expectStatus(t, ts.do(http.MethodGet, "/api/projects", "", nil), http.StatusUnauthorized)
	expectStatus(t, ts.do(http.MethodGet, "/api/projects", "not-a-token", nil), http.StatusUnauthorized)
}

func TestDuplicateSignupConflicts(t *testing.T) {
	ts := newTestServer(t)
	ts.signup("ada@example.com")
	rec := ts.do(http.MethodPost, "/api/users", "", map[string]string{"email": "ADA@example.com"})
	expectStatus(t, rec, http.StatusConflict)
	if body := decode[errorBody](t, rec); body.Code != "duplicate" {
		t.Errorf("code: got %q", body.Code)
	}
}

func TestInterviewFlow(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup("ada@example.com")
	projectID, moduleID := ts.newProject(token)

	rec := ts.do(http.MethodPost, "/api/modules/"+moduleID+"/approve", token, nil)
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	if body := decode[errorBody](t, rec); body.Code != "chapter_missing" {
		t.Errorf("approve without chapter: code %q", body.Code)
	}

	ts.readyModule(token, moduleID)

	rec = ts.do(http.MethodGet, "/api/modules/"+moduleID+"/chapters", token, nil)
	expectStatus(t, rec, http.StatusOK)
	chapters := decode[struct {
		Chapters []store.ModuleChapter `json:"chapters"`
	}](t, rec).Chapters
	if len(chapters) != 1 || !strings.Contains(chapters[0].Content, "Cork") {
		t.Fatalf("chapters: got %+v", chapters)
	}

	rec = ts.do(http.MethodPost, "/api/modules/"+moduleID+"/approve", token, nil)
	expectStatus(t, rec, http.StatusOK)
	approved := decode[store.ApproveResult](t, rec)
	if approved.CompletedCount != 1 || approved.NextModule == nil || approved.NextModule.ModuleNumber != 2 {
		t.Fatalf("approve result: %+v", approved)
	}
	if approved.Project.CurrentModuleNumber != 2 || approved.SuggestBookCompilation {
		t.Errorf("project after approve: %+v", approved.Project)
	}

	rec = ts.do(http.MethodPost, "/api/modules/"+moduleID+"/approve", token, nil)
	expectStatus(t, rec, http.StatusConflict)

	rec = ts.do(http.MethodPost, "/api/projects/"+projectID+"/narrative", token, nil)
	expectStatus(t, rec, http.StatusCreated)
	if n := decode[store.Narrative](t, rec); n.Chapters != 1 || n.Version != 1 {
		t.Errorf("narrative: %+v", n)
	}

	rec = ts.do(http.MethodGet, "/api/projects/"+projectID+"/book?format=md", token, nil)
	expectStatus(t, rec, http.StatusOK)
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "rose-s-story.md") {
		t.Errorf("Content-Disposition: %q", cd)
	}
	if !strings.Contains(rec.Body.String(), "## Chapter 1: Early Childhood") {
		t.Errorf("book body:\n%s", rec.Body.String())
	}
	p, err := ts.store.GetProject(context.Background(), projectID)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if p.BookStatus != progress.BookExported {
		t.Errorf("book status: got %s", p.BookStatus)
	}

	rec = ts.do(http.MethodPost, "/api/modules/"+moduleID+"/unapprove", token, nil)
	expectStatus(t, rec, http.StatusOK)
	un := decode[store.UnapproveResult](t, rec)
	if !un.Changed || un.Project.TotalModulesCompleted != 0 || un.Project.CurrentModuleNumber != 1 {
		t.Errorf("unapprove result: %+v", un)
	}
}

func TestForeignProjectIsNotFound(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.signup("ada@example.com")
	other := ts.signup("bob@example.com")
	projectID, moduleID := ts.newProject(owner)

	expectStatus(t, ts.do(http.MethodGet, "/api/projects/"+projectID, other, nil), http.StatusNotFound)
	expectStatus(t, ts.do(http.MethodGet, "/api/modules/"+moduleID, other, nil), http.StatusNotFound)
	expectStatus(t, ts.do(http.MethodPost, "/api/modules/"+moduleID+"/approve", other, nil), http.StatusNotFound)
}

func TestChapterGenerationNeedsAnswers(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup("ada@example.com")
	_, moduleID := ts.newProject(token)

	rec := ts.do(http.MethodPost, "/api/modules/"+moduleID+"/chapter/generate", token, nil)
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	if body := decode[errorBody](t, rec); body.Code != "no_questions" {
		t.Errorf("code before questions: got %q, want no_questions", body.Code)
	}

	expectStatus(t, ts.do(http.MethodPost, "/api/modules/"+moduleID+"/questions/generate", token, nil), http.StatusAccepted)
	ts.runJobs()

	rec = ts.do(http.MethodPost, "/api/modules/"+moduleID+"/chapter/generate", token, nil)
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	if body := decode[errorBody](t, rec); body.Code != "insufficient_responses" {
		t.Errorf("code: got %q", body.Code)
	}
}

func TestFailedJobCarriesReason(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup("ada@example.com")
	_, moduleID := ts.newProject(token)
	ts.gen.err = &ai.Error{Category: ai.CategoryQuota, StatusCode: http.StatusPaymentRequired, Message: "out of credit"}

	rec := ts.do(http.MethodPost, "/api/modules/"+moduleID+"/questions/generate", token, nil)
	expectStatus(t, rec, http.StatusAccepted)
	accepted := decode[jobAccepted](t, rec)
	ts.runJobs()

	rec = ts.do(http.MethodGet, "/api/jobs/"+accepted.JobID, token, nil)
	expectStatus(t, rec, http.StatusOK)
	job := decode[struct {
		Status        store.JobStatus `json:"status"`
		ErrorCategory string          `json:"errorCategory"`
		Reason        string          `json:"reason"`
	}](t, rec)
	if job.Status != store.JobFailed || job.ErrorCategory != string(ai.CategoryQuota) {
		t.Fatalf("job: %+v", job)
	}
	if job.Reason != ai.CategoryQuota.Reason() {
		t.Errorf("reason: got %q", job.Reason)
	}
}

func TestAudioUploadTranscribes(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup("ada@example.com")
	_, moduleID := ts.newProject(token)
	expectStatus(t, ts.do(http.MethodPost, "/api/modules/"+moduleID+"/questions/generate", token, nil), http.StatusAccepted)
	ts.runJobs()
	questions, err := ts.store.Questions(context.Background(), moduleID)
	if err != nil || len(questions) == 0 {
		t.Fatalf("Questions: %v (%d)", err, len(questions))
	}

	upload := func(size int) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("file", "answer.webm")
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		_, _ = part.Write(bytes.Repeat([]byte{'a'}, size))
		_ = mw.Close()
		req := httptest.NewRequest(http.MethodPost, "/api/questions/"+questions[0].ID+"/audio", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)
		return rec
	}

	expectStatus(t, upload(4096), http.StatusRequestEntityTooLarge)

	rec := upload(64)
	expectStatus(t, rec, http.StatusAccepted)
	ts.runJobs()

	q, err := ts.store.GetQuestion(context.Background(), questions[0].ID)
	if err != nil {
		t.Fatalf("GetQuestion failed: %v", err)
	}
	if q.Response == nil || *q.Response != "By the harbour in Cork." {
		t.Errorf("response: got %v", q.Response)
	}
	if q.AudioUploadID == nil || *q.AudioUploadID != decode[uploadAccepted](t, rec).UploadID {
		t.Errorf("audio link: got %v", q.AudioUploadID)
	}
}

func TestExportFormats(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup("ada@example.com")
	projectID, _ := ts.newProject(token)

	expectStatus(t, ts.do(http.MethodGet, "/api/projects/"+projectID+"/book?format=pdf", token, nil), http.StatusBadRequest)
	expectStatus(t, ts.do(http.MethodGet, "/api/projects/"+projectID+"/book", token, nil), http.StatusUnprocessableEntity)
}
