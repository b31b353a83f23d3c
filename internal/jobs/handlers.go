package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mabel-stories/mabel/internal/ai"
	"github.com/mabel-stories/mabel/internal/log"
	"github.com/mabel-stories/mabel/internal/progress"
	"github.com/mabel-stories/mabel/internal/storage"
	"github.com/mabel-stories/mabel/internal/store"
)

// QuestionsInput is the payload of a question generation job.
type QuestionsInput struct {
	ModuleID string `json:"moduleId"`
	Count    int    `json:"count,omitempty"`
}

// ChapterInput is the payload of a chapter generation job.
type ChapterInput struct {
	ModuleID string `json:"moduleId"`
}

// TranscribeInput is the payload of an audio transcription job.
type TranscribeInput struct {
	UploadID   string `json:"uploadId"`
	QuestionID string `json:"questionId"`
}

// Handlers holds the collaborators the built-in job handlers need.
type Handlers struct {
	Store              *store.Store
	Generator          ai.Generator
	Storage            *storage.FS
	Logger             *log.Logger
	QuestionsPerModule int
}

// Register installs the built-in handlers on d.
func (h *Handlers) Register(d *Dispatcher) {
	d.Register(EventQuestionsGenerate, store.JobGenerateModuleQuestions, h.GenerateQuestions)
	d.Register(EventChapterGenerate, store.JobGenerateModuleChapter, h.GenerateChapter)
	d.Register(EventAudioTranscribe, store.JobTranscribeAudio, h.Transcribe)
}

func decodeInput(job *store.Job, v any) error {
	if len(job.Input) == 0 {
		return fmt.Errorf("job %s has no input", job.ID)
	}
	if err := json.Unmarshal(job.Input, v); err != nil {
		return fmt.Errorf("decode job input: %w", err)
	}
	return nil
}

func (h *Handlers) interviewee(ctx context.Context, projectID string) (ai.Interviewee, error) {
	iv, err := h.Store.GetInterviewee(ctx, projectID)
	if err != nil {
		return ai.Interviewee{}, err
	}
	if iv == nil {
		return ai.Interviewee{Name: "the interviewee"}, nil
	}
	return ai.Interviewee{
		Name:         iv.Name,
		Relationship: iv.Relationship,
		BirthYear:    iv.BirthYear,
		Birthplace:   iv.Birthplace,
		Notes:        iv.Notes,
	}, nil
}

// GenerateQuestions writes a fresh batch of questions for a module, using
// earlier modules' answers as context.
func (h *Handlers) GenerateQuestions(ctx context.Context, job *store.Job, report ProgressFunc) (any, error) {
	var in QuestionsInput
	if err := decodeInput(job, &in); err != nil {
		return nil, err
	}
	module, err := h.Store.GetModule(ctx, in.ModuleID)
	if err != nil {
		return nil, err
	}
	if module.Status == progress.ModuleApproved {
		return nil, progress.ErrModuleLocked
	}

	person, err := h.interviewee(ctx, module.ProjectID)
	if err != nil {
		return nil, err
	}
	previous, err := h.Store.PreviousAnswers(ctx, module.ProjectID, module.ModuleNumber)
	if err != nil {
		return nil, err
	}
	report(20)

	count := in.Count
	if count <= 0 {
		count = h.QuestionsPerModule
	}
	req := ai.QuestionRequest{
		Interviewee:  person,
		ModuleNumber: module.ModuleNumber,
		Theme:        module.Title,
		Count:        count,
	}
	for _, qa := range previous {
		req.Previous = append(req.Previous, ai.QA{Question: qa.Question, Response: qa.Response})
	}

	texts, err := h.Generator.GenerateQuestions(ctx, req)
	if err != nil {
		return nil, err
	}
	report(80)

	saved, err := h.Store.SaveGeneratedQuestions(ctx, module.ID, texts)
	if err != nil {
		return nil, err
	}
	h.Logger.Emit(log.LogEvent{
		Event:        log.EventQuestionsGenerated,
		ProjectID:    module.ProjectID,
		ModuleID:     module.ID,
		ModuleNumber: module.ModuleNumber,
		JobID:        job.ID,
		Total:        len(saved),
	})

	ids := make([]string, len(saved))
	for i, q := range saved {
		ids[i] = q.ID
	}
	return map[string]any{"moduleId": module.ID, "questionIds": ids}, nil
}

// GenerateChapter writes a new chapter version from a module's answers.
func (h *Handlers) GenerateChapter(ctx context.Context, job *store.Job, report ProgressFunc) (any, error) {
	var in ChapterInput
	if err := decodeInput(job, &in); err != nil {
		return nil, err
	}
	module, err := h.Store.GetModule(ctx, in.ModuleID)
	if err != nil {
		return nil, err
	}
	if err := h.Store.CheckChapterGeneration(ctx, module.ID); err != nil {
		return nil, err
	}

	person, err := h.interviewee(ctx, module.ProjectID)
	if err != nil {
		return nil, err
	}
	questions, err := h.Store.Questions(ctx, module.ID)
	if err != nil {
		return nil, err
	}
	req := ai.ChapterRequest{
		Interviewee:  person,
		ModuleNumber: module.ModuleNumber,
		Theme:        module.Title,
	}
	for _, q := range questions {
		if progress.IsAnswered(q.Response) {
			req.Answers = append(req.Answers, ai.QA{Question: q.Question, Response: *q.Response})
		}
	}
	latest, err := h.Store.LatestChapter(ctx, module.ID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		req.PreviousChapter = latest.Content
	}
	report(20)

	generated, err := h.Generator.GenerateChapter(ctx, req)
	if err != nil {
		return nil, err
	}
	report(80)

	chapter, err := h.Store.SaveChapter(ctx, module.ID, generated.Content)
	if err != nil {
		return nil, err
	}
	h.Logger.Emit(log.LogEvent{
		Event:        log.EventChapterGenerated,
		ProjectID:    module.ProjectID,
		ModuleID:     module.ID,
		ModuleNumber: module.ModuleNumber,
		JobID:        job.ID,
		Total:        chapter.WordCount,
	})
	return map[string]any{
		"chapterId": chapter.ID,
		"version":   chapter.Version,
		"wordCount": chapter.WordCount,
	}, nil
}

// Transcribe turns an uploaded recording into text and records it as the
// question's answer.
func (h *Handlers) Transcribe(ctx context.Context, job *store.Job, report ProgressFunc) (any, error) {
	var in TranscribeInput
	if err := decodeInput(job, &in); err != nil {
		return nil, err
	}
	upload, err := h.Store.GetAudioUpload(ctx, in.UploadID)
	if err != nil {
		return nil, err
	}

	audio, err := h.Storage.Open(ctx, upload.StorageKey)
	if err != nil {
		return nil, err
	}
	defer audio.Close()
	report(10)

	text, err := h.Generator.Transcribe(ctx, ai.TranscribeRequest{
		Filename: upload.Filename,
		MimeType: upload.MimeType,
		Audio:    audio,
	})
	if err != nil {
		return nil, err
	}
	report(70)

	if err := h.Store.SetTranscript(ctx, upload.ID, text); err != nil {
		return nil, err
	}
	questionID := in.QuestionID
	if questionID == "" {
		questionID = upload.QuestionID
	}
	res, err := h.Store.RecordAnswer(ctx, questionID, text)
	if err != nil {
		return nil, err
	}
	h.Logger.Emit(log.LogEvent{
		Event:     log.EventAnswerRecorded,
		ProjectID: upload.ProjectID,
		ModuleID:  res.Module.ID,
		JobID:     job.ID,
		Reason:    "transcribed",
	})
	return map[string]any{
		"questionId": questionID,
		"transcript": text,
		"promoted":   res.Promoted,
		"readiness":  res.Readiness,
	}, nil
}
