package api

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/mabel-stories/mabel/internal/ai"
	"github.com/mabel-stories/mabel/internal/export"
	"github.com/mabel-stories/mabel/internal/jobs"
	"github.com/mabel-stories/mabel/internal/log"
	"github.com/mabel-stories/mabel/internal/progress"
	"github.com/mabel-stories/mabel/internal/storage"
	"github.com/mabel-stories/mabel/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DB().WithContext(r.Context()).Exec("SELECT 1").Error; err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type createUserResponse struct {
	User     *store.User `json:"user"`
	APIToken string      `json:"apiToken"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !readJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		badRequest(w, "email is required")
		return
	}
	user, err := s.store.CreateUser(r.Context(), req.Email, req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createUserResponse{User: user, APIToken: user.APIToken})
}

// Projects

type createProjectRequest struct {
	Title string `json:"title"`
}

type projectView struct {
	*store.Project
	Interviewee *store.Interviewee `json:"interviewee"`
	Modules     []store.Module     `json:"modules"`
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request, user *store.User) {
	projects, err := s.store.ListProjects(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if projects == nil {
		projects = []store.Project{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request, user *store.User) {
	var req createProjectRequest
	if !readJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		badRequest(w, "title is required")
		return
	}
	project, err := s.store.CreateProject(r.Context(), user.ID, req.Title)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Emit(log.LogEvent{Event: log.EventProjectCreated, UserID: user.ID, ProjectID: project.ID})
	writeJSON(w, http.StatusCreated, project)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request, user *store.User) {
	project, err := s.store.ProjectForUser(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	interviewee, err := s.store.GetInterviewee(r.Context(), project.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	modules, err := s.store.ListModules(r.Context(), project.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projectView{Project: project, Interviewee: interviewee, Modules: modules})
}

func (s *Server) handleSaveInterviewee(w http.ResponseWriter, r *http.Request, user *store.User) {
	project, err := s.store.ProjectForUser(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	var in store.IntervieweeInput
	if !readJSON(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		badRequest(w, "name is required")
		return
	}
	interviewee, err := s.store.SaveInterviewee(r.Context(), project.ID, in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, interviewee)
}

func (s *Server) handleListModules(w http.ResponseWriter, r *http.Request, user *store.User) {
	project, err := s.store.ProjectForUser(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	modules, err := s.store.ListModules(r.Context(), project.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"modules": modules})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request, user *store.User) {
	project, err := s.store.ProjectForUser(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	list, err := s.store.ListJobs(r.Context(), project.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	views := make([]jobView, 0, len(list))
	for i := range list {
		views = append(views, newJobView(&list[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": views})
}

func (s *Server) handleCompileNarrative(w http.ResponseWriter, r *http.Request, user *store.User) {
	project, err := s.store.ProjectForUser(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	narrative, err := s.store.CompileNarrative(r.Context(), project.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Emit(log.LogEvent{
		Event:     log.EventNarrativeCompiled,
		UserID:    user.ID,
		ProjectID: project.ID,
		Total:     narrative.Chapters,
	})
	writeJSON(w, http.StatusCreated, narrative)
}

func (s *Server) handleExportBook(w http.ResponseWriter, r *http.Request, user *store.User) {
	project, err := s.store.ProjectForUser(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	book, err := export.LoadBook(r.Context(), s.store, project.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	artifact, err := export.RenderBook(format, book)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.MarkBookExported(r.Context(), project.ID); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Emit(log.LogEvent{
		Event:     log.EventBookExported,
		UserID:    user.ID,
		ProjectID: project.ID,
		Total:     len(book.Chapters),
		Data:      map[string]interface{}{"format": string(format)},
	})

	w.Header().Set("Content-Type", artifact.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact.Data)
}

// Modules

type moduleView struct {
	*store.Module
	Questions     []store.ModuleQuestion `json:"questions"`
	Readiness     progress.Readiness     `json:"readiness"`
	LatestChapter *store.ModuleChapter   `json:"latestChapter"`
}

func (s *Server) handleGetModule(w http.ResponseWriter, r *http.Request, user *store.User) {
	module, err := s.store.ModuleForUser(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	questions, err := s.store.Questions(r.Context(), module.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	readiness, err := s.store.Readiness(r.Context(), module.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	chapter, err := s.store.LatestChapter(r.Context(), module.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if questions == nil {
		questions = []store.ModuleQuestion{}
	}
	writeJSON(w, http.StatusOK, moduleView{
		Module:        module,
		Questions:     questions,
		Readiness:     readiness,
		LatestChapter: chapter,
	})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request, user *store.User) {
	module, err := s.store.ModuleForUser(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	readiness, err := s.store.Readiness(r.Context(), module.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, readiness)
}

type generateQuestionsRequest struct {
	Count int `json:"count"`
}

type jobAccepted struct {
	JobID  string          `json:"jobId"`
	Status store.JobStatus `json:"status"`
}

func (s *Server) handleGenerateQuestions(w http.ResponseWriter, r *http.Request, user *store.User) {
	module, err := s.store.ModuleForUser(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req generateQuestionsRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Count < 0 || req.Count > 50 {
		badRequest(w, "count must be between 0 and 50")
		return
	}
	if module.Status == progress.ModuleApproved {
		s.writeError(w, progress.ErrModuleLocked)
		return
	}
	s.submit(w, r, jobs.Task{
		Event:     jobs.EventQuestionsGenerate,
		ProjectID: module.ProjectID,
		ModuleID:  module.ID,
		Payload:   jobs.QuestionsInput{ModuleID: module.ID, Count: req.Count},
	})
}

func (s *Server) handleGenerateChapter(w http.ResponseWriter, r *http.Request, user *store.User) {
	module, err := s.store.ModuleForUser(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.CheckChapterGeneration(r.Context(), module.ID); err != nil {
		s.writeError(w, err)
		return
	}
	s.submit(w, r, jobs.Task{
		Event:     jobs.EventChapterGenerate,
		ProjectID: module.ProjectID,
		ModuleID:  module.ID,
		Payload:   jobs.ChapterInput{ModuleID: module.ID},
	})
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, task jobs.Task) {
	handle, err := s.jobs.Submit(r.Context(), task)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, jobAccepted{JobID: handle.JobID, Status: store.JobPending})
}

func (s *Server) handleListChapters(w http.ResponseWriter, r *http.Request, user *store.User) {
	module, err := s.store.ModuleForUser(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	chapters, err := s.store.Chapters(r.Context(), module.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if chapters == nil {
		chapters = []store.ModuleChapter{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"chapters": chapters})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request, user *store.User) {
	module, err := s.store.ModuleForUser(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	result, err := s.store.ApproveModule(r.Context(), module.ProjectID, module.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Emit(log.LogEvent{
		Event:        log.EventModuleApproved,
		UserID:       user.ID,
		ProjectID:    module.ProjectID,
		ModuleID:     module.ID,
		ModuleNumber: module.ModuleNumber,
		Completed:    result.CompletedCount,
	})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUnapprove(w http.ResponseWriter, r *http.Request, user *store.User) {
	module, err := s.store.ModuleForUser(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	result, err := s.store.UnapproveModule(r.Context(), module.ProjectID, module.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if result.Changed {
		s.logger.Emit(log.LogEvent{
			Event:        log.EventModuleUnapproved,
			UserID:       user.ID,
			ProjectID:    module.ProjectID,
			ModuleID:     module.ID,
			ModuleNumber: module.ModuleNumber,
			Completed:    int64(result.Project.TotalModulesCompleted),
		})
	} else {
		s.logger.Emit(log.LogEvent{
			Event:     log.EventWarning,
			UserID:    user.ID,
			ProjectID: module.ProjectID,
			ModuleID:  module.ID,
			Reason:    result.Warning,
		})
	}
	writeJSON(w, http.StatusOK, result)
}

// Questions

type recordAnswerRequest struct {
	Response string `json:"response"`
}

func (s *Server) handleRecordAnswer(w http.ResponseWriter, r *http.Request, user *store.User) {
	question, err := s.store.QuestionForUser(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req recordAnswerRequest
	if !readJSON(w, r, &req) {
		return
	}
	result, err := s.store.RecordAnswer(r.Context(), question.ID, req.Response)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Emit(log.LogEvent{
		Event:     log.EventAnswerRecorded,
		UserID:    user.ID,
		ProjectID: result.Module.ProjectID,
		ModuleID:  result.Module.ID,
		Total:     result.Readiness.Answered,
	})
	writeJSON(w, http.StatusOK, result)
}

type uploadAccepted struct {
	UploadID string          `json:"uploadId"`
	JobID    string          `json:"jobId"`
	Status   store.JobStatus `json:"status"`
}

func (s *Server) handleUploadAudio(w http.ResponseWriter, r *http.Request, user *store.User) {
	question, err := s.store.QuestionForUser(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	module, err := s.store.GetModule(r.Context(), question.ModuleID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if module.Status == progress.ModuleApproved {
		s.writeError(w, progress.ErrModuleLocked)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+(1<<20))
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, storage.ErrTooLarge)
			return
		}
		badRequest(w, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	key := storage.NewKey(module.ProjectID, header.Filename)
	size, err := s.storage.Put(r.Context(), key, file)
	if err != nil {
		s.writeError(w, err)
		return
	}

	upload := &store.AudioUpload{
		ProjectID:  module.ProjectID,
		QuestionID: question.ID,
		StorageKey: key,
		Filename:   filepath.Base(header.Filename),
		MimeType:   header.Header.Get("Content-Type"),
		SizeBytes:  size,
	}
	if err := s.store.CreateAudioUpload(r.Context(), upload); err != nil {
		_ = s.storage.Delete(r.Context(), key)
		s.writeError(w, err)
		return
	}

	handle, err := s.jobs.Submit(r.Context(), jobs.Task{
		Event:     jobs.EventAudioTranscribe,
		ProjectID: module.ProjectID,
		ModuleID:  module.ID,
		Payload:   jobs.TranscribeInput{UploadID: upload.ID, QuestionID: question.ID},
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, uploadAccepted{UploadID: upload.ID, JobID: handle.JobID, Status: store.JobPending})
}

// Jobs

type jobView struct {
	*store.Job
	Reason string `json:"reason,omitempty"`
}

func newJobView(job *store.Job) jobView {
	v := jobView{Job: job}
	if job.Status != store.JobFailed {
		return v
	}
	switch job.ErrorCategory {
	case "", "internal":
		v.Reason = "Something went wrong while running this job."
	case "interrupted":
		v.Reason = "The server restarted while this job was running. Please try again."
	default:
		v.Reason = ai.Category(job.ErrorCategory).Reason()
	}
	return v
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request, user *store.User) {
	job, err := s.store.JobForUser(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newJobView(job))
}
