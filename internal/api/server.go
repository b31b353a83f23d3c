// Package api exposes Mabel over a JSON HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mabel-stories/mabel/internal/jobs"
	"github.com/mabel-stories/mabel/internal/log"
	"github.com/mabel-stories/mabel/internal/storage"
	"github.com/mabel-stories/mabel/internal/store"
)

// Deps are the collaborators a Server needs.
type Deps struct {
	Store          *store.Store
	Jobs           *jobs.Dispatcher
	Storage        *storage.FS
	Logger         *log.Logger
	MaxUploadBytes int64
}

// Server routes API requests to the store and job dispatcher.
type Server struct {
	store     *store.Store
	jobs      *jobs.Dispatcher
	storage   *storage.FS
	logger    *log.Logger
	maxUpload int64
	handler   http.Handler
}

// NewServer builds the route table.
func NewServer(d Deps) *Server {
	s := &Server{
		store:     d.Store,
		jobs:      d.Jobs,
		storage:   d.Storage,
		logger:    d.Logger,
		maxUpload: d.MaxUploadBytes,
	}
	if s.maxUpload <= 0 {
		s.maxUpload = 25 << 20
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/users", s.handleCreateUser)

	mux.HandleFunc("GET /api/projects", s.authed(s.handleListProjects))
	mux.HandleFunc("POST /api/projects", s.authed(s.handleCreateProject))
	mux.HandleFunc("GET /api/projects/{id}", s.authed(s.handleGetProject))
	mux.HandleFunc("PUT /api/projects/{id}/interviewee", s.authed(s.handleSaveInterviewee))
	mux.HandleFunc("GET /api/projects/{id}/modules", s.authed(s.handleListModules))
	mux.HandleFunc("GET /api/projects/{id}/jobs", s.authed(s.handleListJobs))
	mux.HandleFunc("POST /api/projects/{id}/narrative", s.authed(s.handleCompileNarrative))
	mux.HandleFunc("GET /api/projects/{id}/book", s.authed(s.handleExportBook))

	mux.HandleFunc("GET /api/modules/{id}", s.authed(s.handleGetModule))
	mux.HandleFunc("GET /api/modules/{id}/readiness", s.authed(s.handleReadiness))
	mux.HandleFunc("POST /api/modules/{id}/questions/generate", s.authed(s.handleGenerateQuestions))
	mux.HandleFunc("POST /api/modules/{id}/chapter/generate", s.authed(s.handleGenerateChapter))
	mux.HandleFunc("GET /api/modules/{id}/chapters", s.authed(s.handleListChapters))
	mux.HandleFunc("POST /api/modules/{id}/approve", s.authed(s.handleApprove))
	mux.HandleFunc("POST /api/modules/{id}/unapprove", s.authed(s.handleUnapprove))

	mux.HandleFunc("PUT /api/questions/{id}/response", s.authed(s.handleRecordAnswer))
	mux.HandleFunc("POST /api/questions/{id}/audio", s.authed(s.handleUploadAudio))

	mux.HandleFunc("GET /api/jobs/{id}", s.authed(s.handleGetJob))

	s.handler = s.logRequests(mux)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Emit(log.LogEvent{Event: log.EventServerStarted, Path: addr})

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type ctxKey int

const requestInfoKey ctxKey = iota

// requestInfo lets inner handlers report back to the access log.
type requestInfo struct {
	userID string
}

type authedHandler func(w http.ResponseWriter, r *http.Request, user *store.User)

// authed resolves the bearer token to a user before calling h.
func (s *Server) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing bearer token", Code: "unauthorized"})
			return
		}
		user, err := s.store.UserByToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid token", Code: "unauthorized"})
				return
			}
			s.writeError(w, err)
			return
		}
		if info, ok := r.Context().Value(requestInfoKey).(*requestInfo); ok {
			info.userID = user.ID
		}
		h(w, r, user)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		info := &requestInfo{}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestInfoKey, info)))
		if r.URL.Path == "/healthz" {
			return
		}
		s.logger.Emit(log.LogEvent{
			Event:      log.EventHTTPRequest,
			UserID:     info.userID,
			Method:     r.Method,
			Path:       r.URL.Path,
			Status:     rec.status,
			DurationMs: time.Since(start).Milliseconds(),
		})
	})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid JSON: %v", err), Code: "bad_request"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Fprintf(w, `{"error":"encoding response: %v"}`, err)
	}
}
