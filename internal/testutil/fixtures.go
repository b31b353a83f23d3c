// Package testutil provides test helper utilities for mabel tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mabel-stories/mabel/internal/store"
)

// NewStore opens a migrated SQLite store in a temporary directory. It is
// closed when the test finishes.
func NewStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "mabel.db"), store.Options{BusyTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// Project is a seeded user, project and first module.
type Project struct {
	User    *store.User
	Project *store.Project
	Module  *store.Module
}

// SeedProject creates a user, a project titled "Rose's Story" and its
// interviewee Rose, the user's grandmother.
func SeedProject(t *testing.T, st *store.Store, email string) Project {
	t.Helper()
	ctx := context.Background()
	user, err := st.CreateUser(ctx, email, "Ada")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	project, err := st.CreateProject(ctx, user.ID, "Rose's Story")
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	if _, err := st.SaveInterviewee(ctx, project.ID, store.IntervieweeInput{
		Name:         "Rose",
		Relationship: "grandmother",
		Birthplace:   "Cork",
	}); err != nil {
		t.Fatalf("SaveInterviewee failed: %v", err)
	}
	module, err := st.ModuleByNumber(ctx, project.ID, 1)
	if err != nil {
		t.Fatalf("ModuleByNumber failed: %v", err)
	}
	return Project{User: user, Project: project, Module: module}
}

// AnswerAll generates n questions for the module and answers each of them.
func AnswerAll(t *testing.T, st *store.Store, moduleID string, n int) []store.ModuleQuestion {
	t.Helper()
	ctx := context.Background()
	texts := make([]string, n)
	for i := range texts {
		texts[i] = "Question?"
	}
	questions, err := st.SaveGeneratedQuestions(ctx, moduleID, texts)
	if err != nil {
		t.Fatalf("SaveGeneratedQuestions failed: %v", err)
	}
	for _, q := range questions {
		if _, err := st.RecordAnswer(ctx, q.ID, "An answer."); err != nil {
			t.Fatalf("RecordAnswer failed: %v", err)
		}
	}
	return questions
}
