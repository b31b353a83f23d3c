package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/mabel-stories/mabel/internal/store"
	"github.com/mabel-stories/mabel/internal/testutil"
)

func newProject(t *testing.T) (*store.Store, *store.Project) {
	t.Helper()
	st := testutil.NewStore(t)
	return st, testutil.SeedProject(t, st, "ada@example.com").Project
}

func TestPrintProject(t *testing.T) {
	st, project := newProject(t)
	var out bytes.Buffer
	if err := printProject(context.Background(), &out, st, project.ID); err != nil {
		t.Fatalf("printProject failed: %v", err)
	}
	for _, want := range []string{"Rose's Story", "Interviewee: Rose (grandmother)", "1. Early Childhood", "0/0 answered", "Progress: 0/8"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestPickModule(t *testing.T) {
	st, project := newProject(t)
	ctx := context.Background()

	m, err := pickModule(ctx, st, project, 0)
	if err != nil || m.ModuleNumber != 1 {
		t.Fatalf("current module: got %v, %v", m, err)
	}

	project.CurrentModuleNumber = 9
	m, err = pickModule(ctx, st, project, 0)
	if err != nil || m.ModuleNumber != 1 {
		t.Errorf("pointer past last module: got %v, %v", m, err)
	}

	if _, err := pickModule(ctx, st, project, 3); err == nil {
		t.Error("missing module 3 should fail")
	}
}
