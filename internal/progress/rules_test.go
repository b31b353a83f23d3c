package progress

import (
	"errors"
	"testing"
)

func TestCanGenerateChapter(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		answered int
		want     bool
	}{
		{"no questions", 0, 0, false},
		{"none answered", 4, 0, false},
		{"one of four", 4, 1, false},
		{"half boundary inclusive", 4, 2, true},
		{"all answered", 4, 4, true},
		{"odd total below", 5, 2, false},
		{"odd total above", 5, 3, true},
		{"single question answered", 1, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanGenerateChapter(tt.total, tt.answered); got != tt.want {
				t.Errorf("CanGenerateChapter(%d, %d) = %v, want %v", tt.total, tt.answered, got, tt.want)
			}
		})
	}
}

func TestCheckChapterReadiness(t *testing.T) {
	if err := CheckChapterReadiness(0, 0); !errors.Is(err, ErrNoQuestionsYet) {
		t.Errorf("zero questions: got %v, want ErrNoQuestionsYet", err)
	}
	if err := CheckChapterReadiness(4, 1); !errors.Is(err, ErrInsufficientResponses) {
		t.Errorf("1/4 answered: got %v, want ErrInsufficientResponses", err)
	}
	if err := CheckChapterReadiness(4, 2); err != nil {
		t.Errorf("2/4 answered: got %v, want nil", err)
	}
}

func TestComputeReadiness(t *testing.T) {
	r := ComputeReadiness(4, 2)
	if r.Ratio != 0.5 || !r.Ready {
		t.Errorf("ComputeReadiness(4, 2) = %+v, want ratio 0.5 and ready", r)
	}
	r = ComputeReadiness(0, 0)
	if r.Ratio != 0 || r.Ready {
		t.Errorf("ComputeReadiness(0, 0) = %+v, want not ready", r)
	}
}

func TestIsAnswered(t *testing.T) {
	blank := "   "
	text := "We moved to Leeds in 1962."
	if IsAnswered(nil) {
		t.Error("nil response should not count as answered")
	}
	if IsAnswered(&blank) {
		t.Error("whitespace response should not count as answered")
	}
	if !IsAnswered(&text) {
		t.Error("non-empty response should count as answered")
	}
}

func TestCheckApproval(t *testing.T) {
	tests := []struct {
		name  string
		check ApprovalCheck
		want  error
	}{
		{"already approved", ApprovalCheck{Status: ModuleApproved, ChapterCount: 1}, ErrAlreadyApproved},
		{"no chapter", ApprovalCheck{Status: ModuleChapterGenerated, ChapterCount: 0}, ErrChapterMissing},
		{"in progress with chapter", ApprovalCheck{Status: ModuleInProgress, ChapterCount: 1}, ErrInvalidTransition},
		{"ready", ApprovalCheck{Status: ModuleChapterGenerated, ChapterCount: 2}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckApproval(tt.check)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("CheckApproval: got %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("CheckApproval: got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPlanAfterApproval(t *testing.T) {
	tests := []struct {
		completed   int64
		suggestBook bool
		createNext  bool
		status      ProjectStatus
	}{
		{1, false, true, ProjectChapterGenerated},
		{2, false, true, ProjectChapterGenerated},
		{3, true, true, ProjectChapterGenerated},
		{7, true, true, ProjectChapterGenerated},
		{8, true, false, ProjectApproved},
		{9, true, false, ProjectApproved},
	}
	for _, tt := range tests {
		plan := PlanAfterApproval(ProjectInProgress, tt.completed)
		if plan.SuggestBookCompilation != tt.suggestBook {
			t.Errorf("completed=%d: SuggestBookCompilation = %v, want %v", tt.completed, plan.SuggestBookCompilation, tt.suggestBook)
		}
		if plan.CreateNextModule != tt.createNext {
			t.Errorf("completed=%d: CreateNextModule = %v, want %v", tt.completed, plan.CreateNextModule, tt.createNext)
		}
		if plan.ProjectStatus != tt.status {
			t.Errorf("completed=%d: ProjectStatus = %s, want %s", tt.completed, plan.ProjectStatus, tt.status)
		}
	}
}

func TestPreviousModuleNumber(t *testing.T) {
	for in, want := range map[int]int{0: 1, 1: 1, 2: 1, 5: 4} {
		if got := PreviousModuleNumber(in); got != want {
			t.Errorf("PreviousModuleNumber(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestWordCount(t *testing.T) {
	if got := WordCount("  She kept bees\nin the\tgarden. "); got != 6 {
		t.Errorf("WordCount = %d, want 6", got)
	}
	if got := WordCount(""); got != 0 {
		t.Errorf("WordCount(empty) = %d, want 0", got)
	}
}
