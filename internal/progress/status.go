// Package progress holds the rules that drive a project through its modules.
// This file defines the closed status types and the module transition table.
package progress

import "fmt"

// ModuleStatus is the lifecycle stage of a single interview module.
type ModuleStatus string

const (
	ModuleDraft              ModuleStatus = "DRAFT"
	ModuleQuestionsGenerated ModuleStatus = "QUESTIONS_GENERATED"
	ModuleInProgress         ModuleStatus = "IN_PROGRESS"
	ModuleChapterGenerated   ModuleStatus = "CHAPTER_GENERATED"
	ModuleApproved           ModuleStatus = "APPROVED"
)

// ModuleStatuses lists every module status in lifecycle order.
var ModuleStatuses = []ModuleStatus{
	ModuleDraft,
	ModuleQuestionsGenerated,
	ModuleInProgress,
	ModuleChapterGenerated,
	ModuleApproved,
}

// Valid reports whether s is one of the known module statuses.
func (s ModuleStatus) Valid() bool {
	for _, known := range ModuleStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseModuleStatus converts a stored string into a ModuleStatus.
func ParseModuleStatus(raw string) (ModuleStatus, error) {
	s := ModuleStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown module status %q", raw)
	}
	return s, nil
}

// moduleTransitions enumerates every permitted edge. Anything missing here
// is rejected by CanTransition.
var moduleTransitions = map[ModuleStatus][]ModuleStatus{
	ModuleDraft:              {ModuleQuestionsGenerated},
	ModuleQuestionsGenerated: {ModuleInProgress},
	ModuleInProgress:         {ModuleChapterGenerated},
	// Regenerating a chapter appends a new version without leaving the state.
	ModuleChapterGenerated: {ModuleChapterGenerated, ModuleApproved},
	// The only backward edge, taken by UnapproveModule.
	ModuleApproved: {ModuleChapterGenerated},
}

// CanTransition reports whether a module may move from one status to another.
func CanTransition(from, to ModuleStatus) bool {
	for _, next := range moduleTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates a module status change and returns the new status.
func Transition(from, to ModuleStatus) (ModuleStatus, error) {
	if !from.Valid() || !to.Valid() {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if !CanTransition(from, to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return to, nil
}

// ProjectStatus is the coarse lifecycle stage of a project. Stages are
// ordered and a project never moves backwards.
type ProjectStatus string

const (
	ProjectDraft              ProjectStatus = "DRAFT"
	ProjectRecordingInfo      ProjectStatus = "RECORDING_INFO"
	ProjectQuestionsGenerated ProjectStatus = "QUESTIONS_GENERATED"
	ProjectInProgress         ProjectStatus = "IN_PROGRESS"
	ProjectChapterGenerated   ProjectStatus = "CHAPTER_GENERATED"
	ProjectApproved           ProjectStatus = "APPROVED"
)

var projectOrder = map[ProjectStatus]int{
	ProjectDraft:              0,
	ProjectRecordingInfo:      1,
	ProjectQuestionsGenerated: 2,
	ProjectInProgress:         3,
	ProjectChapterGenerated:   4,
	ProjectApproved:           5,
}

// Valid reports whether s is one of the known project statuses.
func (s ProjectStatus) Valid() bool {
	_, ok := projectOrder[s]
	return ok
}

// AdvanceProject returns whichever of current and next is further along.
// Unknown values never win over a known one.
func AdvanceProject(current, next ProjectStatus) ProjectStatus {
	if !next.Valid() {
		return current
	}
	if !current.Valid() || projectOrder[next] > projectOrder[current] {
		return next
	}
	return current
}

// BookStatus tracks whether the project's book has been assembled.
type BookStatus string

const (
	BookNotStarted BookStatus = "NOT_STARTED"
	BookCompiled   BookStatus = "COMPILED"
	BookExported   BookStatus = "EXPORTED"
)
