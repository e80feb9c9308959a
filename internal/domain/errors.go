package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a user has no in-flight session state.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNoQuestions is returned when the bank has nothing to offer for a mode.
	ErrNoQuestions = errors.New("no questions available")
	// ErrCaseNotFound indicates no clinical case exists for the specialty.
	ErrCaseNotFound = errors.New("clinical case not found")
	// ErrEmptySession means a simulation could not be assembled; no session is created.
	ErrEmptySession = errors.New("cannot start simulation: no questions available")
	// ErrStepOutOfRange indicates a clinical case step index past the case bounds.
	ErrStepOutOfRange = errors.New("step index out of range")
	// ErrQuestionOutOfRange indicates a question index past the run bounds.
	ErrQuestionOutOfRange = errors.New("question index out of range")
	// ErrCaseNotLoaded is returned when acting on a clinical case before loading one.
	ErrCaseNotLoaded = errors.New("no clinical case loaded")
	// ErrCaseFinished is returned when mutating a finished clinical case.
	ErrCaseFinished = errors.New("clinical case already finished")
	// ErrCaseNotFinished is returned when restarting a case that is still in progress.
	ErrCaseNotFinished = errors.New("clinical case not finished")
	// ErrNotStarted is returned when acting on a mode that has not been started.
	ErrNotStarted = errors.New("not started")
	// ErrRunFinished is returned when answering after a run was finished.
	ErrRunFinished = errors.New("already finished")
	// ErrAlreadyAnswered is returned when a competition question is validated twice.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrNoCorrectOption flags a malformed question definition.
	ErrNoCorrectOption = errors.New("question has no correct option")
)
