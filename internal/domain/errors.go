package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrNoQuestions is returned when an attempt is started on a quiz with no questions.
	ErrNoQuestions = errors.New("quiz has no questions")
	// ErrUnknownQuestion is returned for answer or flag writes against an id the quiz does not contain.
	ErrUnknownQuestion = errors.New("unknown question id")
	// ErrInvalidAnswer is returned when an answer value's shape does not match the question type.
	ErrInvalidAnswer = errors.New("answer value does not match question type")
	// ErrNotInProgress is returned for mutations outside the IN_PROGRESS state.
	ErrNotInProgress = errors.New("attempt is not in progress")
	// ErrAttemptNotFound is returned when no attempt exists for the (quiz, user) pair.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptActive is returned when starting a second attempt while one is in progress.
	ErrAttemptActive = errors.New("an attempt is already in progress")
	// ErrAttemptLimit is returned when the quiz's attempt budget is exhausted.
	ErrAttemptLimit = errors.New("attempt limit reached")
	// ErrUnansweredQuestions is returned by an unforced submit while questions remain unanswered.
	ErrUnansweredQuestions = errors.New("unanswered questions remain")
	// ErrSubmissionFailed indicates the grading service rejected or never received the submission.
	ErrSubmissionFailed = errors.New("submission failed")
)
