package domain

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionSingleChoice QuestionType = "single_choice"
	QuestionMultiSelect  QuestionType = "multi_select"
	QuestionShortAnswer  QuestionType = "short_answer"
	QuestionEssay        QuestionType = "essay"
	QuestionTrueFalse    QuestionType = "true_false"
)

// AttemptStatus enumerates attempt session states.
type AttemptStatus string

const (
	StatusNotStarted AttemptStatus = "NOT_STARTED"
	StatusInProgress AttemptStatus = "IN_PROGRESS"
	StatusSubmitting AttemptStatus = "SUBMITTING"
	StatusCompleted  AttemptStatus = "COMPLETED"
	StatusExpired    AttemptStatus = "EXPIRED"
	StatusError      AttemptStatus = "ERROR"
	StatusAbandoned  AttemptStatus = "ABANDONED"
)

// Terminal reports whether the attempt can no longer be mutated or submitted.
func (s AttemptStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// Quiz is the immutable metadata supplied by the content provider.
type Quiz struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	TimeLimitSeconds *int    `json:"timeLimitSeconds,omitempty"` // nil = untimed
	PassingScorePct  float64 `json:"passingScorePct"`
	MaxAttempts      *int    `json:"maxAttempts,omitempty"` // nil = unlimited
	TotalPoints      int     `json:"totalPoints"`
}

// Question is an immutable question definition. Options are present for
// choice types only; answers reference them by index.
type Question struct {
	ID      string       `json:"id"`
	Order   int          `json:"order"`
	Type    QuestionType `json:"type"`
	Prompt  string       `json:"prompt"`
	Options []string     `json:"options,omitempty"`
	Points  int          `json:"points"` // defaults to 1 if zero
}

// SubmissionPayload is the one-shot hand-off to the grading service. The
// session id is stable across retries so the server can dedupe by it.
type SubmissionPayload struct {
	SessionID        string                 `json:"sessionId"`
	QuizID           string                 `json:"quizId"`
	Answers          map[string]AnswerValue `json:"answers"`
	TimeSpentSeconds int                    `json:"timeSpentSeconds"`
	AutoSubmitted    bool                   `json:"autoSubmitted"`
}

// GradedAnswer is the per-question verdict returned by the grading service.
type GradedAnswer struct {
	QuestionID    string       `json:"questionId"`
	Answer        AnswerValue  `json:"answer"`
	IsCorrect     bool         `json:"isCorrect"`
	PointsEarned  float64      `json:"pointsEarned"`
	MaxPoints     float64      `json:"maxPoints"`
	CorrectAnswer *AnswerValue `json:"correctAnswer,omitempty"`
	Explanation   string       `json:"explanation,omitempty"`
}

// GradedResult is the scored outcome of a submission.
type GradedResult struct {
	Score         float64        `json:"score"`
	MaxScore      float64        `json:"maxScore"`
	Percentage    float64        `json:"percentage"`
	Passed        bool           `json:"passed"`
	GradedAnswers []GradedAnswer `json:"gradedAnswers"`
}

// PerformanceTier buckets a graded percentage for display.
type PerformanceTier string

const (
	TierExcellent PerformanceTier = "excellent"
	TierGreat     PerformanceTier = "great"
	TierGood      PerformanceTier = "good"
	TierFail      PerformanceTier = "fail"
)

// ResultSummary is the display-ready projection of a graded result.
type ResultSummary struct {
	QuizID           string          `json:"quizId"`
	Score            float64         `json:"score"`
	MaxScore         float64         `json:"maxScore"`
	Percentage       float64         `json:"percentage"`
	Passed           bool            `json:"passed"`
	Tier             PerformanceTier `json:"tier"`
	CorrectCount     int             `json:"correctCount"`
	IncorrectCount   int             `json:"incorrectCount"`
	TimeSpentSeconds int             `json:"timeSpentSeconds"`
	AutoSubmitted    bool            `json:"autoSubmitted"`
	Insights         []string        `json:"insights,omitempty"`
}
