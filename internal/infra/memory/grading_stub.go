package memory

import (
	"context"

	"quiz-attempt-service/internal/domain"
)

// StubGradingClient stands in for the grading service in demos and tests.
// It has no answer key, so it marks every answered question correct for its
// full point value and every unanswered question wrong.
type StubGradingClient struct {
	Questions map[string][]domain.Question // quizID → questions
}

func NewStubGradingClient(questions map[string][]domain.Question) *StubGradingClient {
	return &StubGradingClient{Questions: questions}
}

func (c *StubGradingClient) Submit(_ context.Context, quizID string, payload domain.SubmissionPayload) (domain.GradedResult, error) {
	result := domain.GradedResult{}
	for _, q := range c.Questions[quizID] {
		points := q.Points
		if points == 0 {
			points = 1
		}
		graded := domain.GradedAnswer{
			QuestionID: q.ID,
			MaxPoints:  float64(points),
		}
		if value, ok := payload.Answers[q.ID]; ok && value.Answered() {
			graded.Answer = value
			graded.IsCorrect = true
			graded.PointsEarned = float64(points)
		}
		result.Score += graded.PointsEarned
		result.MaxScore += graded.MaxPoints
		result.GradedAnswers = append(result.GradedAnswers, graded)
	}
	if result.MaxScore > 0 {
		result.Percentage = result.Score / result.MaxScore * 100
	}
	return result, nil
}
