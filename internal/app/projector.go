package app

import (
	"fmt"

	"quiz-attempt-service/internal/domain"
)

// efficientTimeShare is the fraction of the time limit under which a finish
// counts as efficient time management.
const efficientTimeShare = 0.5

// Project turns a graded result into a display-ready summary. Pure: no side
// effects, safe to call repeatedly on the same input.
func Project(result domain.GradedResult, quiz domain.Quiz, payload domain.SubmissionPayload) domain.ResultSummary {
	correct, incorrect := 0, 0
	for _, ga := range result.GradedAnswers {
		if ga.IsCorrect {
			correct++
		} else {
			incorrect++
		}
	}

	summary := domain.ResultSummary{
		QuizID:           quiz.ID,
		Score:            result.Score,
		MaxScore:         result.MaxScore,
		Percentage:       result.Percentage,
		Passed:           result.Percentage >= quiz.PassingScorePct,
		Tier:             tierFor(result.Percentage, quiz.PassingScorePct),
		CorrectCount:     correct,
		IncorrectCount:   incorrect,
		TimeSpentSeconds: payload.TimeSpentSeconds,
		AutoSubmitted:    payload.AutoSubmitted,
	}
	summary.Insights = insightsFor(summary, quiz)
	return summary
}

func tierFor(percentage, passingPct float64) domain.PerformanceTier {
	switch {
	case percentage >= 90:
		return domain.TierExcellent
	case percentage >= 80:
		return domain.TierGreat
	case percentage >= passingPct:
		return domain.TierGood
	default:
		return domain.TierFail
	}
}

func insightsFor(s domain.ResultSummary, quiz domain.Quiz) []string {
	var insights []string
	if quiz.TimeLimitSeconds != nil && !s.AutoSubmitted &&
		float64(s.TimeSpentSeconds) <= float64(*quiz.TimeLimitSeconds)*efficientTimeShare {
		insights = append(insights, "efficient time management: finished well within the time limit")
	}
	if s.AutoSubmitted {
		insights = append(insights, "the time limit ran out before you submitted; try pacing earlier questions faster")
	}
	if s.Tier == domain.TierExcellent {
		insights = append(insights, "outstanding accuracy across the board")
	}
	if s.IncorrectCount > 0 {
		insights = append(insights, fmt.Sprintf("review the %d missed question(s) before your next attempt", s.IncorrectCount))
	}
	return insights
}
