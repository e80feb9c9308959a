// Package scoring holds the pure scoring rules for quizzes, clinical cases,
// exam simulations and competitions. Nothing here touches storage or the clock.
package scoring

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"ecn-prep-service/internal/domain"
)

const (
	// DefaultPassingThreshold is the exam pass mark in percent.
	DefaultPassingThreshold = 70.0

	examFullCredit   = 2.0
	examWrongPenalty = -0.5
	examPartialUnit  = 0.5

	previewRunes = 100
)

// ScoreQuiz scores a practice quiz. answers is aligned with questions; missing
// trailing answers count as unanswered.
func ScoreQuiz(answers []domain.Answer, questions []domain.Question) int {
	score := 0
	for i, q := range questions {
		if i >= len(answers) {
			break
		}
		score += quizPoints(q, answers[i])
	}
	return score
}

// MaxQuizScore is the best achievable ScoreQuiz result for questions.
func MaxQuizScore(questions []domain.Question) int {
	total := 0
	for _, q := range questions {
		switch q.Kind {
		case domain.KindSingle:
			total++
		case domain.KindMultiple:
			total += 2
		}
	}
	return total
}

func quizPoints(q domain.Question, a domain.Answer) int {
	switch q.Kind {
	case domain.KindSingle:
		if q.IsCorrect(a.Single()) {
			return 1
		}
		return 0
	case domain.KindMultiple:
		correct, incorrect := countSelection(q, a)
		switch {
		case correct == len(uniqueCorrect(q)) && incorrect == 0 && correct > 0:
			return 2
		case correct > 0:
			return 1
		}
	}
	return 0
}

// ScoreClinicalCase validates every recorded answer of c and aggregates the result.
func ScoreClinicalCase(c domain.ClinicalCase, answers []domain.CaseAnswer) domain.CaseScoreResult {
	result := domain.CaseScoreResult{
		TotalSteps: c.QuestionSteps(),
		Feedback:   make([]domain.StepFeedback, 0, len(answers)),
	}
	for _, ans := range answers {
		if ans.Step < 0 || ans.Step >= len(c.Steps) {
			continue
		}
		step := c.Steps[ans.Step]
		if !step.HasQuestion() {
			continue
		}
		correct, canonical := ValidateStep(step, ans.Value)
		if correct {
			result.CorrectSteps++
		}
		result.Feedback = append(result.Feedback, domain.StepFeedback{
			Step:          ans.Step,
			Title:         step.Title,
			Question:      step.Question,
			UserAnswer:    ans.Value,
			CorrectAnswer: canonical,
			Correct:       correct,
			Explanation:   step.Explanation,
		})
	}
	result.ScorePercentage = Percentage(float64(result.CorrectSteps), float64(result.TotalSteps))
	result.Performance = CasePerformance(result.ScorePercentage)
	return result
}

// ValidateStep checks one answer against a step and returns the canonical answer text.
func ValidateStep(step domain.Step, v domain.CaseValue) (bool, string) {
	switch step.Kind {
	case domain.StepSingleChoice:
		got := strings.ToLower(strings.TrimSpace(v.Scalar()))
		want := strings.ToLower(strings.TrimSpace(step.CorrectAnswer))
		return got == want, step.CorrectAnswer
	case domain.StepMultiChoice:
		return sameSet(v.Items(), step.CorrectOptions), strings.Join(step.CorrectOptions, ", ")
	case domain.StepFreeText:
		return true, "Réponse libre"
	default:
		return false, ""
	}
}

// CasePerformance labels a clinical case percentage.
func CasePerformance(pct float64) string {
	switch {
	case pct >= 80:
		return "Excellent"
	case pct >= 60:
		return "Bon"
	default:
		return "À revoir"
	}
}

// ScoreExamSimulation applies the ECN marking scheme. Single-choice wrong answers cost
// half a point while multi-choice partial answers are floored at zero.
func ScoreExamSimulation(answers []domain.Answer, questions []domain.Question, passingThreshold float64) domain.ExamScoreResult {
	result := domain.ExamScoreResult{
		MaxScore: float64(len(questions)) * examFullCredit,
		Details:  make([]domain.QuestionReview, 0, len(questions)),
	}
	for i, q := range questions {
		var a domain.Answer
		if i < len(answers) {
			a = answers[i]
		}
		points, feedback := examPoints(q, a)
		result.RawScore += points

		user := []string{"Non répondu"}
		if !a.Empty() {
			user = append([]string(nil), a.Selected...)
		}
		result.Details = append(result.Details, domain.QuestionReview{
			Number:        i + 1,
			Preview:       preview(q.Text),
			UserAnswer:    user,
			CorrectAnswer: q.CorrectTexts(),
			Score:         points,
			Feedback:      feedback,
			Explanation:   q.Explanation,
		})
	}
	result.Percentage = Percentage(result.RawScore, result.MaxScore)
	result.Passed = result.Percentage >= passingThreshold
	result.Grade = Grade(result.Percentage)
	return result
}

func examPoints(q domain.Question, a domain.Answer) (float64, string) {
	switch q.Kind {
	case domain.KindSingle:
		selected := a.Single()
		switch {
		case selected == "":
			return 0, "Non répondu (0 point)"
		case q.IsCorrect(selected):
			return examFullCredit, "Bonne réponse"
		default:
			return examWrongPenalty, "Mauvaise réponse (-0.5 point)"
		}
	case domain.KindMultiple:
		correct, incorrect := countSelection(q, a)
		switch {
		case correct == len(uniqueCorrect(q)) && incorrect == 0 && correct > 0:
			return examFullCredit, "Réponse parfaite"
		case correct > 0:
			points := math.Max(0, float64(correct)*examPartialUnit-float64(incorrect)*examPartialUnit)
			return points, fmt.Sprintf("%d bonne(s) réponse(s), %d mauvaise(s)", correct, incorrect)
		default:
			return 0, "Aucune bonne réponse"
		}
	}
	return 0, ""
}

// Grade maps an exam percentage to its mention. Lower bounds are inclusive.
func Grade(pct float64) string {
	switch {
	case pct >= 90:
		return "Excellent"
	case pct >= 80:
		return "Très Bien"
	case pct >= 70:
		return "Bien"
	case pct >= 60:
		return "Assez Bien"
	default:
		return "Insuffisant"
	}
}

// CompetitionDelta scores one validated competition answer. The competition flow
// only collects a single option, so multiple-type questions are scored as a
// one-element selection.
func CompetitionDelta(q domain.Question, selected string) float64 {
	switch q.Kind {
	case domain.KindSingle:
		if q.IsCorrect(selected) {
			return 2
		}
		return -1
	case domain.KindMultiple:
		correct, incorrect := countSelection(q, domain.SingleAnswer(selected))
		switch {
		case correct == len(uniqueCorrect(q)) && incorrect == 0 && correct > 0:
			return 2
		case correct > 0:
			return math.Max(0, float64(correct)*examPartialUnit-float64(incorrect)*examPartialUnit)
		default:
			return -1
		}
	}
	return 0
}

// ApplyCompetitionDelta adds delta to total without letting the score go negative.
func ApplyCompetitionDelta(total, delta float64) float64 {
	return math.Max(0, total+delta)
}

// Percentage returns part/whole*100, or 0 when whole is zero.
func Percentage(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}

func countSelection(q domain.Question, a domain.Answer) (correct, incorrect int) {
	want := uniqueCorrect(q)
	for s := range a.Set() {
		if _, ok := want[s]; ok {
			correct++
		} else {
			incorrect++
		}
	}
	return correct, incorrect
}

func uniqueCorrect(q domain.Question) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range q.CorrectTexts() {
		set[t] = struct{}{}
	}
	return set
}

func sameSet(a, b []string) bool {
	left := make(map[string]struct{}, len(a))
	for _, s := range a {
		left[s] = struct{}{}
	}
	right := make(map[string]struct{}, len(b))
	for _, s := range b {
		right[s] = struct{}{}
	}
	if len(left) != len(right) {
		return false
	}
	for s := range left {
		if _, ok := right[s]; !ok {
			return false
		}
	}
	return true
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= previewRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:previewRunes]) + "..."
}
