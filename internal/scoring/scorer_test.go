package scoring

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"ecn-prep-service/internal/domain"
)

func single(text, correct string, wrong ...string) domain.Question {
	opts := []domain.Option{{Text: correct, Correct: true}}
	for _, w := range wrong {
		opts = append(opts, domain.Option{Text: w})
	}
	return domain.Question{Text: text, Kind: domain.KindSingle, Options: opts}
}

func multiple(text string, correct []string, wrong ...string) domain.Question {
	var opts []domain.Option
	for _, c := range correct {
		opts = append(opts, domain.Option{Text: c, Correct: true})
	}
	for _, w := range wrong {
		opts = append(opts, domain.Option{Text: w})
	}
	return domain.Question{Text: text, Kind: domain.KindMultiple, Options: opts}
}

func TestScoreQuizSingle(t *testing.T) {
	q := single("Q", "ECG", "Scanner", "IRM")
	cases := []struct {
		name   string
		answer domain.Answer
		want   int
	}{
		{"correct", domain.SingleAnswer("ECG"), 1},
		{"wrong", domain.SingleAnswer("IRM"), 0},
		{"empty", domain.SingleAnswer(""), 0},
		{"unknown text", domain.SingleAnswer("nope"), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ScoreQuiz([]domain.Answer{tc.answer}, []domain.Question{q}); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestScoreQuizMultiple(t *testing.T) {
	q := multiple("Q", []string{"A", "B"}, "C", "D")
	cases := []struct {
		name   string
		answer domain.Answer
		want   int
	}{
		{"exact", domain.MultiAnswer("B", "A"), 2},
		{"exact with duplicates", domain.MultiAnswer("A", "B", "A"), 2},
		{"partial", domain.MultiAnswer("A"), 1},
		{"overlap with wrong", domain.MultiAnswer("A", "C"), 1},
		{"superset", domain.MultiAnswer("A", "B", "C"), 1},
		{"disjoint", domain.MultiAnswer("C", "D"), 0},
		{"empty", domain.MultiAnswer(), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ScoreQuiz([]domain.Answer{tc.answer}, []domain.Question{q}); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestScoreQuizToleratesShortAnswers(t *testing.T) {
	questions := []domain.Question{single("1", "a", "b"), single("2", "a", "b"), single("3", "a", "b")}
	if got := ScoreQuiz([]domain.Answer{domain.SingleAnswer("a")}, questions); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := ScoreQuiz(nil, questions); got != 0 {
		t.Fatalf("expected 0 for no answers, got %d", got)
	}
}

func TestScoreQuizThreeSpecialtiesEndToEnd(t *testing.T) {
	var questions []domain.Question
	for _, sp := range []string{"cardiologie", "neurologie", "pneumologie"} {
		for i := 0; i < 10; i++ {
			q := single(fmt.Sprintf("%s-%d", sp, i), "right", "wrong")
			q.Specialty = sp
			questions = append(questions, q)
		}
	}
	// 3 specialties x 10 questions, all correct: one point each.
	correct := make([]domain.Answer, len(questions))
	empty := make([]domain.Answer, len(questions))
	for i := range questions {
		correct[i] = domain.SingleAnswer("right")
	}
	if got := ScoreQuiz(correct[:10], questions[:10]); got != 10 {
		t.Fatalf("expected 10 on ten correct answers, got %d", got)
	}
	if got := ScoreQuiz(correct, questions); got != 30 {
		t.Fatalf("expected 30 on thirty correct answers, got %d", got)
	}
	if got := ScoreQuiz(empty, questions); got != 0 {
		t.Fatalf("expected 0 on empty answers, got %d", got)
	}
	if got := MaxQuizScore(questions); got != 30 {
		t.Fatalf("expected max 30, got %d", got)
	}
}

func TestScoreExamSimulationSingle(t *testing.T) {
	q := single("Q", "ECG", "IRM")
	res := ScoreExamSimulation([]domain.Answer{domain.SingleAnswer("IRM")}, []domain.Question{q}, DefaultPassingThreshold)
	if res.RawScore != -0.5 {
		t.Fatalf("expected -0.5 penalty, got %v", res.RawScore)
	}
	if res.Percentage != -25 {
		t.Fatalf("expected -25%%, got %v", res.Percentage)
	}
	res = ScoreExamSimulation([]domain.Answer{domain.SingleAnswer("ECG")}, []domain.Question{q}, DefaultPassingThreshold)
	if res.RawScore != 2 || res.Percentage != 100 || !res.Passed || res.Grade != "Excellent" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestScoreExamSimulationMultipleAsymmetry(t *testing.T) {
	q := multiple("Q", []string{"A", "B", "C"}, "D", "E")
	cases := []struct {
		name   string
		answer domain.Answer
		want   float64
	}{
		{"exact", domain.MultiAnswer("A", "B", "C"), 2},
		{"two correct", domain.MultiAnswer("A", "B"), 1},
		{"two correct one wrong", domain.MultiAnswer("A", "B", "D"), 0.5},
		{"one correct two wrong floors at zero", domain.MultiAnswer("A", "D", "E"), 0},
		{"only wrong gets no penalty", domain.MultiAnswer("D"), 0},
		{"empty", domain.MultiAnswer(), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := ScoreExamSimulation([]domain.Answer{tc.answer}, []domain.Question{q}, DefaultPassingThreshold)
			if res.RawScore != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, res.RawScore)
			}
			if res.RawScore < 0 {
				t.Fatalf("multi-select must never go negative")
			}
		})
	}
}

func TestScoreExamSimulationUnanswered(t *testing.T) {
	questions := []domain.Question{single("1", "a", "b"), multiple("2", []string{"a"}, "b")}
	for _, threshold := range []float64{0.1, 50, 70, 100} {
		res := ScoreExamSimulation(nil, questions, threshold)
		if res.Percentage != 0 || res.Passed {
			t.Fatalf("threshold %v: expected 0%% and not passed, got %+v", threshold, res)
		}
		if res.Grade != "Insuffisant" {
			t.Fatalf("expected Insuffisant, got %s", res.Grade)
		}
	}
	res := ScoreExamSimulation(nil, questions, 70)
	if len(res.Details) != 2 || res.Details[0].UserAnswer[0] != "Non répondu" {
		t.Fatalf("expected unanswered details, got %+v", res.Details)
	}
	if res.MaxScore != 4 {
		t.Fatalf("expected max score 4, got %v", res.MaxScore)
	}
}

func TestScoreExamSimulationAllCorrect(t *testing.T) {
	questions := []domain.Question{
		single("1", "a", "b"),
		multiple("2", []string{"a", "c"}, "b"),
		single("3", "x", "y"),
	}
	answers := []domain.Answer{domain.SingleAnswer("a"), domain.MultiAnswer("c", "a"), domain.SingleAnswer("x")}
	res := ScoreExamSimulation(answers, questions, 70)
	if res.Percentage != 100 || !res.Passed {
		t.Fatalf("expected 100%% passed, got %+v", res)
	}
}

func TestScoreExamSimulationEmptySession(t *testing.T) {
	res := ScoreExamSimulation(nil, nil, 70)
	if res.MaxScore != 0 || res.Percentage != 0 || res.Passed {
		t.Fatalf("expected zeroed result, got %+v", res)
	}
}

func TestScoreExamSimulationPreview(t *testing.T) {
	long := strings.Repeat("é", 150)
	res := ScoreExamSimulation(nil, []domain.Question{single(long, "a")}, 70)
	got := res.Details[0].Preview
	if !strings.HasSuffix(got, "...") || len([]rune(got)) != 103 {
		t.Fatalf("unexpected preview %q", got)
	}
}

func TestGradeBoundaries(t *testing.T) {
	cases := map[float64]string{
		100:   "Excellent",
		90:    "Excellent",
		89.99: "Très Bien",
		80:    "Très Bien",
		70:    "Bien",
		69.9:  "Assez Bien",
		60:    "Assez Bien",
		59.9:  "Insuffisant",
		-10:   "Insuffisant",
	}
	for pct, want := range cases {
		if got := Grade(pct); got != want {
			t.Fatalf("Grade(%v) = %s, want %s", pct, got, want)
		}
	}
}

func sampleCase() domain.ClinicalCase {
	return domain.ClinicalCase{
		Title: "Douleur thoracique",
		Steps: []domain.Step{
			{Title: "Présentation", Content: "Homme de 55 ans"},
			{Title: "Examens", Kind: domain.StepSingleChoice, Question: "Premier examen ?", Options: []string{"ECG", "Scanner"}, CorrectAnswer: "ECG"},
			{Title: "Traitement", Kind: domain.StepMultiChoice, Question: "Traitements ?", Options: []string{"Aspirine", "Héparine", "AINS"}, CorrectOptions: []string{"Aspirine", "Héparine"}},
			{Title: "Synthèse", Kind: domain.StepFreeText, Question: "Votre analyse ?"},
		},
	}
}

func TestScoreClinicalCase(t *testing.T) {
	c := sampleCase()
	answers := []domain.CaseAnswer{
		{Step: 0, Value: domain.TextValue("ignored narrative")},
		{Step: 1, Value: domain.ListValue("  ecg ")},
		{Step: 2, Value: domain.ListValue("Héparine", "Aspirine")},
		{Step: 3, Value: domain.TextValue("anything")},
		{Step: 9, Value: domain.TextValue("out of range")},
	}
	res := ScoreClinicalCase(c, answers)
	if res.TotalSteps != 3 || res.CorrectSteps != 3 {
		t.Fatalf("expected 3/3, got %d/%d", res.CorrectSteps, res.TotalSteps)
	}
	if res.ScorePercentage != 100 || res.Performance != "Excellent" {
		t.Fatalf("unexpected percentage %v (%s)", res.ScorePercentage, res.Performance)
	}
	if len(res.Feedback) != 3 {
		t.Fatalf("expected feedback for 3 question steps, got %d", len(res.Feedback))
	}
	if !res.Feedback[0].UserAnswer.IsList {
		t.Fatalf("expected list shape to be preserved")
	}
	if res.Feedback[1].CorrectAnswer != "Aspirine, Héparine" {
		t.Fatalf("unexpected canonical answer %q", res.Feedback[1].CorrectAnswer)
	}
	if res.Feedback[2].CorrectAnswer != "Réponse libre" {
		t.Fatalf("expected free-text marker, got %q", res.Feedback[2].CorrectAnswer)
	}
}

func TestScoreClinicalCaseWrongAndPartial(t *testing.T) {
	c := sampleCase()
	res := ScoreClinicalCase(c, []domain.CaseAnswer{
		{Step: 1, Value: domain.TextValue("Scanner")},
		{Step: 2, Value: domain.ListValue("Aspirine")},
	})
	if res.CorrectSteps != 0 {
		t.Fatalf("expected 0 correct, got %d", res.CorrectSteps)
	}
	if res.ScorePercentage != 0 || res.Performance != "À revoir" {
		t.Fatalf("unexpected result %+v", res)
	}
	// Scalar coerced to a one-element set.
	one := domain.ClinicalCase{Steps: []domain.Step{{Kind: domain.StepMultiChoice, Question: "?", CorrectOptions: []string{"A"}}}}
	res = ScoreClinicalCase(one, []domain.CaseAnswer{{Step: 0, Value: domain.TextValue("A")}})
	if res.CorrectSteps != 1 {
		t.Fatalf("expected scalar to match single-element set")
	}
}

func TestScoreClinicalCaseNoQuestionSteps(t *testing.T) {
	c := domain.ClinicalCase{Steps: []domain.Step{{Title: "Intro"}, {Title: "Suite"}}}
	res := ScoreClinicalCase(c, []domain.CaseAnswer{{Step: 0, Value: domain.TextValue("x")}})
	if res.TotalSteps != 0 || res.ScorePercentage != 0 || math.IsNaN(res.ScorePercentage) {
		t.Fatalf("expected 0%% without division error, got %+v", res)
	}
}

func TestCompetitionDelta(t *testing.T) {
	s := single("Q", "a", "b")
	if got := CompetitionDelta(s, "a"); got != 2 {
		t.Fatalf("expected +2, got %v", got)
	}
	if got := CompetitionDelta(s, "b"); got != -1 {
		t.Fatalf("expected -1, got %v", got)
	}
	m := multiple("Q", []string{"a", "b"}, "c")
	if got := CompetitionDelta(m, "a"); got != 0.5 {
		t.Fatalf("expected partial +0.5, got %v", got)
	}
	if got := CompetitionDelta(m, "c"); got != -1 {
		t.Fatalf("expected -1 on wrong option, got %v", got)
	}
	one := multiple("Q", []string{"a"}, "c")
	if got := CompetitionDelta(one, "a"); got != 2 {
		t.Fatalf("expected exact +2, got %v", got)
	}
	if got := ApplyCompetitionDelta(0.5, -1); got != 0 {
		t.Fatalf("expected floor at 0, got %v", got)
	}
}
