package http

import "ecn-prep-service/internal/domain"

// questionView hides which options are correct.
type questionView struct {
	ID        string              `json:"id"`
	Specialty string              `json:"specialty,omitempty"`
	Text      string              `json:"question"`
	Kind      domain.QuestionKind `json:"type"`
	Options   []string            `json:"options"`
}

func newQuestionView(q domain.Question) questionView {
	opts := make([]string, len(q.Options))
	for i, o := range q.Options {
		opts[i] = o.Text
	}
	return questionView{ID: q.ID, Specialty: q.Specialty, Text: q.Text, Kind: q.Kind, Options: opts}
}

func newQuestionViews(qs []domain.Question) []questionView {
	out := make([]questionView, len(qs))
	for i, q := range qs {
		out[i] = newQuestionView(q)
	}
	return out
}

// stepView is a clinical case step without its expected answer.
type stepView struct {
	Title    string          `json:"title"`
	Content  string          `json:"content"`
	Kind     domain.StepKind `json:"kind"`
	Question string          `json:"question,omitempty"`
	Options  []string        `json:"options,omitempty"`
}

func newStepView(s domain.Step) *stepView {
	return &stepView{Title: s.Title, Content: s.Content, Kind: s.Kind, Question: s.Question, Options: s.Options}
}
