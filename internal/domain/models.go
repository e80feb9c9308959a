package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// QuestionKind distinguishes single-correct from multi-correct questions.
type QuestionKind int

const (
	KindSingle QuestionKind = iota
	KindMultiple
)

func (k QuestionKind) String() string {
	if k == KindMultiple {
		return "multiple"
	}
	return "single"
}

func (k QuestionKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *QuestionKind) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "single":
		*k = KindSingle
	case "multiple":
		*k = KindMultiple
	default:
		return fmt.Errorf("unknown question type %q", raw)
	}
	return nil
}

// Option represents a possible answer for a question.
type Option struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question is one assessable MCQ item. ID is positional within its specialty.
type Question struct {
	ID          string       `json:"id,omitempty"`
	Specialty   string       `json:"specialty,omitempty"`
	Text        string       `json:"question"`
	Kind        QuestionKind `json:"type"`
	Options     []Option     `json:"options"`
	Explanation string       `json:"explanation,omitempty"`
}

// CorrectTexts returns the texts of all correct options in declaration order.
func (q Question) CorrectTexts() []string {
	out := make([]string, 0, 1)
	for _, opt := range q.Options {
		if opt.Correct {
			out = append(out, opt.Text)
		}
	}
	return out
}

// IsCorrect reports whether text is one of the correct options.
func (q Question) IsCorrect(text string) bool {
	for _, opt := range q.Options {
		if opt.Correct && opt.Text == text {
			return true
		}
	}
	return false
}

// Validate checks that at least one option is marked correct.
func (q Question) Validate() error {
	if len(q.CorrectTexts()) == 0 {
		return fmt.Errorf("question %q: %w", q.ID, ErrNoCorrectOption)
	}
	return nil
}

// Answer is a user's response to one question. Single questions use zero or one
// element; Multiple questions treat Selected as a set.
type Answer struct {
	Selected []string `json:"selected"`
}

// SingleAnswer builds an answer for a single-choice question. Empty text means unanswered.
func SingleAnswer(text string) Answer {
	if text == "" {
		return Answer{}
	}
	return Answer{Selected: []string{text}}
}

// MultiAnswer builds an answer for a multi-choice question.
func MultiAnswer(texts ...string) Answer {
	return Answer{Selected: append([]string(nil), texts...)}
}

// Single returns the first selected text or "".
func (a Answer) Single() string {
	if len(a.Selected) == 0 {
		return ""
	}
	return a.Selected[0]
}

// Set returns the selection with duplicates and empty strings removed.
func (a Answer) Set() map[string]struct{} {
	set := make(map[string]struct{}, len(a.Selected))
	for _, s := range a.Selected {
		if s == "" {
			continue
		}
		set[s] = struct{}{}
	}
	return set
}

// Empty reports whether nothing was selected.
func (a Answer) Empty() bool {
	return len(a.Set()) == 0
}

// StepKind tags the validation strategy of a clinical case step.
type StepKind int

const (
	StepNarrative StepKind = iota
	StepFreeText
	StepSingleChoice
	StepMultiChoice
)

func (k StepKind) String() string {
	switch k {
	case StepFreeText:
		return "free_text"
	case StepSingleChoice:
		return "single_choice"
	case StepMultiChoice:
		return "multi_choice"
	default:
		return "narrative"
	}
}

func (k StepKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Step is one stage of a clinical case.
type Step struct {
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	Kind           StepKind `json:"kind"`
	Question       string   `json:"question,omitempty"`
	Options        []string `json:"options,omitempty"`
	CorrectAnswer  string   `json:"correct_answer,omitempty"`
	CorrectOptions []string `json:"correct_options,omitempty"`
	Explanation    string   `json:"explanation,omitempty"`
}

// HasQuestion reports whether the step contributes to scoring.
func (s Step) HasQuestion() bool {
	return s.Kind != StepNarrative
}

// rawStep mirrors the loosely-typed data files.
type rawStep struct {
	Title          string          `json:"title"`
	Content        string          `json:"content"`
	Type           string          `json:"type,omitempty"`
	Question       *string         `json:"question,omitempty"`
	Options        []string        `json:"options,omitempty"`
	CorrectAnswer  json.RawMessage `json:"correct_answer,omitempty"`
	CorrectOptions []string        `json:"correct_options,omitempty"`
	Explanation    string          `json:"explanation,omitempty"`
}

// UnmarshalJSON derives Kind from which keys are present in the data file.
func (s *Step) UnmarshalJSON(data []byte) error {
	var raw rawStep
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Step{
		Title:          raw.Title,
		Content:        raw.Content,
		Options:        raw.Options,
		CorrectOptions: raw.CorrectOptions,
		Explanation:    raw.Explanation,
	}
	if raw.Question == nil {
		s.Kind = StepNarrative
		return nil
	}
	s.Question = *raw.Question
	switch {
	case len(raw.CorrectAnswer) > 0 && string(raw.CorrectAnswer) != "null":
		s.Kind = StepSingleChoice
		var text string
		if err := json.Unmarshal(raw.CorrectAnswer, &text); err != nil {
			// numbers and booleans are compared as their literal text
			text = strings.TrimSpace(string(raw.CorrectAnswer))
		}
		s.CorrectAnswer = text
	case raw.CorrectOptions != nil:
		s.Kind = StepMultiChoice
	default:
		s.Kind = StepFreeText
	}
	return nil
}

// MarshalJSON writes the data-file shape so a case round-trips through storage.
func (s Step) MarshalJSON() ([]byte, error) {
	raw := rawStep{
		Title:       s.Title,
		Content:     s.Content,
		Options:     s.Options,
		Explanation: s.Explanation,
	}
	switch s.Kind {
	case StepNarrative:
		return json.Marshal(raw)
	case StepSingleChoice:
		raw.Type = "multiple_choice"
		ca, err := json.Marshal(s.CorrectAnswer)
		if err != nil {
			return nil, err
		}
		raw.CorrectAnswer = ca
	case StepMultiChoice:
		raw.Type = "multiple"
		raw.CorrectOptions = s.CorrectOptions
		if raw.CorrectOptions == nil {
			raw.CorrectOptions = []string{}
		}
	case StepFreeText:
		raw.Type = "text"
	}
	q := s.Question
	raw.Question = &q
	return json.Marshal(raw)
}

// ClinicalCase is a sequence of steps sharing a title and a narrative solution.
type ClinicalCase struct {
	Title      string `json:"title"`
	Specialty  string `json:"specialty,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Steps      []Step `json:"steps"`
	Solution   string `json:"solution,omitempty"`
}

// QuestionSteps counts the steps that carry a question.
func (c ClinicalCase) QuestionSteps() int {
	n := 0
	for _, s := range c.Steps {
		if s.HasQuestion() {
			n++
		}
	}
	return n
}

// CaseValue is a clinical case answer that keeps its list-vs-scalar shape.
type CaseValue struct {
	Text   string
	List   []string
	IsList bool
}

// TextValue builds a scalar answer.
func TextValue(s string) CaseValue { return CaseValue{Text: s} }

// ListValue builds a list answer.
func ListValue(items ...string) CaseValue {
	return CaseValue{List: append([]string{}, items...), IsList: true}
}

// Scalar unwraps a single-element list, mirroring how a radio answer may arrive as a list.
func (v CaseValue) Scalar() string {
	if !v.IsList {
		return v.Text
	}
	if len(v.List) == 0 {
		return ""
	}
	return v.List[0]
}

// Items coerces the value to a list.
func (v CaseValue) Items() []string {
	if v.IsList {
		return append([]string(nil), v.List...)
	}
	return []string{v.Text}
}

func (v CaseValue) MarshalJSON() ([]byte, error) {
	if v.IsList {
		list := v.List
		if list == nil {
			list = []string{}
		}
		return json.Marshal(list)
	}
	return json.Marshal(v.Text)
}

func (v *CaseValue) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*v = ListValue(list...)
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("case answer must be a string or a list of strings: %w", err)
	}
	*v = TextValue(text)
	return nil
}

// CaseAnswer is the recorded answer of one step. At most one per step index.
type CaseAnswer struct {
	Step  int       `json:"step"`
	Value CaseValue `json:"answer"`
}

// StepFeedback is the per-step review record of a scored clinical case.
type StepFeedback struct {
	Step          int       `json:"step"`
	Title         string    `json:"title"`
	Question      string    `json:"question"`
	UserAnswer    CaseValue `json:"userAnswer"`
	CorrectAnswer string    `json:"correctAnswer"`
	Correct       bool      `json:"correct"`
	Explanation   string    `json:"explanation"`
}

// CaseScoreResult is the outcome of a finished clinical case.
type CaseScoreResult struct {
	TotalSteps      int            `json:"totalSteps"`
	CorrectSteps    int            `json:"correctSteps"`
	ScorePercentage float64        `json:"scorePercentage"`
	Performance     string         `json:"performance"`
	Feedback        []StepFeedback `json:"feedback"`
}

// Section is a contiguous, positional slice [Start, End) of a simulation's questions.
type Section struct {
	Order    int           `json:"order"`
	Title    string        `json:"title"`
	Start    int           `json:"start"`
	End      int           `json:"end"`
	Duration time.Duration `json:"duration"`
}

// Len returns the number of questions in the section.
func (s Section) Len() int { return s.End - s.Start }

// SimulationSession is one generated exam instance. Question order is fixed once created.
type SimulationSession struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Questions []Question      `json:"questions"`
	Sections  []Section       `json:"sections"`
	Duration  time.Duration   `json:"duration"`
	Breaks    []time.Duration `json:"breaks,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// SectionQuestions returns the questions of section i, or nil when i is out of range.
func (s *SimulationSession) SectionQuestions(i int) []Question {
	if i < 0 || i >= len(s.Sections) {
		return nil
	}
	sec := s.Sections[i]
	return s.Questions[sec.Start:sec.End]
}

// SectionOf returns the index of the section containing question idx, or -1.
func (s *SimulationSession) SectionOf(idx int) int {
	for i, sec := range s.Sections {
		if idx >= sec.Start && idx < sec.End {
			return i
		}
	}
	return -1
}

// Summary is the persisted header of a session.
func (s *SimulationSession) Summary() ExamSummary {
	return ExamSummary{SessionID: s.ID, Title: s.Title, TotalQuestions: len(s.Questions)}
}

// ExamSummary identifies a finished simulation for persistence.
type ExamSummary struct {
	SessionID      string `json:"sessionId"`
	Title          string `json:"title"`
	TotalQuestions int    `json:"totalQuestions"`
}

// QuizResult is the outcome of a practice quiz or competition.
type QuizResult struct {
	Score    int `json:"score"`
	MaxScore int `json:"maxScore"`
	Total    int `json:"total"`
}

// QuestionReview is one line of the exam review.
type QuestionReview struct {
	Number        int      `json:"questionNumber"`
	Preview       string   `json:"questionText"`
	UserAnswer    []string `json:"userAnswer"`
	CorrectAnswer []string `json:"correctAnswer"`
	Score         float64  `json:"score"`
	Feedback      string   `json:"feedback"`
	Explanation   string   `json:"explanation,omitempty"`
}

// ExamScoreResult is the outcome of a scored simulation.
type ExamScoreResult struct {
	RawScore   float64          `json:"rawScore"`
	MaxScore   float64          `json:"maxScore"`
	Percentage float64          `json:"percentage"`
	Passed     bool             `json:"passed"`
	Grade      string           `json:"grade"`
	Details    []QuestionReview `json:"details"`
}

// LeaderboardEntry aggregates quiz scores for one user.
type LeaderboardEntry struct {
	User           string `json:"user"`
	AggregateScore int    `json:"aggregateScore"`
	AttemptCount   int    `json:"attemptCount"`
}

// Leaderboard is an ordered scoreboard, optionally scoped to a specialty.
type Leaderboard struct {
	Specialty string             `json:"specialty,omitempty"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// ExamLeaderboardEntry aggregates simulation results for one user.
type ExamLeaderboardEntry struct {
	User           string  `json:"user"`
	BestPercentage float64 `json:"bestPercentage"`
	AvgPercentage  float64 `json:"avgPercentage"`
	AttemptCount   int     `json:"attemptCount"`
}

// ExamStats summarizes a user's simulations.
type ExamStats struct {
	AttemptCount    int     `json:"attemptCount"`
	AvgPercentage   float64 `json:"avgPercentage"`
	BestPercentage  float64 `json:"bestPercentage"`
	WorstPercentage float64 `json:"worstPercentage"`
	AvgDuration     int     `json:"avgDurationSeconds"`
	PassCount       int     `json:"passCount"`
}

// SpecialtyProgress aggregates a user's score rows in one specialty.
type SpecialtyProgress struct {
	Specialty      string  `json:"specialty"`
	AvgScore       float64 `json:"avgScore"`
	AttemptCount   int     `json:"attemptCount"`
	TotalScore     int     `json:"totalScore"`
	AvgTimeSeconds float64 `json:"avgTimeSeconds"`
}

// DailyProgress aggregates a user's score rows for one UTC day (YYYY-MM-DD).
type DailyProgress struct {
	Date         string  `json:"date"`
	AvgScore     float64 `json:"avgScore"`
	AttemptCount int     `json:"attemptCount"`
}

// UserProgress is the per-specialty breakdown and the daily timeline of a
// user's quiz and case scores.
type UserProgress struct {
	User        string              `json:"user"`
	BySpecialty []SpecialtyProgress `json:"bySpecialty"`
	Timeline    []DailyProgress     `json:"timeline"`
}

// SortSpecialtyProgress orders by average score desc, then specialty name.
func SortSpecialtyProgress(rows []SpecialtyProgress) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].AvgScore != rows[j].AvgScore {
			return rows[i].AvgScore > rows[j].AvgScore
		}
		return rows[i].Specialty < rows[j].Specialty
	})
}

// SortLeaderboard orders entries by aggregate score desc, then attempts asc, then name.
func SortLeaderboard(entries []LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].AggregateScore != entries[j].AggregateScore {
			return entries[i].AggregateScore > entries[j].AggregateScore
		}
		if entries[i].AttemptCount != entries[j].AttemptCount {
			return entries[i].AttemptCount < entries[j].AttemptCount
		}
		return entries[i].User < entries[j].User
	})
}

// SortExamLeaderboard orders by best percentage desc, then average desc, then name.
func SortExamLeaderboard(entries []ExamLeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].BestPercentage != entries[j].BestPercentage {
			return entries[i].BestPercentage > entries[j].BestPercentage
		}
		if entries[i].AvgPercentage != entries[j].AvgPercentage {
			return entries[i].AvgPercentage > entries[j].AvgPercentage
		}
		return entries[i].User < entries[j].User
	})
}

// BadgeKind separates cumulative-score badges from exam badges.
type BadgeKind int

const (
	BadgeScore BadgeKind = iota
	BadgeExam
)

// Badge is an award a user earns once.
type Badge struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Threshold int       `json:"threshold"`
	Kind      BadgeKind `json:"-"`
}
